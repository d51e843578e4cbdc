package cloning

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/flags"
	"hackreview/internal/gitrepo"
	"hackreview/internal/logging"
	"hackreview/internal/repoinspect"
	"hackreview/internal/retry"
	"hackreview/internal/rundir"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/state"
)

const stageName = "clone"

// Git is the subset of the git client the stage needs.
type Git interface {
	Binary() string
	Clone(ctx context.Context, cloneURL, dest string) (gitrepo.Metadata, error)
	Log(ctx context.Context, dir string) ([]gitrepo.Commit, error)
}

// Payload is the CLONE record payload.
type Payload struct {
	Repo        gitrepo.Metadata        `json:"repo"`
	Files       repoinspect.Files       `json:"files"`
	Structure   repoinspect.Structure   `json:"structure"`
	Integration repoinspect.Integration `json:"integration"`
	History     gitrepo.History         `json:"history"`
}

// Cloner clones and inspects submission repositories.
type Cloner struct {
	cfg    *config.Config
	dir    rundir.Dir
	git    Git
	policy retry.Policy
	logger *slog.Logger
}

// NewCloner constructs the CLONE stage handler. A nil git uses the binary
// from the [tools] section.
func NewCloner(cfg *config.Config, dir rundir.Dir, git Git, logger *slog.Logger) *Cloner {
	if git == nil {
		git = gitrepo.New(cfg.Tools.Git, time.Duration(cfg.Timeouts.CloneSeconds)*time.Second)
	}
	c := &Cloner{
		cfg:    cfg,
		dir:    dir,
		git:    git,
		policy: retry.FromConfig(cfg.Retry),
	}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the cloner's logging destination.
func (c *Cloner) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "cloning")
}

// SetRetryPolicy replaces the retry policy, mainly so tests can skip the backoff.
func (c *Cloner) SetRetryPolicy(policy retry.Policy) {
	c.policy = policy
}

// Prepare verifies the git binary is installed.
func (c *Cloner) Prepare(ctx context.Context) error {
	if _, err := exec.LookPath(c.git.Binary()); err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "lookup git",
			fmt.Sprintf("%s not found in PATH; install git or set tools.git", c.git.Binary()), err)
	}
	return nil
}

// Process clones one repository and gathers its inspection data.
func (c *Cloner) Process(ctx context.Context, item stage.Item) (stage.Outcome, error) {
	logger := logging.WithContext(ctx, c.logger)
	sub := item.Submission
	if !sub.Cloneable() {
		detail := "no valid GitHub URL"
		if issues := sub.IssuesFor("github"); len(issues) > 0 {
			detail = fmt.Sprintf("no valid GitHub URL (%s)", strings.Join(issues, ", "))
		}
		return stage.Outcome{}, services.Wrap(services.ErrInvalidURL, stageName, "validate url", detail, nil)
	}

	dest := c.dir.RepoPath(item.SubmissionID)
	if err := os.RemoveAll(dest); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrExternalTool, stageName, "remove stale checkout", "", err)
	}

	var repo gitrepo.Metadata
	policy := c.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Info("retrying clone",
			logging.String(logging.FieldEventType, "item_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	result, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		var cloneErr error
		repo, cloneErr = c.git.Clone(ctx, sub.CloneURL, dest)
		return cloneErr
	})
	outcome := stage.Outcome{Attempts: result.Attempts}
	if err != nil {
		return outcome, err
	}
	logger.Info("repository cloned",
		logging.String("commit", repo.CommitSHA),
		logging.Int("attempts", result.Attempts),
	)

	payload := Payload{Repo: repo}
	if payload.Files, err = repoinspect.ScanFiles(dest); err != nil {
		return outcome, services.Wrap(services.ErrExternalTool, stageName, "scan files", "", err)
	}
	if payload.Integration, err = repoinspect.DetectIntegration(dest); err != nil {
		return outcome, services.Wrap(services.ErrExternalTool, stageName, "detect integration", "", err)
	}
	if payload.Structure, err = repoinspect.AnalyzeStructure(dest, payload.Files.TotalLOC); err != nil {
		return outcome, services.Wrap(services.ErrExternalTool, stageName, "analyze structure", "", err)
	}

	commits, err := c.git.Log(ctx, dest)
	if err != nil {
		return outcome, err
	}
	payload.History = gitrepo.Summarize(commits, c.window())
	outcome.Payload = payload
	outcome.Flags = historyFlags(payload.History)

	logger.Debug("repository inspected",
		logging.Int("files", payload.Files.FileCount),
		logging.Int("loc", payload.Files.TotalLOC),
		logging.Int("commits", payload.History.TotalCommits),
		logging.String("period", string(payload.History.Period)),
	)
	return outcome, nil
}

func (c *Cloner) window() *gitrepo.Window {
	if !c.cfg.Hackathon.VerifyGitPeriod {
		return nil
	}
	start, end, ok := c.cfg.Hackathon.Window()
	if !ok {
		return nil
	}
	return &gitrepo.Window{Start: start, End: end}
}

func historyFlags(history gitrepo.History) []flags.Flag {
	var out []flags.Flag
	if history.SingleCommit {
		out = append(out, flags.Warning(flags.CategorySingleCommit, string(state.StageClone),
			"repository has a single commit"))
	}
	if detail := history.PriorWorkDetail(); detail != "" {
		out = append(out, flags.Warning(flags.CategoryPreexistingCode, string(state.StageClone), detail))
	}
	return out
}

// HealthCheck reports whether the git binary resolves.
func (c *Cloner) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(c.git.Binary()); err != nil {
		return stage.Unhealthy("cloning", c.git.Binary()+" not found")
	}
	return stage.Healthy("cloning")
}
