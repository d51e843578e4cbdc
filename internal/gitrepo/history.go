package gitrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"hackreview/internal/services"
)

// PeriodFlag classifies how much of a repository predates the hackathon.
type PeriodFlag string

const (
	PeriodClean                PeriodFlag = "clean"
	PeriodMinorPriorWork       PeriodFlag = "minor_prior_work"
	PeriodSignificantPriorWork PeriodFlag = "significant_prior_work"
	PeriodPreexistingProject   PeriodFlag = "pre_existing_project"
)

// Commit is one entry of git log.
type Commit struct {
	Hash    string    `json:"hash"`
	Date    time.Time `json:"date"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
}

// History summarizes the commit log of a repository.
type History struct {
	TotalCommits  int        `json:"total_commits"`
	FirstCommit   time.Time  `json:"first_commit,omitempty"`
	LastCommit    time.Time  `json:"last_commit,omitempty"`
	Authors       []string   `json:"authors,omitempty"`
	SingleCommit  bool       `json:"single_commit"`
	PeriodChecked bool       `json:"period_checked"`
	CommitsBefore int        `json:"commits_before_hackathon"`
	CommitsDuring int        `json:"commits_during_hackathon"`
	CommitsAfter  int        `json:"commits_after_deadline"`
	Period        PeriodFlag `json:"period_flag,omitempty"`
}

// Window is the hackathon period commits are checked against.
type Window struct {
	Start time.Time
	End   time.Time
}

const logFormat = "%H|%aI|%an|%s"

// Log returns every commit reachable from any ref in dir.
func (c *Client) Log(ctx context.Context, dir string) ([]Commit, error) {
	out, stderr, err := c.run(ctx, dir, "log", "--all", "--format="+logFormat)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// An empty repository has no HEAD yet.
		if strings.Contains(strings.ToLower(stderr), "does not have any commits") {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrExternalTool, stageName, "git log", firstLine(stderr), err)
	}
	return ParseLog(out), nil
}

// ParseLog decodes git log output produced with the "%H|%aI|%an|%s" format.
// Lines that do not parse are ignored.
func ParseLog(output string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) < 4 {
			continue
		}
		date, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			continue
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Date:    date.UTC(),
			Author:  parts[2],
			Message: parts[3],
		})
	}
	sort.SliceStable(commits, func(i, j int) bool { return commits[i].Date.Before(commits[j].Date) })
	return commits
}

// Summarize builds the history summary. window is nil when period
// verification is disabled.
func Summarize(commits []Commit, window *Window) History {
	history := History{TotalCommits: len(commits)}
	if len(commits) == 0 {
		return history
	}
	history.FirstCommit = commits[0].Date
	history.LastCommit = commits[len(commits)-1].Date
	history.SingleCommit = len(commits) == 1

	seen := make(map[string]struct{})
	for _, commit := range commits {
		if _, ok := seen[commit.Author]; ok {
			continue
		}
		seen[commit.Author] = struct{}{}
		history.Authors = append(history.Authors, commit.Author)
	}
	sort.Strings(history.Authors)

	if window == nil {
		return history
	}
	history.PeriodChecked = true
	for _, commit := range commits {
		switch {
		case commit.Date.Before(window.Start):
			history.CommitsBefore++
		case commit.Date.After(window.End):
			history.CommitsAfter++
		default:
			history.CommitsDuring++
		}
	}
	history.Period = classifyPeriod(history.CommitsBefore, history.TotalCommits)
	return history
}

func classifyPeriod(before, total int) PeriodFlag {
	ratio := float64(before) / float64(total)
	switch {
	case before == 0:
		return PeriodClean
	case before <= 3 && ratio < 0.1:
		return PeriodMinorPriorWork
	case ratio < 0.5:
		return PeriodSignificantPriorWork
	default:
		return PeriodPreexistingProject
	}
}

// PriorWorkDetail describes significant prior work for flags, or "" when the
// history does not warrant one.
func (h History) PriorWorkDetail() string {
	switch h.Period {
	case PeriodSignificantPriorWork, PeriodPreexistingProject:
		return fmt.Sprintf("%d of %d commits predate the hackathon (%s)", h.CommitsBefore, h.TotalCommits, h.Period)
	default:
		return ""
	}
}
