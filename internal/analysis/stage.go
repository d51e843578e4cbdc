package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hackreview/internal/cloning"
	"hackreview/internal/config"
	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/repoinspect"
	"hackreview/internal/retry"
	"hackreview/internal/review"
	"hackreview/internal/scoring"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/state"
	"hackreview/internal/video"
)

const stageName = "analyze"

// Payload is the ANALYZE record payload.
type Payload struct {
	Code     review.CodeResult  `json:"code_review"`
	Video    review.VideoResult `json:"video_review"`
	KeyFiles []string           `json:"key_files,omitempty"`
	Scores   *scoring.Breakdown `json:"scores,omitempty"`
}

// ReviewerFactory builds the configured providers. Tests substitute fakes.
type ReviewerFactory func(cfg *config.Config) (review.CodeReviewer, review.VideoReviewer, error)

// DefaultReviewers builds providers from the [code_review] and
// [video_analysis] sections.
func DefaultReviewers(cfg *config.Config) (review.CodeReviewer, review.VideoReviewer, error) {
	videoOpts := []review.Option{}
	if cfg.VideoAnalysis.InlineLimitMB > 0 {
		videoOpts = append(videoOpts, review.WithInlineLimit(int64(cfg.VideoAnalysis.InlineLimitMB)<<20))
	}
	code, err := review.NewCodeReviewer(cfg.CodeReviewLLM())
	if err != nil {
		return nil, nil, err
	}
	videoReviewer, err := review.NewVideoReviewer(cfg.VideoAnalysisLLM(), videoOpts...)
	if err != nil {
		return nil, nil, err
	}
	return code, videoReviewer, nil
}

// Analyzer is the ANALYZE stage handler.
type Analyzer struct {
	cfg     *config.Config
	factory ReviewerFactory
	code    review.CodeReviewer
	video   review.VideoReviewer
	policy  retry.Policy
	logger  *slog.Logger
}

// NewAnalyzer constructs the ANALYZE stage handler. Providers are built in
// Prepare so a missing credential only matters when there is work to do.
func NewAnalyzer(cfg *config.Config, factory ReviewerFactory, logger *slog.Logger) *Analyzer {
	if factory == nil {
		factory = DefaultReviewers
	}
	a := &Analyzer{
		cfg:     cfg,
		factory: factory,
		policy:  retry.FromConfig(cfg.Retry),
	}
	a.SetLogger(logger)
	return a
}

// SetLogger updates the analyzer's logging destination.
func (a *Analyzer) SetLogger(logger *slog.Logger) {
	a.logger = logging.NewComponentLogger(logger, "analysis")
}

// SetRetryPolicy replaces the retry policy.
func (a *Analyzer) SetRetryPolicy(policy retry.Policy) {
	a.policy = policy
}

// Prepare builds the review providers.
func (a *Analyzer) Prepare(ctx context.Context) error {
	if a.code != nil && a.video != nil {
		return nil
	}
	code, videoReviewer, err := a.factory(a.cfg)
	if err != nil {
		return err
	}
	a.code = code
	a.video = videoReviewer
	logging.WithContext(ctx, a.logger).Info("review providers ready",
		logging.String("code_provider", code.Name()),
		logging.String("video_provider", videoReviewer.Name()),
	)
	return nil
}

// Process reviews one submission.
func (a *Analyzer) Process(ctx context.Context, item stage.Item) (stage.Outcome, error) {
	if a.code == nil || a.video == nil {
		return stage.Outcome{}, services.Wrap(services.ErrConfiguration, stageName, "process", "review providers not prepared", nil)
	}
	logger := logging.WithContext(ctx, a.logger)
	sub := item.Submission

	var repo cloning.Payload
	if err := item.Decode(state.StageClone, &repo); err != nil {
		return stage.Outcome{}, services.Wrap(services.ErrValidation, stageName, "load clone record", "", err)
	}
	var clip video.Metadata
	if item.Succeeded(state.StageDownload) {
		if err := item.Decode(state.StageDownload, &clip); err != nil {
			return stage.Outcome{}, services.Wrap(services.ErrValidation, stageName, "load download record", "", err)
		}
	}

	outcome := stage.Outcome{}
	payload := Payload{}

	videoInput := review.VideoInput{
		SubmissionID: item.SubmissionID,
		ProjectName:  sub.ProjectName,
		TeamName:     sub.TeamName,
		Description:  sub.Description,
		VideoPath:    clip.AnalysisPath,
		SizeBytes:    clip.SizeBytes,
	}
	videoAttempts, err := a.retry(ctx, "video review", func(ctx context.Context) error {
		result, err := a.video.Review(ctx, videoInput)
		payload.Video = result
		return err
	})
	outcome.Attempts = videoAttempts
	if err != nil {
		return outcome, err
	}
	if !payload.Video.Skipped && !payload.Video.RelatedToProject {
		outcome.Flags = append(outcome.Flags, flags.Warning(flags.CategoryVideoUnrelated, string(state.StageAnalyze),
			"demo video does not appear to show the submitted project"))
	}

	keyFiles, err := repoinspect.KeyFiles(repo.Repo.Path, a.cfg.CodeReview.MaxSourceChars)
	if err != nil {
		return outcome, services.Wrap(services.ErrExternalTool, stageName, "collect key files", "", err)
	}
	for _, file := range keyFiles {
		payload.KeyFiles = append(payload.KeyFiles, file.Path)
	}

	codeInput := review.CodeInput{
		SubmissionID:    item.SubmissionID,
		Number:          sub.Number,
		ProjectName:     sub.ProjectName,
		TeamName:        sub.TeamName,
		Description:     sub.Description,
		SourceFiles:     repoinspect.FormatKeyFiles(keyFiles),
		LOC:             repo.Files.TotalLOC,
		Commits:         repo.History.TotalCommits,
		PrimaryLanguage: repo.Files.PrimaryLanguage,
		HasTests:        repo.Files.HasTests,
		PeriodFlag:      string(repo.History.Period),
		SingleCommit:    repo.History.SingleCommit,
		Patterns:        patternNames(repo.Integration),
		Transcript:      payload.Video.TranscriptSummary,
		Criteria:        review.CriteriaFromConfig(a.cfg),
	}
	codeAttempts, err := a.retry(ctx, "code review", func(ctx context.Context) error {
		result, err := a.code.Review(ctx, codeInput)
		payload.Code = result
		return err
	})
	outcome.Attempts = max(outcome.Attempts, codeAttempts)
	if err != nil {
		return outcome, err
	}

	payload.Scores = scoring.Compute(scoring.Input{
		Code:  &payload.Code,
		Video: &payload.Video,
		Evidence: scoring.Evidence{
			Description:          sub.Description,
			Files:                repo.Files,
			Structure:            repo.Structure,
			Integration:          repo.Integration,
			History:              repo.History,
			VideoAvailable:       clip.AnalysisPath != "",
			VideoDurationSeconds: clip.DurationSeconds,
		},
	}, scoring.Rubric(a.cfg.Scoring.Criteria))

	outcome.Payload = payload
	attrs := []logging.Attr{
		logging.String("code_provider", payload.Code.Provider),
		logging.String("demo", string(payload.Video.DemoClassification)),
	}
	if payload.Scores != nil {
		attrs = append(attrs, logging.Float64("weighted_total", payload.Scores.WeightedTotal))
	}
	logger.Info("submission analyzed", logging.Args(attrs...)...)
	return outcome, nil
}

func (a *Analyzer) retry(ctx context.Context, operation string, call func(context.Context) error) (int, error) {
	logger := logging.WithContext(ctx, a.logger)
	policy := a.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Info(fmt.Sprintf("retrying %s", operation),
			logging.String(logging.FieldEventType, "item_retry"),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	result, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		return call(ctx)
	})
	return result.Attempts, err
}

func patternNames(integration repoinspect.Integration) []string {
	names := make([]string, 0, len(integration.Patterns))
	for _, match := range integration.Patterns {
		names = append(names, match.Name)
	}
	return names
}

// HealthCheck reports whether the providers can be built.
func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if _, _, err := a.factory(a.cfg); err != nil {
		return stage.Unhealthy("analysis", services.Details(err).Message)
	}
	return stage.Healthy("analysis")
}
