package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Provider credentials are not
// checked here: a missing key only matters to the stage that needs it.
func (c *Config) Validate() error {
	if err := c.validateColumns(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateHackathon(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateConcurrency(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateColumns() error {
	if c.Columns.TeamName == "" {
		return errors.New("columns.team_name must be set")
	}
	if c.Columns.GitHubURL == "" {
		return errors.New("columns.github_url must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	switch c.CodeReview.Provider {
	case ProviderAnthropic, ProviderGemini, ProviderOpenRouter:
	default:
		return fmt.Errorf("code_review.provider: unsupported value %q (want anthropic, gemini, or openrouter)", c.CodeReview.Provider)
	}
	if c.CodeReview.MaxTokens < 0 {
		return errors.New("code_review.max_tokens must be positive")
	}
	if c.CodeReview.MaxSourceChars < 0 {
		return errors.New("code_review.max_source_chars must be positive")
	}
	switch c.VideoAnalysis.Provider {
	case ProviderGemini, ProviderNone:
	default:
		return fmt.Errorf("video_analysis.provider: unsupported value %q (only gemini accepts video, or none)", c.VideoAnalysis.Provider)
	}
	if c.VideoAnalysis.MaxVideoDuration < 0 {
		return errors.New("video_analysis.max_video_duration must be positive")
	}
	if c.VideoAnalysis.InlineLimitMB < 0 {
		return errors.New("video_analysis.inline_limit_mb must be positive")
	}
	return nil
}

func (c *Config) validateHackathon() error {
	h := c.Hackathon
	if h.GracePeriodMinutes < 0 {
		return errors.New("hackathon.grace_period_minutes must be >= 0")
	}
	if h.DeadlineUTC != "" {
		if _, err := ParseTimestamp(h.DeadlineUTC); err != nil {
			return fmt.Errorf("hackathon.deadline_utc: %w", err)
		}
	}
	if h.StartDate != "" {
		if _, err := ParseTimestamp(h.StartDate); err != nil {
			return fmt.Errorf("hackathon.start_date: %w", err)
		}
	}
	if h.EndDate != "" {
		if _, err := ParseTimestamp(h.EndDate); err != nil {
			return fmt.Errorf("hackathon.end_date: %w", err)
		}
	}
	if h.VerifyGitPeriod {
		if h.StartDate == "" {
			return errors.New("hackathon.start_date must be set when hackathon.verify_git_period is true")
		}
		if h.EndDate == "" && h.DeadlineUTC == "" {
			return errors.New("hackathon.end_date or hackathon.deadline_utc must be set when hackathon.verify_git_period is true")
		}
	}
	if start, end, ok := h.Window(); ok && end.Before(start) {
		return errors.New("hackathon window ends before it starts")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if len(c.Scoring.Criteria) == 0 {
		return nil
	}
	var total float64
	for _, name := range c.CriterionNames() {
		weight := c.Scoring.Criteria[name].Weight
		if weight < 0 {
			return fmt.Errorf("scoring.criteria.%s.weight must be >= 0", name)
		}
		total += weight
	}
	if total <= 0 {
		return errors.New("scoring.criteria weights must sum to a positive value")
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	values := map[string]int{
		"concurrency.clone_workers":           c.Concurrency.CloneWorkers,
		"concurrency.video_download_workers":  c.Concurrency.VideoDownloadWorkers,
		"concurrency.llm_concurrent_requests": c.Concurrency.LLMConcurrentRequests,
		"concurrency.report_workers":          c.Concurrency.ReportWorkers,
	}
	return ensurePositiveMap(values)
}

func (c *Config) validateRetry() error {
	if c.Retry.Attempts < 1 || c.Retry.Attempts > maxRetryAttempts {
		return fmt.Errorf("retry.attempts must be between 1 and %d", maxRetryAttempts)
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return errors.New("retry.base_delay_seconds must be >= 0")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must be >= retry.base_delay_seconds")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	values := map[string]int{
		"timeouts.clone_seconds":    c.Timeouts.CloneSeconds,
		"timeouts.download_seconds": c.Timeouts.DownloadSeconds,
		"timeouts.probe_seconds":    c.Timeouts.ProbeSeconds,
		"timeouts.llm_seconds":      c.Timeouts.LLMSeconds,
	}
	return ensurePositiveMap(values)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
