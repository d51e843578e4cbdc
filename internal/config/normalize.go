package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeColumns()
	c.normalizeProviders()
	c.normalizeCredentials()
	c.normalizeHackathon()
	c.normalizeScoring()
	c.normalizeConcurrency()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeColumns() {
	cols := &c.Columns
	cols.ID = strings.TrimSpace(cols.ID)
	cols.TeamName = strings.TrimSpace(cols.TeamName)
	cols.TeamMembers = strings.TrimSpace(cols.TeamMembers)
	cols.ProjectName = strings.TrimSpace(cols.ProjectName)
	cols.Description = strings.TrimSpace(cols.Description)
	cols.GitHubURL = strings.TrimSpace(cols.GitHubURL)
	cols.VideoURL = strings.TrimSpace(cols.VideoURL)
	cols.SubmittedAt = strings.TrimSpace(cols.SubmittedAt)
	extra := cols.Extra[:0]
	for _, name := range cols.Extra {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			extra = append(extra, trimmed)
		}
	}
	cols.Extra = extra
}

func (c *Config) normalizeProviders() {
	c.CodeReview.Provider = strings.ToLower(strings.TrimSpace(c.CodeReview.Provider))
	if c.CodeReview.Provider == "" {
		c.CodeReview.Provider = defaultCodeReviewProvider
	}
	c.CodeReview.Model = strings.TrimSpace(c.CodeReview.Model)
	if c.CodeReview.Model == "" {
		c.CodeReview.Model = defaultModel(c.CodeReview.Provider)
	}
	c.CodeReview.BaseURL = strings.TrimSpace(c.CodeReview.BaseURL)
	if c.CodeReview.BaseURL == "" {
		c.CodeReview.BaseURL = defaultBaseURL(c.CodeReview.Provider)
	}
	if c.CodeReview.MaxTokens == 0 {
		c.CodeReview.MaxTokens = defaultCodeReviewMaxTokens
	}
	if c.CodeReview.MaxSourceChars == 0 {
		c.CodeReview.MaxSourceChars = defaultCodeReviewMaxSourceChars
	}

	c.VideoAnalysis.Provider = strings.ToLower(strings.TrimSpace(c.VideoAnalysis.Provider))
	if c.VideoAnalysis.Provider == "" {
		c.VideoAnalysis.Provider = defaultVideoProvider
	}
	c.VideoAnalysis.Model = strings.TrimSpace(c.VideoAnalysis.Model)
	if c.VideoAnalysis.Model == "" {
		c.VideoAnalysis.Model = defaultModel(c.VideoAnalysis.Provider)
	}
	c.VideoAnalysis.BaseURL = strings.TrimSpace(c.VideoAnalysis.BaseURL)
	if c.VideoAnalysis.BaseURL == "" {
		c.VideoAnalysis.BaseURL = defaultBaseURL(c.VideoAnalysis.Provider)
	}
	if c.VideoAnalysis.MaxVideoDuration == 0 {
		c.VideoAnalysis.MaxVideoDuration = defaultMaxVideoDuration
	}
	if c.VideoAnalysis.InlineLimitMB == 0 {
		c.VideoAnalysis.InlineLimitMB = defaultVideoInlineLimitMB
	}
}

func (c *Config) normalizeCredentials() {
	creds := &c.Credentials
	creds.AnthropicAPIKey = envOverride(creds.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	creds.GeminiAPIKey = envOverride(creds.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	creds.OpenRouterAPIKey = envOverride(creds.OpenRouterAPIKey, "OPENROUTER_API_KEY")
}

func (c *Config) normalizeHackathon() {
	h := &c.Hackathon
	h.Name = strings.TrimSpace(h.Name)
	h.DeadlineUTC = strings.TrimSpace(h.DeadlineUTC)
	h.StartDate = strings.TrimSpace(h.StartDate)
	h.EndDate = strings.TrimSpace(h.EndDate)
}

func (c *Config) normalizeScoring() {
	if len(c.Scoring.Criteria) == 0 {
		return
	}
	normalized := make(map[string]Criterion, len(c.Scoring.Criteria))
	for name, criterion := range c.Scoring.Criteria {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		criterion.Description = strings.TrimSpace(criterion.Description)
		normalized[key] = criterion
	}
	c.Scoring.Criteria = normalized
}

func (c *Config) normalizeConcurrency() {
	if c.Concurrency.CloneWorkers == 0 {
		c.Concurrency.CloneWorkers = defaultCloneWorkers
	}
	if c.Concurrency.VideoDownloadWorkers == 0 {
		c.Concurrency.VideoDownloadWorkers = defaultVideoDownloadWorkers
	}
	if c.Concurrency.LLMConcurrentRequests == 0 {
		c.Concurrency.LLMConcurrentRequests = defaultLLMConcurrentRequests
	}
	if c.Concurrency.ReportWorkers == 0 {
		c.Concurrency.ReportWorkers = defaultReportWorkers
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Git = valueOrDefault(c.Tools.Git, defaultGitBinary)
	c.Tools.YtDlp = valueOrDefault(c.Tools.YtDlp, defaultYtDlpBinary)
	c.Tools.FFprobe = valueOrDefault(c.Tools.FFprobe, defaultFFprobeBinary)
	c.Tools.FFmpeg = valueOrDefault(c.Tools.FFmpeg, defaultFFmpegBinary)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return defaultCodeReviewModel
	case ProviderGemini:
		return defaultVideoModel
	case ProviderOpenRouter:
		return "anthropic/" + defaultCodeReviewModel
	default:
		return ""
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return defaultAnthropicBaseURL
	case ProviderGemini:
		return defaultGeminiBaseURL
	case ProviderOpenRouter:
		return defaultOpenRouterBaseURL
	default:
		return ""
	}
}

// envOverride prefers the first non-empty environment variable over the file value.
func envOverride(value string, keys ...string) string {
	for _, key := range keys {
		if env, ok := os.LookupEnv(key); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return strings.TrimSpace(value)
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
