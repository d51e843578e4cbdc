package config

// Provider identifiers accepted in code_review.provider and video_analysis.provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderNone       = "none"
)

const (
	defaultConfigPath               = "~/.config/hackreview/config.toml"
	defaultColumnTeamName           = "Team Name"
	defaultColumnTeamMembers        = "Team Members"
	defaultColumnProjectName        = "Project Name"
	defaultColumnDescription        = "Project Description"
	defaultColumnGitHubURL          = "Public GitHub Repository"
	defaultColumnVideoURL           = "Demo Video"
	defaultCodeReviewProvider       = ProviderAnthropic
	defaultCodeReviewModel          = "claude-opus-4-6"
	defaultCodeReviewMaxTokens      = 2000
	defaultCodeReviewMaxSourceChars = 20000
	defaultVideoProvider            = ProviderGemini
	defaultVideoModel               = "gemini-3-flash-preview"
	defaultMaxVideoDuration         = 180
	defaultVideoInlineLimitMB       = 18
	defaultGracePeriodMinutes       = 15
	defaultCloneWorkers             = 4
	defaultVideoDownloadWorkers     = 4
	defaultLLMConcurrentRequests    = 3
	defaultReportWorkers            = 4
	defaultRetryAttempts            = 3
	defaultRetryBaseDelaySeconds    = 2.0
	defaultRetryMaxDelaySeconds     = 30.0
	defaultCloneTimeoutSeconds      = 120
	defaultDownloadTimeoutSeconds   = 300
	defaultProbeTimeoutSeconds      = 30
	defaultLLMTimeoutSeconds        = 180
	defaultContinueOnFailure        = true
	defaultGitBinary                = "git"
	defaultYtDlpBinary              = "yt-dlp"
	defaultFFprobeBinary            = "ffprobe"
	defaultFFmpegBinary             = "ffmpeg"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultAnthropicBaseURL         = "https://api.anthropic.com/v1/messages"
	defaultGeminiBaseURL            = "https://generativelanguage.googleapis.com"
	defaultOpenRouterBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	maxRetryAttempts                = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Columns: Columns{
			TeamName:    defaultColumnTeamName,
			TeamMembers: defaultColumnTeamMembers,
			ProjectName: defaultColumnProjectName,
			Description: defaultColumnDescription,
			GitHubURL:   defaultColumnGitHubURL,
			VideoURL:    defaultColumnVideoURL,
		},
		CodeReview: CodeReview{
			Provider:       defaultCodeReviewProvider,
			Model:          defaultCodeReviewModel,
			MaxTokens:      defaultCodeReviewMaxTokens,
			MaxSourceChars: defaultCodeReviewMaxSourceChars,
		},
		VideoAnalysis: VideoAnalysis{
			Provider:         defaultVideoProvider,
			Model:            defaultVideoModel,
			MaxVideoDuration: defaultMaxVideoDuration,
			InlineLimitMB:    defaultVideoInlineLimitMB,
		},
		Hackathon: Hackathon{
			GracePeriodMinutes: defaultGracePeriodMinutes,
		},
		Concurrency: Concurrency{
			CloneWorkers:          defaultCloneWorkers,
			VideoDownloadWorkers:  defaultVideoDownloadWorkers,
			LLMConcurrentRequests: defaultLLMConcurrentRequests,
			ReportWorkers:         defaultReportWorkers,
		},
		Retry: Retry{
			Attempts:         defaultRetryAttempts,
			BaseDelaySeconds: defaultRetryBaseDelaySeconds,
			MaxDelaySeconds:  defaultRetryMaxDelaySeconds,
		},
		Timeouts: Timeouts{
			CloneSeconds:    defaultCloneTimeoutSeconds,
			DownloadSeconds: defaultDownloadTimeoutSeconds,
			ProbeSeconds:    defaultProbeTimeoutSeconds,
			LLMSeconds:      defaultLLMTimeoutSeconds,
		},
		Pipeline: Pipeline{
			ContinueOnFailure: defaultContinueOnFailure,
		},
		Tools: Tools{
			Git:     defaultGitBinary,
			YtDlp:   defaultYtDlpBinary,
			FFprobe: defaultFFprobeBinary,
			FFmpeg:  defaultFFmpegBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
