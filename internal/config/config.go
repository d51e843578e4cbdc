package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Columns maps submission fields to CSV header names. Empty optional entries
// fall back to header auto-detection.
type Columns struct {
	ID          string   `toml:"id" yaml:"id"`
	TeamName    string   `toml:"team_name" yaml:"team_name"`
	TeamMembers string   `toml:"team_members" yaml:"team_members"`
	ProjectName string   `toml:"project_name" yaml:"project_name"`
	Description string   `toml:"description" yaml:"description"`
	GitHubURL   string   `toml:"github_url" yaml:"github_url"`
	VideoURL    string   `toml:"video_url" yaml:"video_url"`
	SubmittedAt string   `toml:"submitted_at" yaml:"submitted_at"`
	Extra       []string `toml:"extra" yaml:"extra"`
}

// CodeReview selects the provider that reviews repository sources.
type CodeReview struct {
	Provider       string `toml:"provider" yaml:"provider"`
	Model          string `toml:"model" yaml:"model"`
	MaxTokens      int    `toml:"max_tokens" yaml:"max_tokens"`
	MaxSourceChars int    `toml:"max_source_chars" yaml:"max_source_chars"`
	APIKey         string `toml:"api_key" yaml:"api_key"`
	BaseURL        string `toml:"base_url" yaml:"base_url"`
}

// VideoAnalysis selects the provider that watches demo videos. Provider "none"
// disables video review.
type VideoAnalysis struct {
	Provider         string `toml:"provider" yaml:"provider"`
	Model            string `toml:"model" yaml:"model"`
	MaxVideoDuration int    `toml:"max_video_duration" yaml:"max_video_duration"`
	InlineLimitMB    int    `toml:"inline_limit_mb" yaml:"inline_limit_mb"`
	APIKey           string `toml:"api_key" yaml:"api_key"`
	BaseURL          string `toml:"base_url" yaml:"base_url"`
}

// Hackathon holds event-specific settings used for lateness and git period checks.
type Hackathon struct {
	Name               string `toml:"name" yaml:"name"`
	DeadlineUTC        string `toml:"deadline_utc" yaml:"deadline_utc"`
	GracePeriodMinutes int    `toml:"grace_period_minutes" yaml:"grace_period_minutes"`
	StartDate          string `toml:"start_date" yaml:"start_date"`
	EndDate            string `toml:"end_date" yaml:"end_date"`
	VerifyGitPeriod    bool   `toml:"verify_git_period" yaml:"verify_git_period"`
}

// Criterion is one weighted scoring dimension.
type Criterion struct {
	Weight      float64 `toml:"weight" yaml:"weight"`
	Description string  `toml:"description" yaml:"description"`
}

// Scoring holds the rubric. An empty criteria table disables scoring.
type Scoring struct {
	Criteria map[string]Criterion `toml:"criteria" yaml:"criteria"`
}

// Concurrency bounds the per-stage worker pools.
type Concurrency struct {
	CloneWorkers          int `toml:"clone_workers" yaml:"clone_workers"`
	VideoDownloadWorkers  int `toml:"video_download_workers" yaml:"video_download_workers"`
	LLMConcurrentRequests int `toml:"llm_concurrent_requests" yaml:"llm_concurrent_requests"`
	ReportWorkers         int `toml:"report_workers" yaml:"report_workers"`
}

// Retry controls the bounded backoff applied to transient collaborator failures.
type Retry struct {
	Attempts         int     `toml:"attempts" yaml:"attempts"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds" yaml:"base_delay_seconds"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds" yaml:"max_delay_seconds"`
}

// Timeouts are per external call, per attempt.
type Timeouts struct {
	CloneSeconds    int `toml:"clone_seconds" yaml:"clone_seconds"`
	DownloadSeconds int `toml:"download_seconds" yaml:"download_seconds"`
	ProbeSeconds    int `toml:"probe_seconds" yaml:"probe_seconds"`
	LLMSeconds      int `toml:"llm_seconds" yaml:"llm_seconds"`
}

// Pipeline holds controller policy.
type Pipeline struct {
	ContinueOnFailure bool `toml:"continue_on_failure" yaml:"continue_on_failure"`
}

// Tools names the external executables.
type Tools struct {
	Git     string `toml:"git" yaml:"git"`
	YtDlp   string `toml:"yt_dlp" yaml:"yt_dlp"`
	FFprobe string `toml:"ffprobe" yaml:"ffprobe"`
	FFmpeg  string `toml:"ffmpeg" yaml:"ffmpeg"`
}

// Credentials are normally supplied through the environment or a .env file.
type Credentials struct {
	AnthropicAPIKey  string `toml:"anthropic_api_key" yaml:"anthropic_api_key"`
	GeminiAPIKey     string `toml:"gemini_api_key" yaml:"gemini_api_key"`
	OpenRouterAPIKey string `toml:"openrouter_api_key" yaml:"openrouter_api_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for hackreview.
type Config struct {
	Columns       Columns       `toml:"columns" yaml:"columns"`
	CodeReview    CodeReview    `toml:"code_review" yaml:"code_review"`
	VideoAnalysis VideoAnalysis `toml:"video_analysis" yaml:"video_analysis"`
	Hackathon     Hackathon     `toml:"hackathon" yaml:"hackathon"`
	Scoring       Scoring       `toml:"scoring" yaml:"scoring"`
	Concurrency   Concurrency   `toml:"concurrency" yaml:"concurrency"`
	Retry         Retry         `toml:"retry" yaml:"retry"`
	Timeouts      Timeouts      `toml:"timeouts" yaml:"timeouts"`
	Pipeline      Pipeline      `toml:"pipeline" yaml:"pipeline"`
	Tools         Tools         `toml:"tools" yaml:"tools"`
	Credentials   Credentials   `toml:"credentials" yaml:"credentials"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory or next to the config file is loaded first so credentials
// can live outside the config.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	envFiles := []string{".env"}
	if exists {
		envFiles = append(envFiles, filepath.Join(filepath.Dir(resolvedPath), ".env"))
	}
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

// loadDotEnv loads each existing file without overriding variables already set.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load %s: %w", abs, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file not found: %s", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	for _, candidate := range []string{"hackreview.toml", "hackreview.yaml", "hackreview.yml"} {
		projectPath, err := filepath.Abs(candidate)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the connection settings for one provider role.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// CodeReviewLLM returns the settings for the code review provider. The API key
// falls back to the credential matching the provider.
func (c *Config) CodeReviewLLM() LLMConfig {
	cfg := LLMConfig{
		Provider:       c.CodeReview.Provider,
		APIKey:         strings.TrimSpace(c.CodeReview.APIKey),
		BaseURL:        strings.TrimSpace(c.CodeReview.BaseURL),
		Model:          strings.TrimSpace(c.CodeReview.Model),
		MaxTokens:      c.CodeReview.MaxTokens,
		TimeoutSeconds: c.Timeouts.LLMSeconds,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = c.credentialFor(cfg.Provider)
	}
	return cfg
}

// VideoAnalysisLLM returns the settings for the video analysis provider.
func (c *Config) VideoAnalysisLLM() LLMConfig {
	cfg := LLMConfig{
		Provider:       c.VideoAnalysis.Provider,
		APIKey:         strings.TrimSpace(c.VideoAnalysis.APIKey),
		BaseURL:        strings.TrimSpace(c.VideoAnalysis.BaseURL),
		Model:          strings.TrimSpace(c.VideoAnalysis.Model),
		TimeoutSeconds: c.Timeouts.LLMSeconds,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = c.credentialFor(cfg.Provider)
	}
	return cfg
}

// CredentialEnv names the environment variable that supplies a provider's key.
func CredentialEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

func (c *Config) credentialFor(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return c.Credentials.AnthropicAPIKey
	case ProviderGemini:
		return c.Credentials.GeminiAPIKey
	case ProviderOpenRouter:
		return c.Credentials.OpenRouterAPIKey
	default:
		return ""
	}
}

// CriterionNames returns the rubric keys in a stable order.
func (c *Config) CriterionNames() []string {
	names := make([]string, 0, len(c.Scoring.Criteria))
	for name := range c.Scoring.Criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScoringEnabled reports whether a rubric is configured.
func (c *Config) ScoringEnabled() bool {
	return len(c.Scoring.Criteria) > 0
}
