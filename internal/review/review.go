package review

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/retry"
	"hackreview/internal/services"
	"hackreview/internal/services/llm"
)

const (
	minScore = 1
	maxScore = 10

	// descriptionLimit bounds the team supplied description quoted in prompts.
	descriptionLimit = 800
)

// Criterion is one rubric dimension the code reviewer scores.
type Criterion struct {
	Key         string
	Weight      float64
	Description string
}

// DefaultCriteria is used for prompting when no rubric is configured.
var DefaultCriteria = []Criterion{
	{Key: "impact", Weight: 0.25, Description: "Real-world potential, who benefits, product viability"},
	{Key: "ai_use", Weight: 0.25, Description: "Creativity and depth of AI/LLM integration"},
	{Key: "depth", Weight: 0.20, Description: "Engineering quality, iteration, craft"},
	{Key: "demo", Weight: 0.30, Description: "Demo quality, working product, presentation"},
}

// CriteriaFromConfig converts the configured rubric, falling back to DefaultCriteria.
func CriteriaFromConfig(cfg *config.Config) []Criterion {
	if cfg == nil || !cfg.ScoringEnabled() {
		return append([]Criterion(nil), DefaultCriteria...)
	}
	out := make([]Criterion, 0, len(cfg.Scoring.Criteria))
	for _, name := range cfg.CriterionNames() {
		criterion := cfg.Scoring.Criteria[name]
		out = append(out, Criterion{Key: name, Weight: criterion.Weight, Description: criterion.Description})
	}
	return out
}

// CodeInput is everything a provider needs to review one repository.
type CodeInput struct {
	SubmissionID    string
	Number          int
	ProjectName     string
	TeamName        string
	Description     string
	SourceFiles     string
	LOC             int
	Commits         int
	PrimaryLanguage string
	HasTests        bool
	PeriodFlag      string
	SingleCommit    bool
	Patterns        []string
	Transcript      string
	Criteria        []Criterion
}

// CriterionScore is one clamped 1-10 score with the model's justification.
type CriterionScore struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// CodeResult is the parsed code review.
type CodeResult struct {
	Provider     string                    `json:"provider"`
	Model        string                    `json:"model"`
	Review       string                    `json:"review"`
	Rationale    string                    `json:"rationale,omitempty"`
	Scores       map[string]CriterionScore `json:"scores,omitempty"`
	InputTokens  int                       `json:"input_tokens,omitempty"`
	OutputTokens int                       `json:"output_tokens,omitempty"`
}

// DemoClassification grades what a demo video shows.
type DemoClassification string

const (
	DemoBroken       DemoClassification = "broken"
	DemoSlidesOnly   DemoClassification = "slides_only"
	DemoBasicWorking DemoClassification = "basic_working"
	DemoPolished     DemoClassification = "polished"
	DemoExceptional  DemoClassification = "exceptional"
	DemoUnknown      DemoClassification = "unknown"
)

// ParseDemoClassification maps model output onto the known classes.
func ParseDemoClassification(value string) DemoClassification {
	normalized := DemoClassification(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), " ", "_"))
	switch normalized {
	case DemoBroken, DemoSlidesOnly, DemoBasicWorking, DemoPolished, DemoExceptional:
		return normalized
	default:
		return DemoUnknown
	}
}

// VideoInput describes one downloaded demo video.
type VideoInput struct {
	SubmissionID string
	ProjectName  string
	TeamName     string
	Description  string
	VideoPath    string
	SizeBytes    int64
}

// VideoResult is the parsed video analysis. Skipped is set when video
// review is disabled.
type VideoResult struct {
	Provider           string                    `json:"provider"`
	Model              string                    `json:"model,omitempty"`
	Skipped            bool                      `json:"skipped,omitempty"`
	TranscriptSummary  string                    `json:"transcript_summary,omitempty"`
	DemoClassification DemoClassification        `json:"demo_classification,omitempty"`
	RelatedToProject   bool                      `json:"is_related_to_project"`
	Review             string                    `json:"review,omitempty"`
	Scores             map[string]CriterionScore `json:"scores,omitempty"`
}

// CodeReviewer reviews repository sources.
type CodeReviewer interface {
	Name() string
	Review(ctx context.Context, input CodeInput) (CodeResult, error)
}

// VideoReviewer watches demo videos.
type VideoReviewer interface {
	Name() string
	Review(ctx context.Context, input VideoInput) (VideoResult, error)
}

type settings struct {
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
	inlineLimit  int64
	sleep        func(context.Context, time.Duration) error
}

// Option customizes provider construction.
type Option func(*settings)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.httpClient = client
	}
}

// WithPolling sets how often and how many times an uploaded video is polled
// until the provider finishes processing it.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(s *settings) {
		s.pollInterval = interval
		if maxPolls > 0 {
			s.maxPolls = maxPolls
		}
	}
}

// WithInlineLimit sets the largest video sent inline instead of through an upload.
func WithInlineLimit(bytes int64) Option {
	return func(s *settings) {
		s.inlineLimit = bytes
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		pollInterval: 2 * time.Second,
		maxPolls:     150,
		inlineLimit:  18 << 20,
		sleep:        retry.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

func (s settings) client(timeoutSeconds int) *llm.Client {
	return llm.NewClient(timeoutSeconds, llm.WithHTTPClient(s.httpClient))
}

// NewCodeReviewer selects the code review provider named by cfg.
func NewCodeReviewer(cfg config.LLMConfig, opts ...Option) (CodeReviewer, error) {
	if err := requireKey(cfg); err != nil {
		return nil, err
	}
	s := newSettings(opts)
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return newAnthropic(cfg, s), nil
	case config.ProviderGemini:
		return newGemini(cfg, s), nil
	case config.ProviderOpenRouter:
		return newOpenRouter(cfg, s), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "analyze", "code reviewer", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
}

// NewVideoReviewer selects the video provider named by cfg. Provider "none"
// returns a reviewer that marks every result as skipped.
func NewVideoReviewer(cfg config.LLMConfig, opts ...Option) (VideoReviewer, error) {
	if cfg.Provider == config.ProviderNone || cfg.Provider == "" {
		return Disabled{}, nil
	}
	if cfg.Provider != config.ProviderGemini {
		return nil, services.Wrap(services.ErrConfiguration, "analyze", "video reviewer", fmt.Sprintf("provider %q cannot review video", cfg.Provider), nil)
	}
	if err := requireKey(cfg); err != nil {
		return nil, err
	}
	return geminiVideo{newGemini(cfg, newSettings(opts))}, nil
}

func requireKey(cfg config.LLMConfig) error {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return nil
	}
	env := config.CredentialEnv(cfg.Provider)
	if env == "" {
		return services.Wrap(services.ErrConfiguration, "analyze", "credentials", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}
	return services.Wrap(services.ErrConfiguration, "analyze", "credentials", fmt.Sprintf("%s api key missing (set %s)", cfg.Provider, env), nil)
}

// Disabled is the video reviewer used when video analysis is turned off.
type Disabled struct{}

// Name implements VideoReviewer.
func (Disabled) Name() string { return config.ProviderNone }

// Review implements VideoReviewer.
func (Disabled) Review(context.Context, VideoInput) (VideoResult, error) {
	return VideoResult{Provider: config.ProviderNone, Skipped: true, RelatedToProject: true, DemoClassification: DemoUnknown}, nil
}

func clampScore(value float64) float64 {
	if value < minScore {
		return minScore
	}
	if value > maxScore {
		return maxScore
	}
	return value
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
