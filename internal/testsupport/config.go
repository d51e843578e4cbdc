package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hackreview/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config with credentials for every provider, a
// zero-delay retry policy, and a rubric-free scoring section.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfgVal := config.Default()
	cfgVal.Credentials.AnthropicAPIKey = "test"
	cfgVal.Credentials.GeminiAPIKey = "test"
	cfgVal.Credentials.OpenRouterAPIKey = "test"
	cfgVal.Retry.BaseDelaySeconds = 0.001
	cfgVal.Retry.MaxDelaySeconds = 0.001

	builder := &configBuilder{
		t:       t,
		baseDir: t.TempDir(),
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRubric installs scoring criteria.
func WithRubric(criteria map[string]config.Criterion) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.Criteria = criteria
	}
}

// WithContinueOnFailure sets pipeline.continue_on_failure.
func WithContinueOnFailure(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.ContinueOnFailure = enabled
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, every tool hackreview runs is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"git", "yt-dlp", "ffprobe", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
