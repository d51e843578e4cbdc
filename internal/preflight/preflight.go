package preflight

import (
	"context"

	"hackreview/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for cfg and the run directory.
func RunAll(ctx context.Context, cfg *config.Config, runDir string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckRunDirectory("Run directory", runDir))
	results = append(results, CheckTools(cfg)...)
	results = append(results, CheckCredential("Code review credentials", cfg.CodeReviewLLM()))
	if cfg.VideoAnalysis.Provider != config.ProviderNone {
		results = append(results, CheckCredential("Video analysis credentials", cfg.VideoAnalysisLLM()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed {
			out = append(out, result)
		}
	}
	return out
}
