package preflight

import (
	"fmt"

	"hackreview/internal/config"
)

// CheckProvidersFromConfig summarizes the configured review providers for
// status output.
func CheckProvidersFromConfig(cfg *config.Config) []Result {
	if cfg == nil {
		return []Result{{Name: "Providers", Detail: "Unknown"}}
	}
	code := cfg.CodeReviewLLM()
	video := cfg.VideoAnalysisLLM()
	return []Result{
		providerStatus("Code review", code),
		providerStatus("Video analysis", video),
		scoringStatus(cfg),
	}
}

func providerStatus(name string, llm config.LLMConfig) Result {
	if llm.Provider == config.ProviderNone {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	check := CheckCredential(name, llm)
	if !check.Passed {
		return check
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s / %s", llm.Provider, llm.Model)}
}

func scoringStatus(cfg *config.Config) Result {
	if !cfg.ScoringEnabled() {
		return Result{Name: "Scoring", Passed: true, Detail: "Disabled (no criteria)"}
	}
	return Result{Name: "Scoring", Passed: true, Detail: fmt.Sprintf("%d criteria", len(cfg.Scoring.Criteria))}
}
