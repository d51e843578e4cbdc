// Package scoring turns LLM criterion scores into a weighted total per
// submission and ranks submissions for the leaderboard.
//
// LLM scores always win. Criteria the reviews did not score fall back to
// repository heuristics so a partial review still produces a comparable
// total.
package scoring

import (
	"math"
	"sort"
	"strings"

	"hackreview/internal/config"
	"hackreview/internal/gitrepo"
	"hackreview/internal/repoinspect"
	"hackreview/internal/review"
)

// Source records where a criterion score came from.
type Source string

const (
	SourceLLM       Source = "llm_review"
	SourceVideo     Source = "video_review"
	SourceHeuristic Source = "heuristic"
)

// Rubric maps criterion keys to their weight and description.
type Rubric map[string]config.Criterion

// Score is one criterion outcome.
type Score struct {
	Score     float64 `json:"score"`
	Source    Source  `json:"source"`
	Rationale string  `json:"rationale,omitempty"`
}

// Breakdown is the scored view of one submission.
type Breakdown struct {
	Scores        map[string]Score `json:"scores"`
	WeightedTotal float64          `json:"weighted_total"`
}

// Evidence is the repository and video data the heuristics read.
type Evidence struct {
	Description          string
	Files                repoinspect.Files
	Structure            repoinspect.Structure
	Integration          repoinspect.Integration
	History              gitrepo.History
	VideoAvailable       bool
	VideoDurationSeconds float64
}

// Input bundles the reviews of one submission with its evidence.
type Input struct {
	Code     *review.CodeResult
	Video    *review.VideoResult
	Evidence Evidence
}

// Compute computes the breakdown for one submission. An empty rubric disables
// scoring and yields nil.
func Compute(input Input, rubric Rubric) *Breakdown {
	if len(rubric) == 0 {
		return nil
	}
	breakdown := &Breakdown{Scores: make(map[string]Score, len(rubric))}
	var total, weights float64
	for _, key := range keys(rubric) {
		score := scoreCriterion(key, input)
		breakdown.Scores[key] = score
		weight := rubric[key].Weight
		total += score.Score * weight
		weights += weight
	}
	if weights > 0 {
		breakdown.WeightedTotal = round(total/weights, 2)
	}
	return breakdown
}

func scoreCriterion(key string, input Input) Score {
	if key == "demo" && input.Video != nil && !input.Video.Skipped {
		if value, ok := input.Video.Scores["demo"]; ok {
			return Score{Score: value.Score, Source: SourceVideo, Rationale: input.Video.Review}
		}
	}
	if input.Code != nil {
		if value, ok := input.Code.Scores[key]; ok {
			return Score{Score: value.Score, Source: SourceLLM, Rationale: value.Rationale}
		}
	}
	evidence := input.Evidence
	var value float64
	switch key {
	case "impact":
		value = heuristicImpact(evidence)
	case "ai_use":
		value = heuristicAIUse(evidence)
	case "depth":
		value = heuristicDepth(evidence)
	case "demo":
		value = heuristicDemo(evidence)
	default:
		value = 5
	}
	return Score{Score: round(value, 1), Source: SourceHeuristic}
}

// logScale maps value onto 0..1 with midpoint at 0.5, growing logarithmically.
func logScale(value, midpoint, steepness float64) float64 {
	if value <= 0 {
		return 0
	}
	return 1 / (1 + math.Exp(-steepness*(math.Log(value+1)-math.Log(midpoint+1))))
}

func heuristicImpact(e Evidence) float64 {
	score := math.Min(2, float64(len(strings.Fields(e.Description)))/80)
	score += logScale(float64(e.Files.TotalLOC), 5000, 1.2) * 2.5
	score += math.Min(1, float64(len(e.Structure.Frameworks))*0.4)
	if e.Files.HasReadme {
		score++
	}
	for _, present := range []bool{e.Structure.HasDocker, e.Structure.HasCI, e.Structure.HasEnvExample} {
		if present {
			score += 0.5
		}
	}
	return clamp(score, 1, 10)
}

var aiBonus = []struct {
	pattern string
	bonus   float64
}{
	{"extended_thinking", 0.4},
	{"mcp_server", 0.3},
	{"agentic_pattern", 0.3},
	{"tool_use", 0.2},
}

var sdkPatterns = []string{"anthropic_sdk", "openai_sdk", "gemini_sdk"}

func heuristicAIUse(e Evidence) float64 {
	if e.Integration.Score == 0 {
		return 1
	}
	score := 1 + logScale(float64(e.Integration.Score), 60, 1)*7
	found := make(map[string]bool, len(e.Integration.Patterns))
	for _, match := range e.Integration.Patterns {
		found[match.Name] = true
	}
	for _, entry := range aiBonus {
		if found[entry.pattern] {
			score += entry.bonus
		}
	}
	for _, name := range sdkPatterns {
		if found[name] {
			score += 0.3
			break
		}
	}
	return clamp(score, 1, 8)
}

var markupLanguages = map[string]bool{"Markdown": true, "JSON": true, "YAML": true, "TOML": true}

func heuristicDepth(e Evidence) float64 {
	commits := e.History.CommitsDuring
	if commits == 0 {
		commits = e.History.TotalCommits
	}
	score := logScale(float64(commits), 50, 1) * 2.5
	score += logScale(float64(e.Files.TotalLOC), 10000, 1) * 2
	if e.Files.HasTests {
		score++
	}
	if e.Structure.HasClaudeMD {
		score += 0.5
	}
	if e.Files.HasReadme {
		score += 0.5
	}
	codeLanguages := 0
	for _, lang := range e.Files.Languages {
		if !markupLanguages[lang.Name] {
			codeLanguages++
		}
	}
	if codeLanguages >= 3 {
		score += 0.5
	}
	if e.Structure.HasDocker {
		score += 0.5
	}
	if e.Structure.HasCI {
		score += 0.5
	}
	score += logScale(float64(e.Files.FileCount), 50, 1)

	if e.History.SingleCommit {
		score -= 2
	}
	if e.Structure.BoilerplateHeavy {
		score -= 2
	}
	switch e.History.Period {
	case gitrepo.PeriodPreexistingProject:
		score -= 3
	case gitrepo.PeriodSignificantPriorWork:
		score -= 1.5
	}
	return clamp(score, 1, 10)
}

func heuristicDemo(e Evidence) float64 {
	if !e.VideoAvailable {
		return 1
	}
	score := 1.0
	switch duration := e.VideoDurationSeconds; {
	case duration < 30:
		score += 0.3
	case duration < 60:
		score += 1
	case duration <= 200:
		score += 2.5
	default:
		score += 2
	}
	return clamp(score, 1, 8)
}

func keys(rubric Rubric) []string {
	out := make([]string, 0, len(rubric))
	for key := range rubric {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, value))
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
