package review

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const codeReviewSystemPrompt = `You are an expert hackathon judge. You read source code carefully, you are specific, and you use the full 1-10 scoring range. You respond only with JSON.`

const codeReviewTemplate = `Review this hackathon submission and write a narrative review followed by scores.

## Review format

The "review" field must use this structure, as markdown:

**What it does:** 1-2 sentences describing the project.

**Architecture:** 2-3 sentences on the technical architecture, frameworks, and key design decisions.

**AI Integration:** 2-4 sentences on how the project uses AI/LLMs (extended thinking, MCP, tool use, agent patterns, streaming). Rate it None / Basic / Competent / Creative / Exceptional.

**Depth & Execution:** 2-3 sentences on engineering quality, iteration evidence, tests, deployment readiness.

**Demo Assessment:** 1-2 sentences based on the transcript. Does it show a working product?

## Criteria

%s
## Scoring calibration

Use the full 1-10 range. Target distribution:
- 1-2: about 10%% (clearly incomplete or non-functional)
- 3-4: about 20%% (basic, boilerplate, minimal customization)
- 5-6: about 40%% (solid effort, average quality; most should land here)
- 7-8: about 20%% (strong, stands out)
- 9-10: about 10%% (exceptional, best-in-class)

## Submission

**Project:** %s
**Team:** %s (Team #%d)

**Description:**
%s

**Repository stats:**
- LOC: %d
- Commits during hackathon: %d
- Primary language: %s
- Has tests: %t
- Hackathon period flag: %s
- Single-commit dump: %t

**AI integration patterns found:** %s

**Key source files:**
%s

**Demo video transcript:**
%s

Respond with ONLY valid JSON:
%s
`

const videoAnalysisTemplate = `You are reviewing a hackathon demo video. Analyze this video and provide:

1. Transcript summary: a concise summary of what the presenter says and shows (2-3 sentences).

2. Demo classification, one of:
   - "broken": the video doesn't play, is corrupted, or shows nothing relevant
   - "slides_only": only slides or mockups, no working product shown
   - "basic_working": shows a working product but unpolished
   - "polished": clean, clear demo with real functionality
   - "exceptional": genuinely impressive, makes you want to use the product

3. Project relevance: is this video actually demonstrating the project described below? (true/false)
   If the video seems unrelated (random content, the wrong video), mark it false.

4. Review: 2-3 sentences assessing the demo quality.

5. Scores (1-10 each):
   - demo: overall demo quality

Project being reviewed:
- Name: %s
- Team: %s
- Description: %s

Respond with ONLY valid JSON:
{"transcript_summary": "...", "demo_classification": "...", "is_related_to_project": true, "review": "...", "scores": {"demo": N}}
`

// CriterionLabel renders a rubric key for humans ("ai_use" -> "Ai Use").
// Casers carry state, so each call builds its own.
func CriterionLabel(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// BuildCodeReviewPrompt renders the user prompt for a code review.
func BuildCodeReviewPrompt(input CodeInput) string {
	criteria := input.Criteria
	if len(criteria) == 0 {
		criteria = DefaultCriteria
	}
	var block strings.Builder
	keys := make([]string, 0, len(criteria))
	for _, criterion := range criteria {
		fmt.Fprintf(&block, "**%s (%d%%):** %s\n", CriterionLabel(criterion.Key), int(criterion.Weight*100+0.5), criterion.Description)
		block.WriteString("- 1-3: Poor / 4-6: Average / 7-8: Strong / 9-10: Exceptional\n\n")
		keys = append(keys, fmt.Sprintf(`"%s": {"score": N, "rationale": "one sentence"}`, criterion.Key))
	}
	schema := `{"review": "markdown review", "scores": {` + strings.Join(keys, ", ") + `}, "rationale": "1-2 sentence summary"}`

	patterns := "none detected"
	if len(input.Patterns) > 0 {
		patterns = strings.Join(input.Patterns, ", ")
	}
	transcript := strings.TrimSpace(input.Transcript)
	if transcript == "" {
		transcript = "(no transcript available)"
	}
	sources := strings.TrimSpace(input.SourceFiles)
	if sources == "" {
		sources = "(no key files found)"
	}
	lang := input.PrimaryLanguage
	if lang == "" {
		lang = "unknown"
	}
	period := input.PeriodFlag
	if period == "" {
		period = "unknown"
	}
	return fmt.Sprintf(
		codeReviewTemplate,
		block.String(),
		input.ProjectName,
		input.TeamName,
		input.Number,
		truncate(input.Description, descriptionLimit),
		input.LOC,
		input.Commits,
		lang,
		input.HasTests,
		period,
		input.SingleCommit,
		patterns,
		sources,
		transcript,
		schema,
	)
}

// BuildVideoPrompt renders the prompt sent alongside a demo video.
func BuildVideoPrompt(input VideoInput) string {
	return fmt.Sprintf(videoAnalysisTemplate, input.ProjectName, input.TeamName, truncate(input.Description, 500))
}
