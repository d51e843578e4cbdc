package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"hackreview/internal/services/llm"
)

// scoreValue accepts a bare number, a numeric string ("7/10"), or an
// object with score and rationale.
type scoreValue struct {
	Score     float64
	Rationale string
	ok        bool
}

func (s *scoreValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		s.Score, s.ok = number, true
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if value, ok := parseScoreText(text); ok {
			s.Score, s.ok = value, true
		}
		return nil
	}
	var object struct {
		Score         json.RawMessage `json:"score"`
		Rationale     string          `json:"rationale"`
		Justification string          `json:"justification"`
	}
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("score: %w", err)
	}
	var inner scoreValue
	if len(object.Score) > 0 {
		if err := inner.UnmarshalJSON(object.Score); err != nil {
			return err
		}
	}
	s.Score, s.ok = inner.Score, inner.ok
	s.Rationale = strings.TrimSpace(object.Rationale)
	if s.Rationale == "" {
		s.Rationale = strings.TrimSpace(object.Justification)
	}
	return nil
}

func parseScoreText(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '/'); idx >= 0 {
		text = text[:idx]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type codePayload struct {
	Review    string                `json:"review"`
	Rationale string                `json:"rationale"`
	Scores    map[string]scoreValue `json:"scores"`
}

type videoPayload struct {
	TranscriptSummary  string                `json:"transcript_summary"`
	DemoClassification string                `json:"demo_classification"`
	IsRelatedToProject *bool                 `json:"is_related_to_project"`
	Review             string                `json:"review"`
	Scores             map[string]scoreValue `json:"scores"`
}

// parseCodeReview turns model output into a CodeResult, keeping only scores
// for the requested criteria.
func parseCodeReview(ctx context.Context, op, content string, criteria []Criterion) (CodeResult, error) {
	var payload codePayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return CodeResult{}, llm.InvalidResponse(ctx, op, []byte(content), err)
	}
	if len(criteria) == 0 {
		criteria = DefaultCriteria
	}
	result := CodeResult{
		Review:    strings.TrimSpace(payload.Review),
		Rationale: strings.TrimSpace(payload.Rationale),
		Scores:    make(map[string]CriterionScore, len(criteria)),
	}
	for _, criterion := range criteria {
		value, ok := lookupScore(payload.Scores, criterion.Key)
		if !ok {
			continue
		}
		result.Scores[criterion.Key] = CriterionScore{Score: clampScore(math.Round(value.Score)), Rationale: value.Rationale}
	}
	if result.Review == "" && result.Rationale == "" && len(result.Scores) == 0 {
		return CodeResult{}, llm.InvalidResponse(ctx, op, []byte(content), errors.New("review carried no text and no scores"))
	}
	if result.Review == "" {
		result.Review = result.Rationale
	}
	return result, nil
}

func lookupScore(scores map[string]scoreValue, key string) (scoreValue, bool) {
	if value, ok := scores[key]; ok && value.ok {
		return value, true
	}
	for candidate, value := range scores {
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(candidate)), " ", "_")
		if normalized == key && value.ok {
			return value, true
		}
	}
	return scoreValue{}, false
}

func parseVideoReview(ctx context.Context, op, content string) (VideoResult, error) {
	var payload videoPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return VideoResult{}, llm.InvalidResponse(ctx, op, []byte(content), err)
	}
	result := VideoResult{
		TranscriptSummary:  strings.TrimSpace(payload.TranscriptSummary),
		DemoClassification: ParseDemoClassification(payload.DemoClassification),
		RelatedToProject:   true,
		Review:             strings.TrimSpace(payload.Review),
	}
	if payload.IsRelatedToProject != nil {
		result.RelatedToProject = *payload.IsRelatedToProject
	}
	for key, value := range payload.Scores {
		if !value.ok {
			continue
		}
		if result.Scores == nil {
			result.Scores = make(map[string]CriterionScore)
		}
		result.Scores[strings.ToLower(strings.TrimSpace(key))] = CriterionScore{Score: clampScore(math.Round(value.Score)), Rationale: value.Rationale}
	}
	return result, nil
}
