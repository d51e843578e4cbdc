package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hackreview/internal/flags"
)

// Stage identifies one phase of the review pipeline.
type Stage string

const (
	StageParse    Stage = "PARSE"
	StageClone    Stage = "CLONE"
	StageDownload Stage = "DOWNLOAD"
	StageAnalyze  Stage = "ANALYZE"
	StageReport   Stage = "REPORT"
)

// Stages lists the pipeline in dependency order.
var Stages = []Stage{StageParse, StageClone, StageDownload, StageAnalyze, StageReport}

// ParseStage converts a user or database value into a Stage.
func ParseStage(value string) (Stage, error) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(value)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("unknown stage %q", value)
}

// Valid reports whether s is one of the pipeline stages.
func (s Stage) Valid() bool {
	for _, stage := range Stages {
		if stage == s {
			return true
		}
	}
	return false
}

// Previous returns the upstream stage. PARSE has none.
func (s Stage) Previous() (Stage, bool) {
	for i, stage := range Stages {
		if stage == s && i > 0 {
			return Stages[i-1], true
		}
	}
	return "", false
}

// Lower returns the lowercase stage name used in logs and file names.
func (s Stage) Lower() string {
	return strings.ToLower(string(s))
}

func (s Stage) table() string {
	return s.Lower() + "_records"
}

// Status is the outcome of one stage for one submission.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// RecordError describes why a stage failed. Present only on FAILED records.
type RecordError struct {
	Message  string `json:"message"`
	Category string `json:"category"`
}

// Record is the durable outcome of one stage for one submission. Only the
// latest record per (SubmissionID, Stage) is kept.
type Record struct {
	SubmissionID string          `json:"submission_id"`
	Stage        Stage           `json:"stage"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Error        *RecordError    `json:"error,omitempty"`
	Flags        []flags.Flag    `json:"flags,omitempty"`
	Attempts     int             `json:"attempts"`
	RunID        string          `json:"run_id"`
	UpdatedAt    time.Time       `json:"timestamp"`
}

// StoredFlags exposes the record's flags to the flag aggregator.
func (r Record) StoredFlags() []flags.Flag {
	return r.Flags
}

// Succeeded reports whether the record is SUCCESS.
func (r *Record) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Decode unmarshals the stage payload into target.
func (r Record) Decode(target any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("decode %s payload for %s: empty payload", r.Stage.Lower(), r.SubmissionID)
	}
	if err := json.Unmarshal(r.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload for %s: %w", r.Stage.Lower(), r.SubmissionID, err)
	}
	return nil
}

// SkipPayload is stored on SKIPPED records.
type SkipPayload struct {
	Reason string `json:"reason"`
}

// SkipReason returns the reason recorded on a SKIPPED record.
func (r Record) SkipReason() string {
	if r.Status != StatusSkipped || len(r.Payload) == 0 {
		return ""
	}
	var payload SkipPayload
	if err := json.Unmarshal(r.Payload, &payload); err != nil {
		return ""
	}
	return payload.Reason
}

// EncodePayload marshals a stage payload.
func EncodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// Counts tallies records by status for one stage.
type Counts struct {
	Success int
	Failed  int
	Skipped int
}

// Total returns the number of records counted.
func (c Counts) Total() int {
	return c.Success + c.Failed + c.Skipped
}

func (c *Counts) add(status Status, n int) {
	switch status {
	case StatusSuccess:
		c.Success += n
	case StatusFailed:
		c.Failed += n
	case StatusSkipped:
		c.Skipped += n
	}
}
