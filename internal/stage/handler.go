package stage

import (
	"context"
	"fmt"
	"log/slog"

	"hackreview/internal/flags"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

// Handler describes the contract the pipeline controller needs from each
// per-item stage (CLONE, DOWNLOAD, ANALYZE, REPORT).
type Handler interface {
	// Prepare checks stage preconditions such as credentials. It runs only
	// when the stage has work, so a missing key never blocks a resumed run.
	Prepare(context.Context) error
	Process(context.Context, Item) (Outcome, error)
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the stage-scoped logger before processing.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Item is one submission flowing through a stage, with the latest records
// of the stages before it.
type Item struct {
	SubmissionID string
	Submission   submission.Submission
	Upstream     map[state.Stage]state.Record
}

// Decode unmarshals the payload of an upstream stage record.
func (i Item) Decode(stage state.Stage, target any) error {
	record, ok := i.Upstream[stage]
	if !ok {
		return fmt.Errorf("%s: no %s record", i.SubmissionID, stage.Lower())
	}
	return record.Decode(target)
}

// Succeeded reports whether the upstream stage finished with SUCCESS.
func (i Item) Succeeded(stage state.Stage) bool {
	record, ok := i.Upstream[stage]
	return ok && record.Status == state.StatusSuccess
}

// Outcome is what a handler produced for one item. Flags and Attempts are
// persisted even when Process also returns an error.
type Outcome struct {
	Payload  any
	Flags    []flags.Flag
	Attempts int
}
