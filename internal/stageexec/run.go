package stageexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/state"
)

// ProcessFunc handles one item of a stage.
type ProcessFunc func(context.Context, stage.Item) (stage.Outcome, error)

// Options controls one stage execution.
type Options struct {
	Logger      *slog.Logger
	Stage       state.Stage
	Items       []stage.Item
	Process     ProcessFunc
	Store       state.Store
	Flags       *flags.Aggregator
	Concurrency int
	RunID       string
	Now         func() time.Time
	// Current holds the stored records of the stage. A SUCCESS result with the
	// same payload and flags as its current record is not rewritten.
	Current map[string]state.Record
}

// Result lists the records written by the execution, in item order.
type Result struct {
	Records []state.Record
	// Interrupted lists items that were canceled before a record was written.
	Interrupted []string
	// Unchanged counts results that matched their current record.
	Unchanged int
}

// Counts tallies the written records.
func (r Result) Counts() state.Counts {
	var counts state.Counts
	for _, record := range r.Records {
		switch record.Status {
		case state.StatusSuccess:
			counts.Success++
		case state.StatusFailed:
			counts.Failed++
		case state.StatusSkipped:
			counts.Skipped++
		}
	}
	return counts
}

// Run processes every item with a bounded worker pool. Item failures and
// panics become FAILED records; only a store write failure (or a canceled
// ctx) is returned as an error.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Process == nil {
		return Result{}, fmt.Errorf("stage %s: process function unavailable", opts.Stage.Lower())
	}
	if opts.Store == nil {
		return Result{}, fmt.Errorf("state store is required")
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	stageCtx := services.WithStage(ctx, opts.Stage.Lower())
	logger := logging.WithContext(stageCtx, opts.Logger)
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("items", len(opts.Items)),
		logging.Int("workers", workers),
	)
	started := time.Now()

	records := make([]*state.Record, len(opts.Items))
	interrupted := make([]bool, len(opts.Items))
	unchanged := make([]bool, len(opts.Items))
	group, groupCtx := errgroup.WithContext(stageCtx)
	group.SetLimit(workers)
	for i, item := range opts.Items {
		if groupCtx.Err() != nil {
			interrupted[i] = true
			continue
		}
		group.Go(func() error {
			if groupCtx.Err() != nil {
				interrupted[i] = true
				return nil
			}
			record, ok := processItem(groupCtx, logger, opts, item, now)
			if !ok {
				interrupted[i] = true
				return nil
			}
			if current, found := opts.Current[item.SubmissionID]; found && sameResult(current, record) {
				opts.Flags.Add(current.Flags...)
				records[i] = &current
				unchanged[i] = true
				return nil
			}
			// Completed work is persisted even if the run is being canceled.
			if err := opts.Store.Put(context.WithoutCancel(groupCtx), record); err != nil {
				return fmt.Errorf("persist %s record for %s: %w", opts.Stage.Lower(), item.SubmissionID, err)
			}
			opts.Flags.Add(record.Flags...)
			records[i] = &record
			return nil
		})
	}
	waitErr := group.Wait()

	var result Result
	for i, record := range records {
		if unchanged[i] {
			result.Unchanged++
		}
		if record != nil {
			result.Records = append(result.Records, *record)
		} else if interrupted[i] {
			result.Interrupted = append(result.Interrupted, opts.Items[i].SubmissionID)
		}
	}
	counts := result.Counts()
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("succeeded", counts.Success),
		logging.Int("failed", counts.Failed),
		logging.Int("unchanged", result.Unchanged),
		logging.Int("interrupted", len(result.Interrupted)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	if waitErr != nil {
		return result, waitErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// processItem runs the handler for one item. It returns false when the run
// was canceled while the item was in flight; such items get no record.
func processItem(ctx context.Context, logger *slog.Logger, opts Options, item stage.Item, now func() time.Time) (state.Record, bool) {
	itemCtx := services.WithSubmissionID(ctx, item.SubmissionID)
	itemLogger := logger.With(logging.String(logging.FieldSubmissionID, item.SubmissionID))

	outcome, err := safeProcess(itemCtx, opts.Process, item)
	if err != nil && ctx.Err() != nil {
		itemLogger.Info(
			"item interrupted",
			logging.String(logging.FieldEventType, "item_interrupted"),
			logging.String("reason", ctx.Err().Error()),
		)
		return state.Record{}, false
	}

	record := state.Record{
		SubmissionID: item.SubmissionID,
		Stage:        opts.Stage,
		Attempts:     outcome.Attempts,
		RunID:        opts.RunID,
		UpdatedAt:    now(),
	}
	if record.Attempts <= 0 {
		record.Attempts = 1
	}
	record.Flags = stampFlags(outcome.Flags, item.SubmissionID, opts.Stage)

	if err == nil {
		payload, encErr := state.EncodePayload(outcome.Payload)
		if encErr != nil {
			err = services.Wrap(services.ErrInvalidResponse, opts.Stage.Lower(), "encode payload", "", encErr)
		} else {
			record.Status = state.StatusSuccess
			record.Payload = payload
			itemLogger.Debug(
				"item processed",
				logging.String(logging.FieldEventType, "item_complete"),
				logging.Int("attempts", record.Attempts),
			)
			return record, true
		}
	}

	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = "stage failed"
	}
	record.Status = state.StatusFailed
	record.Error = &state.RecordError{Message: message, Category: string(details.Category)}
	failure := flags.Error(FailureCategory(opts.Stage), string(opts.Stage), message)
	failure.SubmissionID = item.SubmissionID
	record.Flags = append(record.Flags, failure)

	logging.WarnWithContext(
		itemLogger,
		"item failed",
		"item_failed",
		logging.String(logging.FieldErrorCategory, string(details.Category)),
		logging.String("error_message", message),
		logging.Int("attempts", record.Attempts),
		logging.String(logging.FieldErrorHint, errorHint(details.Category)),
		logging.String(logging.FieldImpact, "submission skipped by later stages"),
	)
	return record, true
}

func sameResult(current, next state.Record) bool {
	return current.Status == state.StatusSuccess &&
		next.Status == state.StatusSuccess &&
		bytes.Equal(current.Payload, next.Payload) &&
		slices.Equal(current.Flags, next.Flags)
}

func safeProcess(ctx context.Context, process ProcessFunc, item stage.Item) (outcome stage.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", item.SubmissionID, r)
		}
	}()
	return process(ctx, item)
}

// FailureCategory maps a stage to the flag raised when an item fails in it.
func FailureCategory(stage state.Stage) flags.Category {
	switch stage {
	case state.StageClone:
		return flags.CategoryCloneFailed
	case state.StageDownload:
		return flags.CategoryVideoUnavailable
	default:
		return flags.CategoryOther
	}
}

func stampFlags(in []flags.Flag, submissionID string, stage state.Stage) []flags.Flag {
	if len(in) == 0 {
		return nil
	}
	out := make([]flags.Flag, 0, len(in))
	for _, flag := range in {
		if flag.SubmissionID == "" {
			flag.SubmissionID = submissionID
		}
		if flag.Stage == "" {
			flag.Stage = string(stage)
		}
		out = append(out, flag)
	}
	return out
}

func errorHint(category services.Category) string {
	switch category {
	case services.CategoryAuth:
		return "check the provider API key"
	case services.CategoryRateLimit:
		return "lower concurrency.llm_concurrent_requests or rerun later"
	case services.CategoryTimeout:
		return "raise the matching timeouts.*_seconds value and rerun with --resume"
	case services.CategoryPrivate, services.CategoryNotFound:
		return "ask the team to make the repository public"
	case services.CategoryInvalidURL:
		return "fix the URL in the CSV and rerun with --resume=false for this stage"
	case services.CategoryInternal:
		return "report a bug with the run log attached"
	default:
		return "check logs for details"
	}
}

// IsCanceled reports whether err stems from run cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
