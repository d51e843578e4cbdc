package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Store persists the latest stage record per submission.
type Store interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context, submissionID string, stage Stage) (*Record, error)
	// Put overwrites any record with the same key and is durable on return.
	Put(ctx context.Context, record Record) error
	All(ctx context.Context, stage Stage) (map[string]Record, error)
	Counts(ctx context.Context, stage Stage) (Counts, error)
	// Delete removes the records of every stage for one submission. Deleting
	// an unknown id is not an error.
	Delete(ctx context.Context, submissionID string) error
	Close() error
}

// ErrInvalidRecord reports a record that cannot be stored.
var ErrInvalidRecord = errors.New("invalid stage record")

func validateRecord(record Record) error {
	if record.SubmissionID == "" {
		return fmt.Errorf("%w: submission id required", ErrInvalidRecord)
	}
	if !record.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidRecord, record.Stage)
	}
	switch record.Status {
	case StatusSuccess, StatusSkipped:
		if record.Error != nil {
			return fmt.Errorf("%w: %s record carries an error", ErrInvalidRecord, record.Status)
		}
	case StatusFailed:
		if record.Error == nil {
			return fmt.Errorf("%w: FAILED record requires an error", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, record.Status)
	}
	return nil
}

func validateStage(stage Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

// Latest returns the records of every stage for one submission, in stage order.
func Latest(ctx context.Context, store Store, submissionID string) ([]Record, error) {
	var out []Record
	for _, stage := range Stages {
		record, err := store.Get(ctx, submissionID, stage)
		if err != nil {
			return nil, err
		}
		if record != nil {
			out = append(out, *record)
		}
	}
	return out, nil
}

// AllStages loads every record in the store, stage by stage.
func AllStages(ctx context.Context, store Store) ([]Record, error) {
	var out []Record
	for _, stage := range Stages {
		records, err := store.All(ctx, stage)
		if err != nil {
			return nil, err
		}
		for _, id := range SortedIDs(records) {
			out = append(out, records[id])
		}
	}
	return out, nil
}

// SortedIDs returns the keys of records in ascending order.
func SortedIDs(records map[string]Record) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
