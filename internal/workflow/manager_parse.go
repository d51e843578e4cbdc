package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"hackreview/internal/logging"
	"hackreview/internal/services"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

// maxReportedMismatches caps the rows listed in a reordered-CSV error.
const maxReportedMismatches = 5

// parse reads the CSV and records one PARSE record per submission. A record
// is rewritten only when the parsed row changed or resume is off. Submissions
// missing from the CSV lose their records in every stage.
func (m *Manager) parse(ctx context.Context, run *runState) (StageSummary, error) {
	summary := StageSummary{Stage: state.StageParse, Ran: true}
	logger := logging.WithContext(ctx, m.logger)

	if strings.TrimSpace(run.csvPath) == "" {
		return summary, services.Wrap(services.ErrValidation, "parse", "read submissions", "no submissions CSV provided (use --csv)", nil)
	}
	subs, err := submission.Parse(run.csvPath, submission.Options{
		Columns:   m.cfg.Columns,
		Hackathon: m.cfg.Hackathon,
	})
	if err != nil {
		return summary, err
	}

	existing, err := m.store.All(ctx, state.StageParse)
	if err != nil {
		return summary, fmt.Errorf("load parse records: %w", err)
	}
	if run.resume {
		if err := checkIdentity(run.csvPath, subs, existing); err != nil {
			return summary, err
		}
	}

	removed, err := m.dropRemoved(ctx, subs, existing)
	if err != nil {
		return summary, err
	}

	for _, sub := range subs {
		payload, err := state.EncodePayload(sub)
		if err != nil {
			return summary, fmt.Errorf("encode submission %s: %w", sub.ID, err)
		}
		if previous, ok := existing[sub.ID]; ok && run.resume && previous.Status == state.StatusSuccess && bytes.Equal(previous.Payload, payload) {
			summary.Reused++
			continue
		}
		record := state.Record{
			SubmissionID: sub.ID,
			Stage:        state.StageParse,
			Status:       state.StatusSuccess,
			Payload:      payload,
			Flags:        sub.Flags(),
			Attempts:     1,
			RunID:        run.id,
			UpdatedAt:    m.now(),
		}
		if err := m.store.Put(ctx, record); err != nil {
			return summary, fmt.Errorf("persist parse record for %s: %w", sub.ID, err)
		}
		run.flags.Add(record.Flags...)
		summary.Processed++
	}
	run.submissions = subs
	summary.Counts.Success = len(subs)

	logger.Info(
		"submissions parsed",
		logging.String(logging.FieldEventType, "parse_complete"),
		logging.Int("submissions", len(subs)),
		logging.Int("written", summary.Processed),
		logging.Int("unchanged", summary.Reused),
		logging.Int("removed", removed),
	)
	return summary, nil
}

// dropRemoved deletes every stage record and the project report of
// submissions that are no longer in the CSV.
func (m *Manager) dropRemoved(ctx context.Context, subs []submission.Submission, existing map[string]state.Record) (int, error) {
	current := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		current[sub.ID] = struct{}{}
	}
	removed := 0
	for _, id := range state.SortedIDs(existing) {
		if _, ok := current[id]; ok {
			continue
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return removed, fmt.Errorf("drop removed submission %s: %w", id, err)
		}
		if err := os.Remove(m.dir.ProjectReportPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove report of %s: %w", id, err)
		}
		logging.WithContext(ctx, m.logger).Info(
			"submission removed from CSV",
			logging.String(logging.FieldEventType, "submission_removed"),
			logging.String(logging.FieldSubmissionID, id),
		)
		removed++
	}
	return removed, nil
}

// checkIdentity rejects a CSV whose rows map onto existing ids with a
// different team or project, which happens when rows are reordered and ids
// are derived from row numbers.
func checkIdentity(path string, subs []submission.Submission, existing map[string]state.Record) error {
	var mismatches []string
	for _, sub := range subs {
		record, ok := existing[sub.ID]
		if !ok {
			continue
		}
		var previous submission.Submission
		if err := record.Decode(&previous); err != nil {
			return &submission.ParseError{Path: path, Err: err}
		}
		if previous.IdentityKey() != sub.IdentityKey() {
			mismatches = append(mismatches, fmt.Sprintf("%s was %q, now %q", sub.ID, previous.DisplayName(), sub.DisplayName()))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	shown := mismatches
	if len(shown) > maxReportedMismatches {
		shown = shown[:maxReportedMismatches]
	}
	return &submission.ParseError{
		Path: path,
		Err: fmt.Errorf(
			"CSV rows were reordered (%d ids changed identity: %s); restore the original order, set columns.id, or use a new output directory",
			len(mismatches), strings.Join(shown, "; "),
		),
	}
}

// loadSubmissions reads the submissions recorded by the last parse, in CSV order.
func (m *Manager) loadSubmissions(ctx context.Context) ([]submission.Submission, error) {
	records, err := m.store.All(ctx, state.StageParse)
	if err != nil {
		return nil, fmt.Errorf("load parse records: %w", err)
	}
	subs := make([]submission.Submission, 0, len(records))
	for _, id := range state.SortedIDs(records) {
		record := records[id]
		if record.Status != state.StatusSuccess {
			continue
		}
		var sub submission.Submission
		if err := record.Decode(&sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	submission.SortByNumber(subs)
	return subs, nil
}
