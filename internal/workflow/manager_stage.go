package workflow

import (
	"context"
	"fmt"

	"hackreview/internal/logging"
	"hackreview/internal/resume"
	"hackreview/internal/stage"
	"hackreview/internal/stageexec"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

// runStage performs one transition: skip blocked items, plan, prepare when
// there is work, execute, and tally the resulting records.
func (m *Manager) runStage(ctx context.Context, run *runState, ps pipelineStage) (StageSummary, error) {
	summary := StageSummary{Stage: ps.stage}

	upstream, err := m.loadUpstream(ctx, ps.stage)
	if err != nil {
		return summary, err
	}
	candidates, err := m.skipBlocked(ctx, run, ps.stage, upstream)
	if err != nil {
		return summary, err
	}

	// The report is a pure function of persisted state and is always rendered;
	// on resume an identical rendering keeps its stored record.
	reuse := run.resume && ps.stage != state.StageReport
	plan, err := resume.Compute(ctx, m.store, ps.stage, candidates, reuse)
	if err != nil {
		return summary, err
	}
	summary.Reused = len(plan.Reused)

	if !plan.Empty() {
		summary.Ran = true
		summary.Processed = len(plan.Process)
		logger := m.stageLogger(ctx)
		if aware, ok := ps.handler.(stage.LoggerAware); ok {
			aware.SetLogger(logger)
		}
		if err := ps.handler.Prepare(ctx); err != nil {
			return summary, fmt.Errorf("prepare %s: %w", ps.stage.Lower(), err)
		}
		if len(plan.Retried) > 0 {
			logging.WithContext(ctx, m.logger).Info(
				"retrying previous failures",
				logging.String(logging.FieldEventType, "stage_retry_failed"),
				logging.Int("count", len(plan.Retried)),
			)
		}

		var current map[string]state.Record
		if run.resume {
			if current, err = m.store.All(ctx, ps.stage); err != nil {
				return summary, fmt.Errorf("load %s records: %w", ps.stage.Lower(), err)
			}
		}
		result, err := stageexec.Run(ctx, stageexec.Options{
			Logger:      logging.WithContext(ctx, m.logger),
			Stage:       ps.stage,
			Items:       m.buildItems(run, plan.Process, upstream),
			Process:     ps.handler.Process,
			Store:       m.store,
			Flags:       run.flags,
			Concurrency: ps.workers,
			RunID:       run.id,
			Now:         m.now,
			Current:     current,
		})
		summary.Interrupted = len(result.Interrupted)
		if err != nil {
			return summary, err
		}
	}

	counts, err := m.countRecords(ctx, run, ps.stage)
	if err != nil {
		return summary, err
	}
	summary.Counts = counts
	return summary, nil
}

// loadUpstream loads the records of every stage before name.
func (m *Manager) loadUpstream(ctx context.Context, name state.Stage) (map[state.Stage]map[string]state.Record, error) {
	upstream := make(map[state.Stage]map[string]state.Record)
	for _, candidate := range state.Stages {
		if candidate == name {
			break
		}
		records, err := m.store.All(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("load %s records: %w", candidate.Lower(), err)
		}
		upstream[candidate] = records
	}
	return upstream, nil
}

// skipBlocked writes SKIPPED records for submissions whose previous stage did
// not succeed and returns the ids that may run.
func (m *Manager) skipBlocked(ctx context.Context, run *runState, name state.Stage, upstream map[state.Stage]map[string]state.Record) ([]string, error) {
	previous, ok := name.Previous()
	if !ok {
		return run.ids(), nil
	}
	existing, err := m.store.All(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", name.Lower(), err)
	}

	var candidates []string
	for _, id := range run.ids() {
		record, found := upstream[previous][id]
		if found && record.Status == state.StatusSuccess {
			candidates = append(candidates, id)
			continue
		}
		reason := fmt.Sprintf("upstream %s missing", previous)
		if found {
			reason = fmt.Sprintf("upstream %s %s", previous, record.Status)
		}
		if current, ok := existing[id]; ok && current.Status == state.StatusSkipped && current.SkipReason() == reason {
			continue
		}
		payload, err := state.EncodePayload(state.SkipPayload{Reason: reason})
		if err != nil {
			return nil, err
		}
		skipped := state.Record{
			SubmissionID: id,
			Stage:        name,
			Status:       state.StatusSkipped,
			Payload:      payload,
			RunID:        run.id,
			UpdatedAt:    m.now(),
		}
		if err := m.store.Put(ctx, skipped); err != nil {
			return nil, fmt.Errorf("persist %s skip for %s: %w", name.Lower(), id, err)
		}
	}
	return candidates, nil
}

func (m *Manager) buildItems(run *runState, ids []string, upstream map[state.Stage]map[string]state.Record) []stage.Item {
	byID := make(map[string]submission.Submission, len(run.submissions))
	for _, sub := range run.submissions {
		byID[sub.ID] = sub
	}
	items := make([]stage.Item, 0, len(ids))
	for _, id := range ids {
		item := stage.Item{
			SubmissionID: id,
			Submission:   byID[id],
			Upstream:     make(map[state.Stage]state.Record, len(upstream)),
		}
		for name, records := range upstream {
			if record, ok := records[id]; ok {
				item.Upstream[name] = record
			}
		}
		items = append(items, item)
	}
	return items
}

// countRecords tallies the latest records of the run's submissions for name.
func (m *Manager) countRecords(ctx context.Context, run *runState, name state.Stage) (state.Counts, error) {
	var counts state.Counts
	records, err := m.store.All(ctx, name)
	if err != nil {
		return counts, fmt.Errorf("load %s records: %w", name.Lower(), err)
	}
	for _, id := range run.ids() {
		record, ok := records[id]
		if !ok {
			continue
		}
		switch record.Status {
		case state.StatusSuccess:
			counts.Success++
		case state.StatusFailed:
			counts.Failed++
		case state.StatusSkipped:
			counts.Skipped++
		}
	}
	return counts, nil
}
