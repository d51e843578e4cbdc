package workflow

import (
	"context"
	"fmt"

	"hackreview/internal/flags"
	"hackreview/internal/stage"
	"hackreview/internal/state"
)

// StageStatus is the stored record tally for one stage.
type StageStatus struct {
	Stage  state.Stage
	Counts state.Counts
}

// StatusSummary represents lightweight workflow diagnostics read from the store.
type StatusSummary struct {
	Stages      []StageStatus
	Flags       flags.Report
	StageHealth map[string]stage.Health
	// LastRunID is the run id of the most recently written record.
	LastRunID string
}

// Status returns per-stage counts, the stored flags, and stage health.
func (m *Manager) Status(ctx context.Context) (StatusSummary, error) {
	var summary StatusSummary
	var records []state.Record
	var latest state.Record
	for _, name := range state.Stages {
		counts, err := m.store.Counts(ctx, name)
		if err != nil {
			return summary, fmt.Errorf("count %s records: %w", name.Lower(), err)
		}
		summary.Stages = append(summary.Stages, StageStatus{Stage: name, Counts: counts})

		all, err := m.store.All(ctx, name)
		if err != nil {
			return summary, fmt.Errorf("load %s records: %w", name.Lower(), err)
		}
		for _, id := range state.SortedIDs(all) {
			record := all[id]
			records = append(records, record)
			if record.UpdatedAt.After(latest.UpdatedAt) {
				latest = record
			}
		}
	}
	summary.Flags = flags.Collect(flags.FromRecords(records...))
	summary.LastRunID = latest.RunID

	stages := m.configuredStages()
	summary.StageHealth = make(map[string]stage.Health, len(stages))
	for _, ps := range stages {
		summary.StageHealth[ps.stage.Lower()] = ps.handler.HealthCheck(ctx)
	}
	return summary, nil
}
