// Package resume decides which submissions a stage must (re)process and
// which prior results can be reused.
package resume

import (
	"context"
	"fmt"

	"hackreview/internal/state"
)

// Plan splits stage candidates into work to do and results to reuse. Both
// slices keep the candidate order.
type Plan struct {
	Stage   state.Stage
	Process []string
	Reused  []string
	// Retried lists ids in Process whose previous record was FAILED or SKIPPED.
	Retried []string
}

// Compute computes the work for stage over candidates, which must already be
// restricted to submissions whose upstream stage succeeded.
//
// With resume off every candidate is processed. With resume on a candidate
// is processed when it has no record or a non-SUCCESS record; a SKIPPED
// record on a candidate means its upstream blocker has since cleared.
func Compute(ctx context.Context, store state.Store, stage state.Stage, candidates []string, resume bool) (Plan, error) {
	plan := Plan{Stage: stage}
	if !stage.Valid() {
		return plan, fmt.Errorf("resume plan: unknown stage %q", stage)
	}
	if !resume {
		plan.Process = append(plan.Process, candidates...)
		return plan, nil
	}
	existing, err := store.All(ctx, stage)
	if err != nil {
		return plan, fmt.Errorf("resume plan: load %s records: %w", stage.Lower(), err)
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		record, ok := existing[id]
		switch {
		case !ok:
			plan.Process = append(plan.Process, id)
		case record.Status == state.StatusSuccess:
			plan.Reused = append(plan.Reused, id)
		default:
			plan.Process = append(plan.Process, id)
			plan.Retried = append(plan.Retried, id)
		}
	}
	return plan, nil
}

// Empty reports whether the plan has no work to do.
func (p Plan) Empty() bool {
	return len(p.Process) == 0
}
