package workflow

import (
	"context"

	"hackreview/internal/logging"
	"hackreview/internal/preflight"
)

// logPreflight reports environment problems at the start of a run. Failures
// are warnings only: a stage that really needs the missing tool or key fails
// in Prepare, and only when it has work.
func (m *Manager) logPreflight(ctx context.Context) {
	logger := logging.WithContext(ctx, m.logger)
	for _, r := range preflight.RunAll(ctx, m.cfg, m.dir.Root) {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run hackreview config validate"),
			logging.String(logging.FieldImpact, "stages that need it will fail if they have work"),
		)
	}
}
