package workflow

import (
	"context"
	"log/slog"

	"hackreview/internal/logging"
	"hackreview/internal/services"
	"hackreview/internal/state"
)

// stageLogger returns the logger handed to a stage handler. Handlers add
// their own component attribute, so it is built from the base logger.
func (m *Manager) stageLogger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, m.base)
}

func withStageContext(ctx context.Context, name state.Stage, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if runID != "" {
		ctx = services.WithRunID(ctx, runID)
	}
	if name != "" {
		ctx = services.WithStage(ctx, name.Lower())
	}
	return ctx
}

func (m *Manager) logStageSummary(ctx context.Context, summary StageSummary) {
	logger := logging.WithContext(ctx, m.logger)
	if !summary.Ran {
		logger.Info(
			"stage skipped",
			logging.String(logging.FieldEventType, "stage_reused"),
			logging.Int("reused", summary.Reused),
			logging.Int("skipped", summary.Counts.Skipped),
		)
		return
	}
	logger.Info(
		"stage summary",
		logging.String(logging.FieldEventType, "stage_summary"),
		logging.Int("processed", summary.Processed),
		logging.Int("reused", summary.Reused),
		logging.Int("succeeded", summary.Counts.Success),
		logging.Int("failed", summary.Counts.Failed),
		logging.Int("skipped", summary.Counts.Skipped),
		logging.Int("interrupted", summary.Interrupted),
	)
}
