package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/services"
	"hackreview/internal/state"
)

// fail marks the run FATAL and logs the error that stopped it.
func (m *Manager) fail(ctx context.Context, summary RunSummary, name state.Stage, runErr error) (RunSummary, error) {
	summary.Outcome = OutcomeFatal
	logger := logging.WithContext(withStageContext(ctx, name, summary.RunID), m.logger)

	if errors.Is(runErr, context.Canceled) {
		logging.WarnWithContext(
			logger,
			"run interrupted",
			"run_interrupted",
			logging.String(logging.FieldErrorHint, "rerun with --resume to continue where the run stopped"),
			logging.String(logging.FieldImpact, "items in flight were not recorded"),
		)
		return summary, runErr
	}

	details := services.Details(runErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", name.Lower())
	}
	logging.ErrorWithContext(
		logger,
		"run failed",
		"run_failed",
		logging.String(logging.FieldErrorCategory, string(details.Category)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, fatalHint(runErr)),
		logging.Error(runErr),
	)
	return summary, runErr
}

// halt raises the pipeline-level flag recorded when continue_on_failure is
// off and a stage produced failures.
func (m *Manager) halt(ctx context.Context, run *runState, name state.Stage, failed int) {
	flag := flags.Error(
		flags.CategoryOther,
		string(name),
		fmt.Sprintf("pipeline halted after %s: %d submission(s) failed and pipeline.continue_on_failure is false", name, failed),
	)
	run.pipelineFlags = append(run.pipelineFlags, flag)
	run.flags.Add(flag)
	logging.WarnWithContext(
		logging.WithContext(ctx, m.logger),
		"pipeline halted",
		"pipeline_halted",
		logging.Int("failed", failed),
		logging.String(logging.FieldErrorHint, "fix the failures and rerun with --resume, or enable pipeline.continue_on_failure"),
		logging.String(logging.FieldImpact, "later stages did not run"),
	)
}

func fatalHint(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return "fix the submissions CSV or column mapping and rerun"
	case errors.Is(err, services.ErrConfiguration):
		return "run hackreview config validate"
	default:
		return "check the run directory and state database"
	}
}
