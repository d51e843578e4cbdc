package workflow

import (
	"hackreview/internal/flags"
	"hackreview/internal/reporting"
	"hackreview/internal/stage"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

// StageSet bundles the handlers of the per-item stages.
type StageSet struct {
	Cloner     stage.Handler
	Downloader stage.Handler
	Analyzer   stage.Handler
	Reporter   stage.Handler
}

// RunOptions control one pipeline invocation.
type RunOptions struct {
	// Resume reuses SUCCESS records. When false every candidate is reprocessed.
	Resume bool
	// CSVPath is the submissions file read by the parse stage.
	CSVPath string
}

// Outcome is the overall result of a run.
type Outcome string

const (
	// OutcomeSuccess means every submission reached the final stage with SUCCESS.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomePartial means the run completed but some submission failed or
	// was skipped, or a pipeline-level flag was raised.
	OutcomePartial Outcome = "PARTIAL"
	// OutcomeFatal means the run stopped on a parse, configuration, or store error.
	OutcomeFatal Outcome = "FATAL"
)

// StageSummary reports what one stage did during a run. Counts tally the
// latest records of the run's submissions after the stage finished.
type StageSummary struct {
	Stage       state.Stage
	Counts      state.Counts
	Processed   int
	Reused      int
	Interrupted int
	Ran         bool
}

// RunSummary is returned by Run and RunStage.
type RunSummary struct {
	RunID       string
	Outcome     Outcome
	Submissions int
	Stages      []StageSummary
	Flags       flags.Report
	// Halted is set when pipeline.continue_on_failure stopped the run early.
	Halted    bool
	Artifacts *reporting.Artifacts
}

// Stage returns the summary of stage, if it ran.
func (s RunSummary) Stage(name state.Stage) (StageSummary, bool) {
	for _, summary := range s.Stages {
		if summary.Stage == name {
			return summary, true
		}
	}
	return StageSummary{}, false
}

type pipelineStage struct {
	stage   state.Stage
	handler stage.Handler
	workers int
}

// runState carries what a single run has learned so far.
type runState struct {
	id            string
	resume        bool
	csvPath       string
	submissions   []submission.Submission
	flags         *flags.Aggregator
	pipelineFlags []flags.Flag
}

func (r *runState) ids() []string {
	out := make([]string, 0, len(r.submissions))
	for _, sub := range r.submissions {
		out = append(out, sub.ID)
	}
	return out
}
