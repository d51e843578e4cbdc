package workflow

import (
	"context"
	"fmt"
	"time"

	"hackreview/internal/flags"
	"hackreview/internal/logging"
	"hackreview/internal/reporting"
	"hackreview/internal/services"
	"hackreview/internal/state"
)

// Run executes the whole pipeline: parse, then every configured stage in
// order, then the aggregate reports. The returned summary is populated even
// when an error is returned; its Outcome is FATAL in that case.
func (m *Manager) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	run := m.newRun(opts)
	ctx = services.WithRunID(ctx, run.id)
	started := time.Now()
	summary := RunSummary{RunID: run.id}

	logging.WithContext(ctx, m.logger).Info(
		"run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("csv", opts.CSVPath),
		logging.String("output", m.dir.Root),
		logging.Bool("resume", opts.Resume),
	)
	m.logPreflight(ctx)

	parsed, err := m.parse(withStageContext(ctx, state.StageParse, run.id), run)
	summary.Stages = append(summary.Stages, parsed)
	if err != nil {
		return m.fail(ctx, summary, state.StageParse, err)
	}
	summary.Submissions = len(run.submissions)

	for _, ps := range m.configuredStages() {
		stageCtx := withStageContext(ctx, ps.stage, run.id)
		result, err := m.runStage(stageCtx, run, ps)
		summary.Stages = append(summary.Stages, result)
		if err != nil {
			return m.fail(ctx, summary, ps.stage, err)
		}
		m.logStageSummary(stageCtx, result)
		if result.Counts.Failed > 0 && !m.cfg.Pipeline.ContinueOnFailure {
			m.halt(stageCtx, run, ps.stage, result.Counts.Failed)
			summary.Halted = true
			break
		}
	}

	return m.finish(ctx, run, summary, state.StageReport, true, started)
}

// RunStage executes exactly one stage against the persisted upstream
// records. PARSE needs RunOptions.CSVPath; the other stages read the
// submissions recorded by a previous parse.
func (m *Manager) RunStage(ctx context.Context, name state.Stage, opts RunOptions) (RunSummary, error) {
	run := m.newRun(opts)
	ctx = services.WithRunID(ctx, run.id)
	started := time.Now()
	summary := RunSummary{RunID: run.id}
	if !name.Valid() {
		return m.fail(ctx, summary, name, fmt.Errorf("unknown stage %q", name))
	}
	stageCtx := withStageContext(ctx, name, run.id)

	if name == state.StageParse {
		parsed, err := m.parse(stageCtx, run)
		summary.Stages = append(summary.Stages, parsed)
		if err != nil {
			return m.fail(ctx, summary, name, err)
		}
		summary.Submissions = len(run.submissions)
		return m.finish(ctx, run, summary, name, false, started)
	}

	ps, ok := m.stageFor(name)
	if !ok {
		err := services.Wrap(services.ErrConfiguration, name.Lower(), "run stage", "stage has no handler configured", nil)
		return m.fail(ctx, summary, name, err)
	}
	subs, err := m.loadSubmissions(ctx)
	if err != nil {
		return m.fail(ctx, summary, name, err)
	}
	if len(subs) == 0 {
		err := services.Wrap(services.ErrValidation, name.Lower(), "load submissions", "no parsed submissions in this output directory; run parse first", nil)
		return m.fail(ctx, summary, name, err)
	}
	run.submissions = subs
	summary.Submissions = len(subs)

	result, err := m.runStage(stageCtx, run, ps)
	summary.Stages = append(summary.Stages, result)
	if err != nil {
		return m.fail(ctx, summary, name, err)
	}
	m.logStageSummary(stageCtx, result)
	return m.finish(ctx, run, summary, name, name == state.StageReport, started)
}

func (m *Manager) newRun(opts RunOptions) *runState {
	return &runState{
		id:      m.newRunID(),
		resume:  opts.Resume,
		csvPath: opts.CSVPath,
		flags:   flags.NewAggregator(),
	}
}

// finish decides the outcome, renders the aggregate reports when asked, and
// logs the run result.
func (m *Manager) finish(ctx context.Context, run *runState, summary RunSummary, target state.Stage, aggregate bool, started time.Time) (RunSummary, error) {
	outcome, err := m.outcome(ctx, run, target, summary.Halted)
	if err != nil {
		return m.fail(ctx, summary, target, err)
	}
	summary.Outcome = outcome

	if aggregate {
		artifacts, err := reporting.Aggregate(ctx, reporting.AggregateOptions{
			Dir:           m.dir,
			Store:         m.store,
			Submissions:   run.submissions,
			HackathonName: m.cfg.Hackathon.Name,
			RunID:         run.id,
			Outcome:       string(outcome),
			PipelineFlags: run.pipelineFlags,
			Now:           m.now,
		})
		if err != nil {
			return m.fail(ctx, summary, state.StageReport, err)
		}
		summary.Artifacts = &artifacts
		summary.Flags = artifacts.Flags
	} else {
		report, err := m.collectFlags(ctx, run)
		if err != nil {
			return m.fail(ctx, summary, target, err)
		}
		summary.Flags = report
	}

	logging.WithContext(ctx, m.logger).Info(
		"run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("outcome", string(summary.Outcome)),
		logging.Int("submissions", summary.Submissions),
		logging.Int("flags", summary.Flags.Total()),
		logging.Int("new_flags", len(run.flags.Flags())),
		logging.Bool("halted", summary.Halted),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return summary, nil
}

// outcome is SUCCESS when every submission holds a SUCCESS record for target
// and nothing was raised at pipeline level.
func (m *Manager) outcome(ctx context.Context, run *runState, target state.Stage, halted bool) (Outcome, error) {
	if halted || len(run.pipelineFlags) > 0 {
		return OutcomePartial, nil
	}
	records, err := m.store.All(ctx, target)
	if err != nil {
		return OutcomeFatal, fmt.Errorf("load %s records: %w", target.Lower(), err)
	}
	for _, id := range run.ids() {
		record, ok := records[id]
		if !ok || record.Status != state.StatusSuccess {
			return OutcomePartial, nil
		}
	}
	return OutcomeSuccess, nil
}

// collectFlags rebuilds the flag report of the run's submissions from the store.
func (m *Manager) collectFlags(ctx context.Context, run *runState) (flags.Report, error) {
	current := make(map[string]struct{}, len(run.submissions))
	for _, id := range run.ids() {
		current[id] = struct{}{}
	}
	var records []state.Record
	for _, name := range state.Stages {
		all, err := m.store.All(ctx, name)
		if err != nil {
			return flags.Report{}, fmt.Errorf("load %s records: %w", name.Lower(), err)
		}
		for _, id := range state.SortedIDs(all) {
			if _, ok := current[id]; ok {
				records = append(records, all[id])
			}
		}
	}
	collected := flags.FromRecords(records...)
	collected = append(collected, run.pipelineFlags...)
	return flags.Collect(collected), nil
}
