package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hackreview/internal/cloning"
	"hackreview/internal/config"
	"hackreview/internal/flags"
	"hackreview/internal/gitrepo"
	"hackreview/internal/reporting"
	"hackreview/internal/rundir"
	"hackreview/internal/services"
	"hackreview/internal/stage"
	"hackreview/internal/state"
	"hackreview/internal/testsupport"
	"hackreview/internal/workflow"
)

type stubStage struct {
	name       string
	mu         sync.Mutex
	calls      map[string]int
	prepares   int
	prepareErr error
	failures   map[string]error
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, calls: make(map[string]int), failures: make(map[string]error)}
}

func (s *stubStage) Prepare(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepares++
	return s.prepareErr
}

func (s *stubStage) Process(_ context.Context, item stage.Item) (stage.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[item.SubmissionID]++
	if err := s.failures[item.SubmissionID]; err != nil {
		return stage.Outcome{Attempts: 1}, err
	}
	return stage.Outcome{Payload: map[string]string{"stage": s.name}}, nil
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubStage) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *stubStage) prepareCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepares
}

type harness struct {
	cfg      *config.Config
	store    *state.MemoryStore
	dir      rundir.Dir
	csv      string
	clone    *stubStage
	download *stubStage
	analyze  *stubStage
	manager  *workflow.Manager
}

const twoTeams = "Team Name,Project Name,GitHub,Demo Video\n" +
	"Alpha,Alpha App,https://github.com/alpha/app,https://youtu.be/alpha\n" +
	"Beta,Beta App,https://github.com/beta/app,https://youtu.be/beta\n"

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	base := t.TempDir()
	h := &harness{
		cfg:      testsupport.NewConfig(t, opts...),
		store:    state.NewMemoryStore(),
		dir:      rundir.New(filepath.Join(base, "out")),
		csv:      filepath.Join(base, "submissions.csv"),
		clone:    newStubStage("cloning"),
		download: newStubStage("downloading"),
		analyze:  newStubStage("analysis"),
	}
	testsupport.WriteText(t, h.csv, twoTeams)
	if err := h.dir.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	var tick int64
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}
	h.manager = workflow.NewManager(h.cfg, h.store, h.dir, nil, workflow.WithClock(clock))
	h.configure(h.clone)
	return h
}

func (h *harness) configure(cloner stage.Handler) {
	h.manager.ConfigureStages(workflow.StageSet{
		Cloner:     cloner,
		Downloader: h.download,
		Analyzer:   h.analyze,
		Reporter:   reporting.NewReporter(h.dir, nil),
	})
}

func (h *harness) run(t *testing.T, resume bool) workflow.RunSummary {
	t.Helper()
	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{Resume: resume, CSVPath: h.csv})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func (h *harness) record(t *testing.T, id string, name state.Stage) state.Record {
	t.Helper()
	record, err := h.store.Get(context.Background(), id, name)
	if err != nil {
		t.Fatalf("Get %s/%s: %v", id, name, err)
	}
	if record == nil {
		t.Fatalf("no %s record for %s", name, id)
	}
	return *record
}

func TestRunProcessesEverySubmission(t *testing.T) {
	h := newHarness(t)
	summary := h.run(t, true)

	if summary.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS", summary.Outcome)
	}
	if summary.Submissions != 2 {
		t.Fatalf("submissions = %d, want 2", summary.Submissions)
	}
	for _, fake := range []*stubStage{h.clone, h.download, h.analyze} {
		if got := fake.total(); got != 2 {
			t.Fatalf("%s calls = %d, want 2", fake.name, got)
		}
	}
	for _, id := range []string{"001_alpha_app", "002_beta_app"} {
		if _, err := os.Stat(h.dir.ProjectReportPath(id)); err != nil {
			t.Fatalf("project report for %s: %v", id, err)
		}
		if record := h.record(t, id, state.StageReport); record.Status != state.StatusSuccess {
			t.Fatalf("%s report status = %s", id, record.Status)
		}
	}
	if summary.Artifacts == nil {
		t.Fatal("expected aggregate artifacts")
	}
	if _, err := os.Stat(summary.Artifacts.SummaryPath); err != nil {
		t.Fatalf("summary.md: %v", err)
	}
	if summary.Flags.Total() != 0 {
		t.Fatalf("flags = %+v, want none", summary.Flags.Flags)
	}
}

func TestRunResumePerformsNoCollaboratorWork(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)
	before := h.record(t, "001_alpha_app", state.StageClone)
	prepares := h.analyze.prepareCount()

	summary := h.run(t, true)

	for _, fake := range []*stubStage{h.clone, h.download, h.analyze} {
		if got := fake.total(); got != 2 {
			t.Fatalf("%s calls after resume = %d, want 2", fake.name, got)
		}
	}
	if h.analyze.prepareCount() != prepares {
		t.Fatal("analyze Prepare ran without pending work")
	}
	after := h.record(t, "001_alpha_app", state.StageClone)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.RunID != before.RunID {
		t.Fatalf("reused clone record was rewritten: %+v", after)
	}
	clone, ok := summary.Stage(state.StageClone)
	if !ok || clone.Reused != 2 || clone.Ran {
		t.Fatalf("clone summary = %+v", clone)
	}
	parse, _ := summary.Stage(state.StageParse)
	if parse.Reused != 2 || parse.Processed != 0 {
		t.Fatalf("parse summary = %+v, want 2 unchanged rows", parse)
	}
	if summary.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s", summary.Outcome)
	}
}

func TestRunIsolatesCloneFailure(t *testing.T) {
	h := newHarness(t)
	h.clone.failures["002_beta_app"] = services.Wrap(services.ErrNotFound, "clone", "git clone", "repository not found", nil)

	summary := h.run(t, true)

	if summary.Outcome != workflow.OutcomePartial {
		t.Fatalf("outcome = %s, want PARTIAL", summary.Outcome)
	}
	failed := h.record(t, "002_beta_app", state.StageClone)
	if failed.Status != state.StatusFailed || failed.Error == nil || failed.Error.Category != string(services.CategoryNotFound) {
		t.Fatalf("clone record = %+v", failed)
	}
	wantReasons := map[state.Stage]string{
		state.StageDownload: "upstream CLONE FAILED",
		state.StageAnalyze:  "upstream DOWNLOAD SKIPPED",
		state.StageReport:   "upstream ANALYZE SKIPPED",
	}
	for name, reason := range wantReasons {
		record := h.record(t, "002_beta_app", name)
		if record.Status != state.StatusSkipped || record.SkipReason() != reason {
			t.Fatalf("%s record = %s %q, want SKIPPED %q", name, record.Status, record.SkipReason(), reason)
		}
	}
	if h.download.calls["002_beta_app"] != 0 || h.analyze.calls["002_beta_app"] != 0 {
		t.Fatal("blocked submission reached a later stage")
	}
	if _, err := os.Stat(h.dir.ProjectReportPath("001_alpha_app")); err != nil {
		t.Fatalf("healthy submission report missing: %v", err)
	}
	if _, err := os.Stat(h.dir.ProjectReportPath("002_beta_app")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed submission should have no report, stat err = %v", err)
	}
	if summary.Flags.Total() != 1 {
		t.Fatalf("flags = %+v, want exactly one", summary.Flags.Flags)
	}
	flag := summary.Flags.Flags[0]
	if flag.Category != flags.CategoryCloneFailed || flag.Severity != flags.SeverityError || flag.SubmissionID != "002_beta_app" {
		t.Fatalf("flag = %+v", flag)
	}
	clone, _ := summary.Stage(state.StageClone)
	if clone.Counts.Success != 1 || clone.Counts.Failed != 1 {
		t.Fatalf("clone counts = %+v", clone.Counts)
	}
}

func TestRunResumeRetriesFailuresButKeepsSkipRecords(t *testing.T) {
	h := newHarness(t)
	h.clone.failures["002_beta_app"] = services.Wrap(services.ErrTimeout, "clone", "git clone", "timed out", nil)
	h.run(t, true)
	skipped := h.record(t, "002_beta_app", state.StageDownload)

	h.run(t, true)

	if got := h.clone.calls["002_beta_app"]; got != 2 {
		t.Fatalf("failed clone calls = %d, want retry on resume", got)
	}
	if got := h.clone.calls["001_alpha_app"]; got != 1 {
		t.Fatalf("successful clone calls = %d, want 1", got)
	}
	again := h.record(t, "002_beta_app", state.StageDownload)
	if !again.UpdatedAt.Equal(skipped.UpdatedAt) {
		t.Fatal("identical skip record was rewritten")
	}

	delete(h.clone.failures, "002_beta_app")
	summary := h.run(t, true)
	if summary.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome after fix = %s, want SUCCESS", summary.Outcome)
	}
	if record := h.record(t, "002_beta_app", state.StageDownload); record.Status != state.StatusSuccess {
		t.Fatalf("download after fix = %s, want SUCCESS", record.Status)
	}
}

type timeoutGit struct {
	mu    sync.Mutex
	calls int
}

func (g *timeoutGit) Binary() string { return "git" }

func (g *timeoutGit) Clone(context.Context, string, string) (gitrepo.Metadata, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return gitrepo.Metadata{}, services.Wrap(services.ErrTimeout, "clone", "git clone", "clone timed out", context.DeadlineExceeded)
}

func (g *timeoutGit) Log(context.Context, string) ([]gitrepo.Commit, error) {
	return nil, nil
}

func TestRunRetriesTimeoutsUpToBudget(t *testing.T) {
	h := newHarness(t, testsupport.WithStubbedBinaries("git"))
	git := &timeoutGit{}
	h.configure(cloning.NewCloner(h.cfg, h.dir, git, nil))

	summary := h.run(t, true)

	want := h.cfg.Retry.Attempts * 2
	if git.calls != want {
		t.Fatalf("clone calls = %d, want %d (attempt budget per submission)", git.calls, want)
	}
	record := h.record(t, "001_alpha_app", state.StageClone)
	if record.Status != state.StatusFailed || record.Error.Category != string(services.CategoryTimeout) {
		t.Fatalf("clone record = %+v", record)
	}
	if record.Attempts != h.cfg.Retry.Attempts {
		t.Fatalf("attempts = %d, want %d", record.Attempts, h.cfg.Retry.Attempts)
	}
	if summary.Outcome != workflow.OutcomePartial {
		t.Fatalf("outcome = %s", summary.Outcome)
	}
}

func TestRunWithoutResumeReprocessesEverything(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)
	before := h.record(t, "001_alpha_app", state.StageAnalyze)

	h.run(t, false)

	for _, fake := range []*stubStage{h.clone, h.download, h.analyze} {
		if got := fake.total(); got != 4 {
			t.Fatalf("%s calls = %d, want 4", fake.name, got)
		}
	}
	after := h.record(t, "001_alpha_app", state.StageAnalyze)
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Fatalf("timestamp not refreshed: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
	if after.RunID == before.RunID {
		t.Fatal("run id not refreshed")
	}
}

func TestRunStageOverwritesRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.manager.RunStage(ctx, state.StageParse, workflow.RunOptions{Resume: true, CSVPath: h.csv}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	var lastRun string
	for i := 0; i < 2; i++ {
		summary, err := h.manager.RunStage(ctx, state.StageClone, workflow.RunOptions{Resume: false})
		if err != nil {
			t.Fatalf("clone run %d: %v", i, err)
		}
		lastRun = summary.RunID
	}
	records, err := h.store.All(ctx, state.StageClone)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("clone records = %d, want one per submission", len(records))
	}
	if got := h.record(t, "001_alpha_app", state.StageClone).RunID; got != lastRun {
		t.Fatalf("record run id = %s, want latest %s", got, lastRun)
	}
	if h.clone.total() != 4 {
		t.Fatalf("clone calls = %d, want 4", h.clone.total())
	}
}

func TestRunStageAnalyzeReusesUpstreamRecords(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)

	summary, err := h.manager.RunStage(context.Background(), state.StageAnalyze, workflow.RunOptions{Resume: false})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if h.clone.total() != 2 || h.download.total() != 2 {
		t.Fatal("standalone analyze redid upstream work")
	}
	if h.analyze.total() != 4 {
		t.Fatalf("analyze calls = %d, want 4", h.analyze.total())
	}
	if len(summary.Stages) != 1 || summary.Stages[0].Stage != state.StageAnalyze {
		t.Fatalf("stages = %+v", summary.Stages)
	}
	if summary.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s", summary.Outcome)
	}
	if summary.Artifacts != nil {
		t.Fatal("standalone analyze should not render aggregate reports")
	}
}

func TestRunStageRequiresParsedSubmissions(t *testing.T) {
	h := newHarness(t)
	summary, err := h.manager.RunStage(context.Background(), state.StageClone, workflow.RunOptions{Resume: true})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if summary.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want FATAL", summary.Outcome)
	}
}

func TestRunRejectsReorderedRows(t *testing.T) {
	h := newHarness(t)
	testsupport.WriteText(t, h.csv, "Team Name,Project Name,GitHub\n"+
		"Alpha,Chatbot,https://github.com/alpha/bot\n"+
		"Beta,Chatbot,https://github.com/beta/bot\n")
	h.run(t, true)

	testsupport.WriteText(t, h.csv, "Team Name,Project Name,GitHub\n"+
		"Beta,Chatbot,https://github.com/beta/bot\n"+
		"Alpha,Chatbot,https://github.com/alpha/bot\n")
	summary, err := h.manager.Run(context.Background(), workflow.RunOptions{Resume: true, CSVPath: h.csv})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "reordered") {
		t.Fatalf("err = %v, want reordered rows error", err)
	}
	if summary.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want FATAL", summary.Outcome)
	}
	if h.clone.total() != 2 {
		t.Fatal("fatal parse must stop later stages")
	}

	if _, err := h.manager.Run(context.Background(), workflow.RunOptions{Resume: false, CSVPath: h.csv}); err != nil {
		t.Fatalf("forced run after reorder: %v", err)
	}
}

func TestRunPreparesStageOnlyWithPendingWork(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)
	h.analyze.prepareErr = services.Wrap(services.ErrConfiguration, "analyze", "prepare", "ANTHROPIC_API_KEY not set", nil)

	summary := h.run(t, true)
	if summary.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("fully reused run outcome = %s", summary.Outcome)
	}

	summary, err := h.manager.RunStage(context.Background(), state.StageAnalyze, workflow.RunOptions{Resume: false})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if summary.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want FATAL", summary.Outcome)
	}
	if h.analyze.total() != 2 {
		t.Fatal("items processed after failed Prepare")
	}
}

func TestRunHaltsWhenContinueOnFailureDisabled(t *testing.T) {
	h := newHarness(t, testsupport.WithContinueOnFailure(false))
	h.clone.failures["002_beta_app"] = services.Wrap(services.ErrPrivate, "clone", "git clone", "repository is private", nil)

	summary := h.run(t, true)

	if !summary.Halted || summary.Outcome != workflow.OutcomePartial {
		t.Fatalf("summary = halted %v outcome %s", summary.Halted, summary.Outcome)
	}
	if h.download.total() != 0 {
		t.Fatal("download ran after halt")
	}
	pipeline := summary.Flags.PipelineFlags()
	if len(pipeline) != 1 || pipeline[0].Severity != flags.SeverityError {
		t.Fatalf("pipeline flags = %+v", pipeline)
	}
	if _, ok := summary.Stage(state.StageDownload); ok {
		t.Fatal("download stage should not appear in a halted summary")
	}
}

func TestStatusReportsStoredCounts(t *testing.T) {
	h := newHarness(t)
	h.clone.failures["002_beta_app"] = services.Wrap(services.ErrNotFound, "clone", "git clone", "repository not found", nil)
	summary := h.run(t, true)

	status, err := h.manager.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Stages) != len(state.Stages) {
		t.Fatalf("stages = %d", len(status.Stages))
	}
	for _, entry := range status.Stages {
		if entry.Stage == state.StageClone && (entry.Counts.Success != 1 || entry.Counts.Failed != 1) {
			t.Fatalf("clone counts = %+v", entry.Counts)
		}
	}
	if status.Flags.Total() != 1 {
		t.Fatalf("flags = %d, want 1", status.Flags.Total())
	}
	if status.LastRunID != summary.RunID {
		t.Fatalf("last run = %q, want %q", status.LastRunID, summary.RunID)
	}
	if !status.StageHealth["clone"].Ready {
		t.Fatalf("health = %+v", status.StageHealth)
	}
}

func TestRunResumeKeepsIdenticalReportRecords(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)
	before := h.record(t, "001_alpha_app", state.StageReport)

	summary := h.run(t, true)

	after := h.record(t, "001_alpha_app", state.StageReport)
	if after.RunID != before.RunID || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("identical report record was rewritten: before %+v after %+v", before, after)
	}
	if after.RunID == summary.RunID {
		t.Fatalf("report record carries the resumed run id %q", after.RunID)
	}
	if _, err := os.Stat(h.dir.ProjectReportPath("001_alpha_app")); err != nil {
		t.Fatalf("project report: %v", err)
	}

	// Without resume every report record is rewritten.
	h.run(t, false)
	rewritten := h.record(t, "001_alpha_app", state.StageReport)
	if rewritten.RunID == before.RunID {
		t.Fatal("report record kept after a full rerun")
	}
}

func TestReparseDropsRemovedRows(t *testing.T) {
	h := newHarness(t)
	h.run(t, true)

	testsupport.WriteText(t, h.csv, "Team Name,Project Name,GitHub,Demo Video\n"+
		"Alpha,Alpha App,https://github.com/alpha/app,https://youtu.be/alpha\n")
	resumed := h.run(t, true)
	if resumed.Submissions != 1 {
		t.Fatalf("resumed submissions = %d, want 1", resumed.Submissions)
	}

	summary, err := h.manager.RunStage(context.Background(), state.StageReport, workflow.RunOptions{Resume: true})
	if err != nil {
		t.Fatalf("RunStage report: %v", err)
	}
	if summary.Submissions != 1 {
		t.Fatalf("report submissions = %d, want 1", summary.Submissions)
	}
	for _, name := range state.Stages {
		if record, err := h.store.Get(context.Background(), "002_beta_app", name); err != nil || record != nil {
			t.Fatalf("%s record for removed row = %+v err=%v", name, record, err)
		}
	}
	if _, err := os.Stat(h.dir.ProjectReportPath("002_beta_app")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("report of removed row still on disk, stat err = %v", err)
	}
	if leaderboard := summary.Artifacts.Leaderboard; len(leaderboard) > 1 {
		t.Fatalf("leaderboard = %+v, want the remaining row only", leaderboard)
	}

	status, err := h.manager.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, entry := range status.Stages {
		if entry.Counts.Total() != 1 {
			t.Fatalf("%s counts = %+v, want one submission", entry.Stage, entry.Counts)
		}
	}
}
