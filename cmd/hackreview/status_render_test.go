package main

import (
	"fmt"
	"strings"
	"testing"

	"hackreview/internal/flags"
	"hackreview/internal/reporting"
	"hackreview/internal/state"
	"hackreview/internal/workflow"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Outcome", statusError, "FATAL", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Outcome:", "[ERROR] FATAL")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Outcome", statusOK, "SUCCESS", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderRunSummary(t *testing.T) {
	report := flags.Collect([]flags.Flag{
		{SubmissionID: "001_alpha", Category: flags.CategoryCloneFailed, Severity: flags.SeverityError, Stage: "clone", Message: "repository not found"},
		{SubmissionID: "002_beta", Category: flags.CategorySingleCommit, Severity: flags.SeverityWarning, Stage: "clone", Message: "single commit"},
	})
	summary := workflow.RunSummary{
		RunID:       "run-1",
		Outcome:     workflow.OutcomePartial,
		Submissions: 2,
		Halted:      true,
		Stages: []workflow.StageSummary{
			{Stage: state.StageClone, Counts: state.Counts{Success: 1, Failed: 1}, Processed: 2, Ran: true},
		},
		Flags:     report,
		Artifacts: &reporting.Artifacts{SummaryPath: "/out/reports/summary.md", FlagsPath: "/out/reports/flags.md"},
	}

	out := strings.Join(renderRunSummary(summary, false), "\n")
	for _, want := range []string{
		"== Run Summary ==",
		"[INFO] run-1",
		"[WARN] PARTIAL",
		"halted after failures",
		"CLONE",
		"[ERROR] 2 (1 errors, 1 warnings)",
		"- CLONE_FAILED: 1",
		"- SINGLE_COMMIT: 1",
		"/out/reports/summary.md",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Leaderboard") {
		t.Fatalf("leaderboard line rendered without a path:\n%s", out)
	}
}

func TestFlagLinesWithoutFlags(t *testing.T) {
	lines := flagLines(flags.Collect(nil), false)
	if len(lines) != 1 || !strings.Contains(lines[0], "[OK] none") {
		t.Fatalf("unexpected lines %q", lines)
	}
}

func TestStageOrder(t *testing.T) {
	if stageOrder("parse") >= stageOrder("clone") || stageOrder("analyze") >= stageOrder("report") {
		t.Fatal("stage order does not follow the pipeline")
	}
	if stageOrder("unknown") != len(state.Stages) {
		t.Fatal("unknown stage should sort last")
	}
}
