package reporting

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"hackreview/internal/analysis"
	"hackreview/internal/cloning"
	"hackreview/internal/flags"
	"hackreview/internal/repoinspect"
	"hackreview/internal/review"
	"hackreview/internal/rundir"
	"hackreview/internal/scoring"
	"hackreview/internal/stage"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

func mustPayload(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := state.EncodePayload(payload)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func scoredAnalysis(total float64) analysis.Payload {
	return analysis.Payload{
		Code:  review.CodeResult{Provider: "anthropic", Review: "Thoughtful agent design."},
		Video: review.VideoResult{Provider: "gemini", RelatedToProject: true, DemoClassification: review.DemoPolished, TranscriptSummary: "A live demo."},
		Scores: &scoring.Breakdown{
			WeightedTotal: total,
			Scores: map[string]scoring.Score{
				"ai_use": {Score: total, Source: scoring.SourceLLM},
			},
		},
	}
}

func TestRenderProject(t *testing.T) {
	view := ProjectView{
		Submission: submission.Submission{
			ID:          "001_demo",
			Number:      1,
			TeamName:    "Builders",
			ProjectName: "Demo",
			RepoURL:     "https://github.com/b/demo",
			Description: "An assistant for judges.",
		},
		Repo: &cloning.Payload{Files: repoinspect.Files{TotalLOC: 12345, PrimaryLanguage: "Go", HasReadme: true}},
		Flags: []flags.Flag{
			flags.Warning(flags.CategorySingleCommit, "CLONE", "repository has a single commit"),
		},
	}
	result := scoredAnalysis(7.5)
	view.Analysis = &result

	got := RenderProject(view)
	for _, want := range []string{
		"# Demo",
		"**Team #1: Builders**",
		"**Score: 7.5/10**",
		"Single Commit: repository has a single commit",
		"Ai Use",
		"Thoughtful agent design.",
		"**Demo Classification:** polished",
		"- **LOC:** 12,345",
		"**Video:** not provided",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "WARNING:** Video") {
		t.Error("related video must not be flagged in the report")
	}
}

func TestReporterWritesProjectReport(t *testing.T) {
	dir := rundir.New(t.TempDir())
	reporter := NewReporter(dir, nil)
	if err := reporter.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	late := flags.Warning(flags.CategoryLateSubmission, "PARSE", "submitted 45 min late")
	late.SubmissionID = "001_demo"
	item := stage.Item{
		SubmissionID: "001_demo",
		Submission:   submission.Submission{ID: "001_demo", Number: 1, TeamName: "Builders", ProjectName: "Demo"},
		Upstream: map[state.Stage]state.Record{
			state.StageParse:   {Status: state.StatusSuccess, Flags: []flags.Flag{late}},
			state.StageAnalyze: {Status: state.StatusSuccess, Payload: mustPayload(t, scoredAnalysis(6))},
		},
	}

	outcome, err := reporter.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	payload := outcome.Payload.(Payload)
	if payload.Path != dir.ProjectReportPath("001_demo") {
		t.Fatalf("path = %q", payload.Path)
	}
	if payload.WeightedTotal == nil || *payload.WeightedTotal != 6 {
		t.Fatalf("weighted total = %v", payload.WeightedTotal)
	}
	data, err := os.ReadFile(payload.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "submitted 45 min late") {
		t.Fatalf("report does not carry upstream flags:\n%s", data)
	}
}

func TestAggregateWritesArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := rundir.New(t.TempDir())
	store := state.NewMemoryStore()
	subs := []submission.Submission{
		{ID: "001_a", Number: 1, TeamName: "Alpha", ProjectName: "A", RepoURL: "https://github.com/x/a"},
		{ID: "002_b", Number: 2, TeamName: "Beta", ProjectName: "B", RepoURL: "https://github.com/x/b"},
	}
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	failure := flags.Error(flags.CategoryCloneFailed, "CLONE", "repository not found")
	failure.SubmissionID = "002_b"
	puts := []state.Record{
		{SubmissionID: "001_a", Stage: state.StageClone, Status: state.StatusSuccess, Payload: mustPayload(t, cloning.Payload{Files: repoinspect.Files{TotalLOC: 900, PrimaryLanguage: "Python"}}), UpdatedAt: now},
		{SubmissionID: "001_a", Stage: state.StageAnalyze, Status: state.StatusSuccess, Payload: mustPayload(t, scoredAnalysis(8)), UpdatedAt: now},
		{SubmissionID: "002_b", Stage: state.StageClone, Status: state.StatusFailed, Error: &state.RecordError{Message: "repository not found", Category: "NOT_FOUND"}, Flags: []flags.Flag{failure}, UpdatedAt: now},
		{SubmissionID: "002_b", Stage: state.StageDownload, Status: state.StatusSkipped, Payload: mustPayload(t, state.SkipPayload{Reason: "upstream CLONE FAILED"}), UpdatedAt: now},
		{SubmissionID: "999_gone", Stage: state.StageClone, Status: state.StatusFailed, Error: &state.RecordError{Message: "x"}, Flags: []flags.Flag{{SubmissionID: "999_gone", Category: flags.CategoryCloneFailed, Severity: flags.SeverityError, Message: "stale"}}, UpdatedAt: now},
	}
	for _, record := range puts {
		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	artifacts, err := Aggregate(ctx, AggregateOptions{
		Dir:           dir,
		Store:         store,
		Submissions:   subs,
		HackathonName: "Spring Jam",
		RunID:         "run-1",
		Outcome:       "PARTIAL",
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if artifacts.Flags.Total() != 1 {
		t.Fatalf("flags = %+v, want only the current submission's flag", artifacts.Flags.Flags)
	}

	flagsMD, err := os.ReadFile(artifacts.FlagsPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(flagsMD), "Clone Failed (1)") || !strings.Contains(string(flagsMD), "repository not found") {
		t.Fatalf("flags.md:\n%s", flagsMD)
	}

	summary, err := os.ReadFile(artifacts.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"**Hackathon:** Spring Jam", "**Outcome:** PARTIAL", "**Repos cloned:** 1/2", "Top 20"} {
		if !strings.Contains(string(summary), want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	file, err := os.Open(artifacts.LeaderboardPath)
	if err != nil {
		t.Fatalf("open leaderboard: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("leaderboard rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != "1" || rows[1][2] != "Alpha" || rows[1][4] != "8.00" {
		t.Fatalf("leaderboard row = %v", rows[1])
	}
}

func TestAggregateSkipsLeaderboardWithoutScores(t *testing.T) {
	dir := rundir.New(t.TempDir())
	artifacts, err := Aggregate(context.Background(), AggregateOptions{
		Dir:         dir,
		Store:       state.NewMemoryStore(),
		Submissions: []submission.Submission{{ID: "001_a", Number: 1}},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if artifacts.LeaderboardPath != "" {
		t.Fatalf("leaderboard path = %q", artifacts.LeaderboardPath)
	}
	if _, err := os.Stat(dir.ReportsDir() + "/" + LeaderboardFileName); !os.IsNotExist(err) {
		t.Fatalf("leaderboard should not exist: %v", err)
	}
}
