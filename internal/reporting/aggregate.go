package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"hackreview/internal/analysis"
	"hackreview/internal/cloning"
	"hackreview/internal/fileutil"
	"hackreview/internal/flags"
	"hackreview/internal/rundir"
	"hackreview/internal/scoring"
	"hackreview/internal/state"
	"hackreview/internal/submission"
)

const (
	FlagsFileName       = "flags.md"
	SummaryFileName     = "summary.md"
	LeaderboardFileName = "leaderboard.csv"

	topEntries = 20
)

// AggregateOptions describes one run's aggregate rendering.
type AggregateOptions struct {
	Dir           rundir.Dir
	Store         state.Store
	Submissions   []submission.Submission
	HackathonName string
	RunID         string
	Outcome       string
	// PipelineFlags are raised by the controller rather than stored on a record.
	PipelineFlags []flags.Flag
	Now           func() time.Time
}

// Artifacts lists the files Aggregate wrote. LeaderboardPath is empty when
// no submission was scored.
type Artifacts struct {
	FlagsPath       string
	SummaryPath     string
	LeaderboardPath string
	Flags           flags.Report
	Leaderboard     []scoring.Ranked
}

// Aggregate renders flags.md, summary.md and, when scores exist,
// leaderboard.csv from the persisted records of the current submissions.
func Aggregate(ctx context.Context, opts AggregateOptions) (Artifacts, error) {
	if opts.Store == nil {
		return Artifacts{}, fmt.Errorf("aggregate reports: state store is required")
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	current := make(map[string]submission.Submission, len(opts.Submissions))
	for _, sub := range opts.Submissions {
		current[sub.ID] = sub
	}

	records := make(map[state.Stage]map[string]state.Record, len(state.Stages))
	var flagged []state.Record
	for _, stage := range state.Stages {
		all, err := opts.Store.All(ctx, stage)
		if err != nil {
			return Artifacts{}, fmt.Errorf("load %s records: %w", stage.Lower(), err)
		}
		records[stage] = all
		for id, record := range all {
			if _, ok := current[id]; ok {
				flagged = append(flagged, record)
			}
		}
	}
	report := flags.Collect(append(flags.FromRecords(flagged...), opts.PipelineFlags...))

	leaderboard, err := buildLeaderboard(opts.Submissions, records[state.StageAnalyze])
	if err != nil {
		return Artifacts{}, err
	}

	reportsDir := opts.Dir.ReportsDir()
	artifacts := Artifacts{
		FlagsPath:   filepath.Join(reportsDir, FlagsFileName),
		SummaryPath: filepath.Join(reportsDir, SummaryFileName),
		Flags:       report,
		Leaderboard: leaderboard,
	}
	if err := fileutil.WriteFileAtomic(artifacts.FlagsPath, []byte(renderFlags(report, current)), 0o644); err != nil {
		return artifacts, fmt.Errorf("write flags report: %w", err)
	}
	if len(leaderboard) > 0 {
		artifacts.LeaderboardPath = filepath.Join(reportsDir, LeaderboardFileName)
		content, err := renderLeaderboard(leaderboard, current, records[state.StageClone])
		if err != nil {
			return artifacts, err
		}
		if err := fileutil.WriteFileAtomic(artifacts.LeaderboardPath, content, 0o644); err != nil {
			return artifacts, fmt.Errorf("write leaderboard: %w", err)
		}
	}

	summary := renderSummary(summaryView{
		options:     opts,
		generated:   now(),
		records:     records,
		current:     current,
		flags:       report,
		leaderboard: leaderboard,
	})
	if err := fileutil.WriteFileAtomic(artifacts.SummaryPath, []byte(summary), 0o644); err != nil {
		return artifacts, fmt.Errorf("write summary: %w", err)
	}
	return artifacts, nil
}

func buildLeaderboard(subs []submission.Submission, analyzed map[string]state.Record) ([]scoring.Ranked, error) {
	var entries []scoring.Entry
	for _, sub := range subs {
		record, ok := analyzed[sub.ID]
		if !ok || record.Status != state.StatusSuccess {
			continue
		}
		var payload analysis.Payload
		if err := record.Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode analyze record for %s: %w", sub.ID, err)
		}
		if payload.Scores == nil {
			continue
		}
		entries = append(entries, scoring.Entry{
			SubmissionID: sub.ID,
			Number:       sub.Number,
			TeamName:     sub.TeamName,
			ProjectName:  sub.ProjectName,
			Breakdown:    *payload.Scores,
		})
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return scoring.Rank(entries), nil
}

func renderFlags(report flags.Report, current map[string]submission.Submission) string {
	var b strings.Builder
	b.WriteString("# Issue Flags Report\n\n")
	fmt.Fprintf(&b, "Total flags: %d (%d errors, %d warnings)\n\n",
		report.Total(), report.BySeverity[flags.SeverityError], report.BySeverity[flags.SeverityWarning])

	for _, category := range flags.Categories {
		items := report.ByCategory[category]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", label(string(category)), len(items))
		rows := make([][]string, 0, len(items))
		for _, flag := range items {
			number, team, project := "-", "(pipeline)", ""
			if sub, ok := current[flag.SubmissionID]; ok {
				number = strconv.Itoa(sub.Number)
				team = truncate(sub.TeamName, 25)
				project = truncate(sub.ProjectName, 30)
			}
			rows = append(rows, []string{number, team, project, string(flag.Severity), flag.Stage, truncate(flag.Message, 80)})
		}
		b.WriteString(markdownTable(
			[]string{"#", "Team", "Project", "Severity", "Stage", "Details"},
			rows,
			[]columnAlignment{alignRight},
		))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderLeaderboard(ranked []scoring.Ranked, current map[string]submission.Submission, cloned map[string]state.Record) ([]byte, error) {
	criteria := criterionKeys(ranked)
	header := []string{"rank", "team_number", "team_name", "project_name", "weighted_total"}
	header = append(header, criteria...)
	header = append(header, "total_loc", "primary_language", "commits", "integration_depth", "github_url", "video_url")

	rows := [][]string{header}
	for _, entry := range ranked {
		row := []string{
			strconv.Itoa(entry.Rank),
			strconv.Itoa(entry.Number),
			entry.TeamName,
			entry.ProjectName,
			strconv.FormatFloat(entry.Breakdown.WeightedTotal, 'f', 2, 64),
		}
		for _, key := range criteria {
			value := ""
			if score, ok := entry.Breakdown.Scores[key]; ok {
				value = strconv.FormatFloat(score.Score, 'f', 1, 64)
			}
			row = append(row, value)
		}
		var repo cloning.Payload
		if record, ok := cloned[entry.SubmissionID]; ok && record.Status == state.StatusSuccess {
			if err := record.Decode(&repo); err != nil {
				return nil, fmt.Errorf("decode clone record for %s: %w", entry.SubmissionID, err)
			}
		}
		sub := current[entry.SubmissionID]
		row = append(row,
			strconv.Itoa(repo.Files.TotalLOC),
			repo.Files.PrimaryLanguage,
			strconv.Itoa(repo.History.TotalCommits),
			string(repo.Integration.Depth),
			sub.RepoURL,
			sub.VideoURL,
		)
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	return buf.Bytes(), nil
}

func criterionKeys(ranked []scoring.Ranked) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, entry := range ranked {
		for key := range entry.Breakdown.Scores {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

type summaryView struct {
	options     AggregateOptions
	generated   time.Time
	records     map[state.Stage]map[string]state.Record
	current     map[string]submission.Submission
	flags       flags.Report
	leaderboard []scoring.Ranked
}

func (v summaryView) counts(stage state.Stage) state.Counts {
	var counts state.Counts
	for id, record := range v.records[stage] {
		if _, ok := v.current[id]; !ok {
			continue
		}
		switch record.Status {
		case state.StatusSuccess:
			counts.Success++
		case state.StatusFailed:
			counts.Failed++
		case state.StatusSkipped:
			counts.Skipped++
		}
	}
	return counts
}

func renderSummary(v summaryView) string {
	total := len(v.current)
	var b strings.Builder
	b.WriteString("# hackreview summary\n\n")
	if name := strings.TrimSpace(v.options.HackathonName); name != "" {
		fmt.Fprintf(&b, "**Hackathon:** %s\n", name)
	}
	if v.options.RunID != "" {
		fmt.Fprintf(&b, "**Run:** %s\n", v.options.RunID)
	}
	if v.options.Outcome != "" {
		fmt.Fprintf(&b, "**Outcome:** %s\n", v.options.Outcome)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n\n", v.generated.Format(time.RFC3339))

	fmt.Fprintf(&b, "**Submissions:** %d\n", total)
	fmt.Fprintf(&b, "**Repos cloned:** %d/%d\n", v.counts(state.StageClone).Success, total)
	fmt.Fprintf(&b, "**Videos downloaded:** %d/%d\n", v.counts(state.StageDownload).Success, total)
	fmt.Fprintf(&b, "**Submissions analyzed:** %d/%d\n", v.counts(state.StageAnalyze).Success, total)
	fmt.Fprintf(&b, "**Flags raised:** %d\n\n", v.flags.Total())

	b.WriteString("## Stages\n\n")
	rows := make([][]string, 0, len(state.Stages))
	for _, stage := range state.Stages {
		counts := v.counts(stage)
		rows = append(rows, []string{
			string(stage),
			strconv.Itoa(counts.Success),
			strconv.Itoa(counts.Failed),
			strconv.Itoa(counts.Skipped),
		})
	}
	b.WriteString(markdownTable([]string{"Stage", "Success", "Failed", "Skipped"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight}))
	b.WriteString("\n\n")

	if len(v.leaderboard) > 0 {
		fmt.Fprintf(&b, "## Top %d\n\n", topEntries)
		rows := make([][]string, 0, topEntries)
		for i, entry := range v.leaderboard {
			if i >= topEntries {
				break
			}
			rows = append(rows, []string{
				strconv.Itoa(entry.Rank),
				truncate(entry.TeamName, 25),
				truncate(entry.ProjectName, 30),
				fmt.Sprintf("%.1f", entry.Breakdown.WeightedTotal),
			})
		}
		b.WriteString(markdownTable([]string{"Rank", "Team", "Project", "Score"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
		b.WriteString("\n\n")
	}

	if v.flags.Total() > 0 {
		b.WriteString("## Flag Summary\n\n")
		for _, category := range flags.Categories {
			if n := len(v.flags.ByCategory[category]); n > 0 {
				fmt.Fprintf(&b, "- **%s:** %d\n", label(string(category)), n)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
