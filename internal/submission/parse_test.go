package submission_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hackreview/internal/config"
	"hackreview/internal/flags"
	"hackreview/internal/services"
	"hackreview/internal/submission"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "submissions.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func defaultOptions() submission.Options {
	cfg := config.Default()
	cfg.Hackathon.DeadlineUTC = "2026-03-01T17:00:00Z"
	cfg.Hackathon.GracePeriodMinutes = 5
	return submission.Options{Columns: cfg.Columns, Hackathon: cfg.Hackathon}
}

func TestParseAssignsStableIDs(t *testing.T) {
	path := writeCSV(t, "Team Name,Team Members,Project Name,Public GitHub Repository,Demo Video,Time Submitted\n"+
		"Alpha,\"Ann (ann@x.io), Bob (bob@x.io)\",Smart Notes!,https://github.com/alpha/notes,https://youtu.be/abc,2026-03-01T16:59:00Z\n"+
		"Beta,Cara,,github.com/beta/app/tree/main,https://example.com/video,2026-03-01T17:03:00Z\n")

	subs, err := submission.Parse(path, defaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}

	first := subs[0]
	if first.ID != "001_smart_notes" {
		t.Fatalf("unexpected id %q", first.ID)
	}
	if first.CloneURL != "https://github.com/alpha/notes.git" {
		t.Fatalf("unexpected clone url %q", first.CloneURL)
	}
	if first.VideoPlatform != submission.PlatformYouTube {
		t.Fatalf("unexpected platform %q", first.VideoPlatform)
	}
	if len(first.TeamMembers) != 2 || first.TeamMembers[1].Email != "bob@x.io" {
		t.Fatalf("unexpected members %+v", first.TeamMembers)
	}
	if first.Lateness != submission.OnTime {
		t.Fatalf("expected on time, got %q", first.Lateness)
	}

	second := subs[1]
	if second.ID != "002_beta" {
		t.Fatalf("project name should fall back to team name, got %q", second.ID)
	}
	if !second.HasIssue("github:" + submission.IssueStrippedBranchRef) {
		t.Fatalf("expected stripped branch issue, got %v", second.Issues)
	}
	if !second.HasIssue("video:" + submission.IssuePlaceholderURL) {
		t.Fatalf("expected placeholder issue, got %v", second.Issues)
	}
	if second.Lateness != submission.GracePeriod {
		t.Fatalf("expected grace period, got %q", second.Lateness)
	}
	if len(second.Flags()) != 0 {
		t.Fatalf("grace period submissions should not be flagged")
	}

	again, err := submission.Parse(path, defaultOptions())
	if err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	for i := range subs {
		if subs[i].ID != again[i].ID {
			t.Fatalf("ids changed between parses: %q vs %q", subs[i].ID, again[i].ID)
		}
	}
}

func TestParseLateness(t *testing.T) {
	tests := []struct {
		name      string
		submitted string
		want      submission.Lateness
		flagged   bool
	}{
		{"before deadline", "2026-03-01T16:00:00Z", submission.OnTime, false},
		{"inside grace", "2026-03-01T17:05:00Z", submission.GracePeriod, false},
		{"moderate", "2026-03-01T17:45:00Z", submission.ModeratelyLate, true},
		{"significant", "2026-03-01T19:00:00Z", submission.SignificantlyLate, true},
		{"unparseable time", "sometime", submission.OnTime, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, "team_name,github_url,submitted_at\nAlpha,https://github.com/a/b,"+tt.submitted+"\n")
			subs, err := submission.Parse(path, defaultOptions())
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if subs[0].Lateness != tt.want {
				t.Fatalf("lateness = %q, want %q", subs[0].Lateness, tt.want)
			}
			got := subs[0].Flags()
			if tt.flagged != (len(got) == 1) {
				t.Fatalf("unexpected flags %+v", got)
			}
			if tt.flagged {
				if got[0].Category != flags.CategoryLateSubmission || got[0].SubmissionID != subs[0].ID {
					t.Fatalf("unexpected flag %+v", got[0])
				}
			}
		})
	}
}

func TestParseReportsMissingColumns(t *testing.T) {
	path := writeCSV(t, "team,video\nAlpha,https://youtu.be/x\n")
	_, err := submission.Parse(path, defaultOptions())
	if err == nil {
		t.Fatal("expected error for missing github column")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var parseErr *submission.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if len(parseErr.MissingColumns) != 1 || !strings.HasPrefix(parseErr.MissingColumns[0], submission.FieldGitHubURL) {
		t.Fatalf("unexpected missing columns %v", parseErr.MissingColumns)
	}
}

func TestParseRejectsMalformedRows(t *testing.T) {
	path := writeCSV(t, "team_name,github_url\nAlpha,https://github.com/a/b\nBeta\n,https://github.com/c/d\n")
	_, err := submission.Parse(path, defaultOptions())
	var parseErr *submission.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if len(parseErr.Rows) != 2 {
		t.Fatalf("expected 2 row errors, got %+v", parseErr.Rows)
	}
	if parseErr.Rows[0].Line != 3 || parseErr.Rows[1].Line != 4 {
		t.Fatalf("unexpected lines %+v", parseErr.Rows)
	}
}

func TestParseConfiguredIDColumn(t *testing.T) {
	opts := defaultOptions()
	opts.Columns.ID = "Entry"
	opts.Columns.Extra = []string{"Track"}

	path := writeCSV(t, "Entry,team_name,github_url,Track\nA-1,Alpha,https://github.com/a/b,AI\nB 2,Beta,https://github.com/c/d,Infra\n")
	subs, err := submission.Parse(path, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if subs[0].ID != "a-1" || subs[1].ID != "b_2" {
		t.Fatalf("unexpected ids %q %q", subs[0].ID, subs[1].ID)
	}
	if subs[1].Extra["Track"] != "Infra" {
		t.Fatalf("unexpected extra %+v", subs[1].Extra)
	}

	dup := writeCSV(t, "Entry,team_name,github_url\nA1,Alpha,https://github.com/a/b\na1,Beta,https://github.com/c/d\n")
	if _, err := submission.Parse(dup, opts); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected duplicate id validation error, got %v", err)
	}
}

func TestParseHandlesBOMAndBlankLines(t *testing.T) {
	path := writeCSV(t, "\ufeffteam_name,github_url\n\nAlpha,https://github.com/a/b\n,\n")
	subs, err := submission.Parse(path, defaultOptions())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(subs) != 1 || subs[0].TeamName != "Alpha" {
		t.Fatalf("unexpected submissions %+v", subs)
	}
}

func TestParseEmptyFile(t *testing.T) {
	path := writeCSV(t, "")
	if _, err := submission.Parse(path, defaultOptions()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseMembers(t *testing.T) {
	tests := []struct {
		raw  string
		want []submission.Member
	}{
		{"", nil},
		{"Ann (ann@x.io)", []submission.Member{{Name: "Ann", Email: "ann@x.io"}}},
		{"Ann (ann@x.io), Bob Lee (bob@x.io)", []submission.Member{{Name: "Ann", Email: "ann@x.io"}, {Name: "Bob Lee", Email: "bob@x.io"}}},
		{"Ann, Bob", []submission.Member{{Name: "Ann"}, {Name: "Bob"}}},
	}
	for _, tt := range tests {
		got := submission.ParseMembers(tt.raw)
		if len(got) != len(tt.want) {
			t.Fatalf("ParseMembers(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("ParseMembers(%q)[%d] = %+v, want %+v", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestGenerateIDAndSanitize(t *testing.T) {
	if got := submission.GenerateID(7, "!!!"); got != "007_submission" {
		t.Fatalf("unexpected id %q", got)
	}
	long := strings.Repeat("abc ", 30)
	if got := submission.SanitizeName(long); len(got) > 50 || strings.HasSuffix(got, "_") {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := submission.SanitizeName("Héllo  World"); got != "h_llo_world" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
