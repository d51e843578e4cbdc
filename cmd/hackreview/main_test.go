package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hackreview/internal/testsupport"
)

const sampleCSV = "Team Name,Project Name,Public GitHub Repository,Demo Video\n" +
	"Alpha,Alpha App,https://github.com/alpha/app,https://youtu.be/alpha\n" +
	"Beta,Beta App,not a url,\n"

type cliEnv struct {
	output string
	csv    string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("ANTHROPIC_API_KEY", "test")
	t.Setenv("GEMINI_API_KEY", "test")
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	env := &cliEnv{
		output: filepath.Join(base, "output"),
		csv:    filepath.Join(base, "submissions.csv"),
	}
	testsupport.WriteText(t, env.csv, sampleCSV)
	return env
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLIEnv(t)

	target := filepath.Join(t.TempDir(), "hackreview.toml")
	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}

	out, _, err = runCLI(t, "--config", target, "--output", env.output, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsMissingCredentials(t *testing.T) {
	env := setupCLIEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	out, _, err := runCLI(t, "--output", env.output, "config", "validate")
	if err == nil {
		t.Fatalf("expected preflight failure\n%s", out)
	}
	requireContains(t, err.Error(), "Code review credentials")
	requireContains(t, out, "[ERROR]")
}

func TestParseReportAndStatus(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, "--output", env.output, "parse", "--csv", env.csv)
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	requireContains(t, out, "Run Summary")
	requireContains(t, out, "PARSE")

	out, _, err = runCLI(t, "--output", env.output, "report")
	if err != nil {
		t.Fatalf("report: %v\n%s", err, out)
	}
	requireContains(t, out, "PARTIAL")
	requireContains(t, out, "REPORT")
	for _, name := range []string{"summary.md", "flags.md"} {
		if _, err := os.Stat(filepath.Join(env.output, "reports", name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}

	out, _, err = runCLI(t, "--output", env.output, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Stage Health")
	requireContains(t, out, "ANALYZE")
	requireContains(t, out, "Providers")
	requireContains(t, out, "anthropic / ")

	out, _, err = runCLI(t, "--output", env.output, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var payload statusJSON
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if len(payload.Stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(payload.Stages))
	}
	if payload.Stages[0].Stage != "PARSE" || payload.Stages[0].Success != 2 {
		t.Fatalf("unexpected parse counts %+v", payload.Stages[0])
	}
	if payload.Stages[4].Skipped != 2 {
		t.Fatalf("expected both reports skipped, got %+v", payload.Stages[4])
	}
	if payload.LastRunID == "" {
		t.Fatal("expected last run id")
	}
}

func TestStatusWithoutRuns(t *testing.T) {
	env := setupCLIEnv(t)
	out, _, err := runCLI(t, "--output", env.output, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestStageCommandRequiresParse(t *testing.T) {
	env := setupCLIEnv(t)
	_, _, err := runCLI(t, "--output", env.output, "clone")
	if err == nil {
		t.Fatal("expected clone without parsed submissions to fail")
	}
	requireContains(t, err.Error(), "parse")
}

func TestRunRequiresCSV(t *testing.T) {
	env := setupCLIEnv(t)
	if _, _, err := runCLI(t, "--output", env.output, "run"); err == nil {
		t.Fatal("expected missing --csv to fail")
	}
}
