package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"hackreview/internal/flags"
	"hackreview/internal/preflight"
	"hackreview/internal/workflow"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func outcomeKind(outcome workflow.Outcome) statusKind {
	switch outcome {
	case workflow.OutcomeSuccess:
		return statusOK
	case workflow.OutcomePartial:
		return statusWarn
	case workflow.OutcomeFatal:
		return statusError
	default:
		return statusInfo
	}
}

// renderRunSummary lays out the result of Run or RunStage.
func renderRunSummary(summary workflow.RunSummary, colorize bool) []string {
	lines := renderSectionHeader("Run Summary", colorize)
	lines = append(lines,
		renderStatusLine("Run", statusInfo, summary.RunID, colorize),
		renderStatusLine("Outcome", outcomeKind(summary.Outcome), string(summary.Outcome), colorize),
		renderStatusLine("Submissions", statusInfo, strconv.Itoa(summary.Submissions), colorize),
	)
	if summary.Halted {
		lines = append(lines, renderStatusLine("Pipeline", statusWarn, "halted after failures (pipeline.continue_on_failure = false)", colorize))
	}

	if len(summary.Stages) > 0 {
		rows := make([][]string, 0, len(summary.Stages))
		for _, stage := range summary.Stages {
			row := []string{string(stage.Stage)}
			row = append(row, countCells(stage.Counts)...)
			row = append(row, strconv.Itoa(stage.Reused), strconv.Itoa(stage.Processed))
			rows = append(rows, row)
		}
		lines = append(lines, "", renderTable(
			[]string{"Stage", "Success", "Failed", "Skipped", "Reused", "Processed"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}

	lines = append(lines, "")
	lines = append(lines, flagLines(summary.Flags, colorize)...)
	if summary.Artifacts != nil {
		lines = append(lines, renderStatusLine("Summary", statusInfo, summary.Artifacts.SummaryPath, colorize))
		lines = append(lines, renderStatusLine("Flags report", statusInfo, summary.Artifacts.FlagsPath, colorize))
		if summary.Artifacts.LeaderboardPath != "" {
			lines = append(lines, renderStatusLine("Leaderboard", statusInfo, summary.Artifacts.LeaderboardPath, colorize))
		}
	}
	return lines
}

func flagLines(report flags.Report, colorize bool) []string {
	total := report.Total()
	if total == 0 {
		return []string{renderStatusLine("Flags", statusOK, "none", colorize)}
	}
	errorsCount := report.BySeverity[flags.SeverityError]
	kind := statusWarn
	if errorsCount > 0 {
		kind = statusError
	}
	lines := []string{renderStatusLine("Flags", kind, fmt.Sprintf("%d (%d errors, %d warnings)", total, errorsCount, report.BySeverity[flags.SeverityWarning]), colorize)}

	categories := make([]string, 0, len(report.ByCategory))
	for category := range report.ByCategory {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		count := len(report.ByCategory[flags.Category(category)])
		lines = append(lines, fmt.Sprintf("%s%s- %s: %d", statusIndent, statusIndent, category, count))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
