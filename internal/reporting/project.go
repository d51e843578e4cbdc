package reporting

import (
	"fmt"
	"sort"
	"strings"

	"hackreview/internal/analysis"
	"hackreview/internal/cloning"
	"hackreview/internal/flags"
	"hackreview/internal/gitrepo"
	"hackreview/internal/submission"
	"hackreview/internal/video"
)

// ProjectView is everything known about one submission when its report is
// rendered. Nil sections were not produced.
type ProjectView struct {
	Submission submission.Submission
	Repo       *cloning.Payload
	Video      *video.Metadata
	Analysis   *analysis.Payload
	Flags      []flags.Flag
}

// RenderProject renders the per-project markdown report.
func RenderProject(view ProjectView) string {
	sub := view.Submission
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", valueOr(sub.ProjectName, sub.DisplayName()))
	fmt.Fprintf(&b, "**Team #%d: %s**\n\n", sub.Number, valueOr(sub.TeamName, "unknown team"))

	if view.Analysis != nil && view.Analysis.Scores != nil {
		fmt.Fprintf(&b, "**Score: %.1f/10**\n\n", view.Analysis.Scores.WeightedTotal)
	}
	fmt.Fprintf(&b, "**GitHub:** %s\n", valueOr(sub.RepoURL, "not provided"))
	fmt.Fprintf(&b, "**Video:** %s\n", valueOr(sub.VideoURL, "not provided"))
	if len(sub.TeamMembers) > 0 {
		names := make([]string, 0, len(sub.TeamMembers))
		for _, member := range sub.TeamMembers {
			names = append(names, member.Name)
		}
		fmt.Fprintf(&b, "**Members:** %s\n", strings.Join(names, ", "))
	}
	if sub.Lateness != "" && sub.Lateness != submission.OnTime {
		fmt.Fprintf(&b, "**Submitted:** %s (%s, %.0f min late)\n", sub.SubmittedAt, sub.Lateness, sub.MinutesLate)
	}
	b.WriteString("\n")

	if len(view.Flags) > 0 {
		b.WriteString("## Flags\n\n")
		for _, flag := range view.Flags {
			fmt.Fprintf(&b, "- **[%s]** %s: %s\n", flag.Severity, label(string(flag.Category)), flag.Message)
		}
		b.WriteString("\n")
	}

	if view.Analysis != nil && view.Analysis.Scores != nil && len(view.Analysis.Scores.Scores) > 0 {
		b.WriteString("## Scores\n\n")
		keys := make([]string, 0, len(view.Analysis.Scores.Scores))
		for key := range view.Analysis.Scores.Scores {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			score := view.Analysis.Scores.Scores[key]
			rows = append(rows, []string{label(key), fmt.Sprintf("%.1f/10", score.Score), string(score.Source)})
		}
		b.WriteString(markdownTable([]string{"Criterion", "Score", "Source"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
		b.WriteString("\n\n")
	}

	b.WriteString("## Description\n\n")
	b.WriteString(valueOr(strings.TrimSpace(sub.Description), "*No description provided.*"))
	b.WriteString("\n\n")

	if view.Analysis != nil {
		if text := strings.TrimSpace(view.Analysis.Code.Review); text != "" {
			b.WriteString("## Code Review\n\n")
			b.WriteString(text)
			b.WriteString("\n\n")
		}
		writeVideoSection(&b, view)
	}

	if view.Repo != nil {
		writeRepoSection(&b, *view.Repo)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeVideoSection(b *strings.Builder, view ProjectView) {
	result := view.Analysis.Video
	if result.Skipped {
		return
	}
	b.WriteString("## Video Analysis\n\n")
	if view.Video != nil && view.Video.DurationSeconds > 0 {
		fmt.Fprintf(b, "**Duration:** %.0fs", view.Video.DurationSeconds)
		if view.Video.Trimmed {
			b.WriteString(" (trimmed for analysis)")
		}
		b.WriteString("\n\n")
	}
	if summary := strings.TrimSpace(result.TranscriptSummary); summary != "" {
		fmt.Fprintf(b, "**Summary:** %s\n\n", summary)
	}
	fmt.Fprintf(b, "**Demo Classification:** %s\n", valueOr(string(result.DemoClassification), "unknown"))
	if !result.RelatedToProject {
		b.WriteString("**WARNING:** Video does not appear related to the project.\n")
	}
	if text := strings.TrimSpace(result.Review); text != "" {
		b.WriteString("\n")
		b.WriteString(text)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeRepoSection(b *strings.Builder, repo cloning.Payload) {
	b.WriteString("## Repository\n\n")
	fmt.Fprintf(b, "- **LOC:** %s\n", formatCount(repo.Files.TotalLOC))
	fmt.Fprintf(b, "- **Files:** %s\n", formatCount(repo.Files.FileCount))
	if repo.Files.PrimaryLanguage != "" {
		fmt.Fprintf(b, "- **Primary Language:** %s\n", repo.Files.PrimaryLanguage)
	}
	if len(repo.Files.Languages) > 0 {
		names := make([]string, 0, len(repo.Files.Languages))
		for _, lang := range repo.Files.Languages {
			names = append(names, lang.Name)
		}
		fmt.Fprintf(b, "- **Languages:** %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(b, "- **Commits:** %d\n", repo.History.TotalCommits)
	if len(repo.History.Authors) > 0 {
		fmt.Fprintf(b, "- **Authors:** %s\n", strings.Join(repo.History.Authors, ", "))
	}
	fmt.Fprintf(b, "- **Has README:** %s\n", yesNo(repo.Files.HasReadme))
	fmt.Fprintf(b, "- **Has Tests:** %s\n", yesNo(repo.Files.HasTests))
	if repo.History.PeriodChecked {
		fmt.Fprintf(b, "- **Hackathon Period:** %s (%d before, %d during, %d after)\n",
			repo.History.Period, repo.History.CommitsBefore, repo.History.CommitsDuring, repo.History.CommitsAfter)
	}
	if len(repo.Structure.Frameworks) > 0 {
		fmt.Fprintf(b, "- **Frameworks:** %s\n", strings.Join(repo.Structure.Frameworks, ", "))
	}
	if repo.History.Period == gitrepo.PeriodPreexistingProject {
		b.WriteString("- **Note:** most of the history predates the hackathon\n")
	}
	b.WriteString("\n")

	if len(repo.Integration.Patterns) > 0 {
		b.WriteString("## AI Integration\n\n")
		fmt.Fprintf(b, "- **Depth:** %s\n", repo.Integration.Depth)
		b.WriteString("- **Patterns:**\n")
		for _, match := range repo.Integration.Patterns {
			fmt.Fprintf(b, "  - %s (%d matches in %d files)\n", match.Description, match.MatchCount, len(match.Files))
		}
		b.WriteString("\n")
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
