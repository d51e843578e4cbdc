package submission

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"hackreview/internal/flags"
)

// Lateness classifies a submission time against the hackathon deadline.
type Lateness string

const (
	OnTime            Lateness = "on_time"
	GracePeriod       Lateness = "grace_period"
	ModeratelyLate    Lateness = "moderately_late"
	SignificantlyLate Lateness = "significantly_late"
)

// moderateLatenessMinutes is the delay past the deadline still counted as moderately late.
const moderateLatenessMinutes = 60

// Member is one parsed team member.
type Member struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Submission is one parsed CSV row. It is immutable for the rest of a run.
type Submission struct {
	ID            string            `json:"id"`
	Number        int               `json:"number"`
	TeamName      string            `json:"team_name"`
	TeamMembers   []Member          `json:"team_members,omitempty"`
	ProjectName   string            `json:"project_name"`
	Description   string            `json:"description,omitempty"`
	RepoURL       string            `json:"repo_url"`
	CloneURL      string            `json:"clone_url,omitempty"`
	VideoURL      string            `json:"video_url,omitempty"`
	VideoPlatform Platform          `json:"video_platform,omitempty"`
	SubmittedAt   string            `json:"submitted_at,omitempty"`
	Lateness      Lateness          `json:"lateness,omitempty"`
	MinutesLate   float64           `json:"minutes_late,omitempty"`
	Issues        []string          `json:"issues,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// IdentityKey ties a generated id to the row it was generated for, so a
// reordered CSV can be detected on re-parse.
func (s Submission) IdentityKey() string {
	return strings.ToLower(strings.TrimSpace(s.TeamName)) + "|" + strings.ToLower(strings.TrimSpace(s.ProjectName))
}

// DisplayName returns the project name, falling back to the team name.
func (s Submission) DisplayName() string {
	if s.ProjectName != "" {
		return s.ProjectName
	}
	return s.TeamName
}

// HasIssue reports whether the parser recorded issue (prefix match, so
// "github:not_github_url" matches "github:not_github_url: gitlab.com").
func (s Submission) HasIssue(issue string) bool {
	for _, candidate := range s.Issues {
		if strings.HasPrefix(candidate, issue) {
			return true
		}
	}
	return false
}

// Cloneable reports whether the repository URL yielded a clone URL.
func (s Submission) Cloneable() bool {
	return s.CloneURL != ""
}

// VideoDownloadable reports whether the demo video URL can be attempted.
func (s Submission) VideoDownloadable() bool {
	return ClassifyVideoURL(s.VideoURL).Valid
}

// IssuesFor returns the parser issues recorded under prefix ("github" or
// "video"), without the prefix.
func (s Submission) IssuesFor(prefix string) []string {
	var out []string
	for _, issue := range s.Issues {
		if rest, ok := strings.CutPrefix(issue, prefix+":"); ok {
			out = append(out, rest)
		}
	}
	return out
}

// Flags returns the flags raised while parsing the row.
func (s Submission) Flags() []flags.Flag {
	var out []flags.Flag
	switch s.Lateness {
	case ModeratelyLate, SignificantlyLate:
		flag := flags.Warning(
			flags.CategoryLateSubmission,
			"PARSE",
			"submitted "+formatMinutes(s.MinutesLate)+" after the deadline ("+string(s.Lateness)+")",
		)
		flag.SubmissionID = s.ID
		out = append(out, flag)
	}
	return out
}

var (
	unsafeNameChars = regexp.MustCompile(`[^a-z0-9_-]`)
	repeatedUnders  = regexp.MustCompile(`_+`)
)

const maxSanitizedLength = 50

// SanitizeName lowercases name and reduces it to [a-z0-9_-], at most 50 characters.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
	s = repeatedUnders.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > maxSanitizedLength {
		s = strings.TrimRight(s[:maxSanitizedLength], "_")
	}
	return s
}

func formatMinutes(minutes float64) string {
	total := int(math.Round(minutes))
	if total < 60 {
		return fmt.Sprintf("%d min", total)
	}
	return fmt.Sprintf("%dh%02dm", total/60, total%60)
}
