package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"hackreview/internal/config"
	"hackreview/internal/services"
)

// Field names used for column resolution and error messages.
const (
	FieldID          = "id"
	FieldTeamName    = "team_name"
	FieldTeamMembers = "team_members"
	FieldProjectName = "project_name"
	FieldDescription = "description"
	FieldGitHubURL   = "github_url"
	FieldVideoURL    = "video_url"
	FieldSubmittedAt = "submitted_at"
)

var requiredFields = []string{FieldTeamName, FieldGitHubURL}

var columnAliases = map[string][]string{
	FieldTeamName:    {"team name", "team", "teamname", "team_name"},
	FieldTeamMembers: {"team members", "members", "team_members", "participants"},
	FieldProjectName: {"project name", "project", "projectname", "project_name", "submission name"},
	FieldDescription: {"project description", "description", "desc", "summary", "about"},
	FieldGitHubURL:   {"public github repository", "github", "github url", "github_url", "repo", "repository", "github repo"},
	FieldVideoURL:    {"demo video", "video", "video url", "video_url", "demo", "demo url"},
	FieldSubmittedAt: {"time submitted", "submitted", "submitted_at", "timestamp", "submission time"},
}

// RowError describes one malformed CSV row.
type RowError struct {
	Line    int
	Message string
}

// ParseError reports a CSV that cannot be turned into submissions. It is
// classified as a validation error, which is fatal for a run.
type ParseError struct {
	Path           string
	MissingColumns []string
	Rows           []RowError
	Err            error
}

func (e *ParseError) Error() string {
	var parts []string
	if len(e.MissingColumns) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.MissingColumns, ", "))
	}
	for _, row := range e.Rows {
		parts = append(parts, fmt.Sprintf("line %d: %s", row.Line, row.Message))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid submissions file")
	}
	return fmt.Sprintf("parse %s: %s", e.Path, strings.Join(parts, "; "))
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{services.ErrValidation, e.Err}
	}
	return []error{services.ErrValidation}
}

// Options control how CSV columns are mapped and how lateness is computed.
type Options struct {
	Columns   config.Columns
	Hackathon config.Hackathon
}

// Parse reads the submissions CSV at path.
func Parse(path string, opts Options) ([]Submission, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer file.Close()
	return ParseReader(file, path, opts)
}

// ParseReader parses submissions from r; name labels errors.
func ParseReader(r io.Reader, name string, opts Options) ([]Submission, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Path: name, Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, &ParseError{Path: name, Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := resolveColumns(header, opts.Columns)
	var missing []string
	for _, field := range requiredFields {
		if _, ok := columns[field]; !ok {
			missing = append(missing, describeField(field, opts.Columns))
		}
	}
	if opts.Columns.ID != "" {
		if _, ok := columns[FieldID]; !ok {
			missing = append(missing, describeField(FieldID, opts.Columns))
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{Path: name, MissingColumns: missing}
	}
	extraIndex := make(map[string]int, len(opts.Columns.Extra))
	for _, extra := range opts.Columns.Extra {
		if idx, ok := headerIndex(header, extra); ok {
			extraIndex[extra] = idx
		}
	}

	deadline, hasDeadline := opts.Hackathon.Deadline()
	grace := opts.Hackathon.GracePeriod().Minutes()

	var (
		submissions []Submission
		rowErrors   []RowError
		seenIDs     = make(map[string]int)
		number      int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				rowErrors = append(rowErrors, RowError{Line: csvErr.StartLine, Message: csvErr.Err.Error()})
				continue
			}
			return nil, &ParseError{Path: name, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if blankRecord(record) {
			continue
		}
		number++
		if len(record) != len(header) {
			rowErrors = append(rowErrors, RowError{
				Line:    line,
				Message: fmt.Sprintf("expected %d fields, found %d", len(header), len(record)),
			})
			continue
		}
		get := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		sub := Submission{
			Number:      number,
			TeamName:    get(FieldTeamName),
			ProjectName: get(FieldProjectName),
			Description: get(FieldDescription),
			SubmittedAt: get(FieldSubmittedAt),
		}
		if sub.TeamName == "" {
			rowErrors = append(rowErrors, RowError{Line: line, Message: "team name is empty"})
			continue
		}
		if sub.ProjectName == "" {
			sub.ProjectName = sub.TeamName
		}
		sub.TeamMembers = ParseMembers(get(FieldTeamMembers))

		if opts.Columns.ID != "" {
			sub.ID = SanitizeName(get(FieldID))
			if sub.ID == "" {
				rowErrors = append(rowErrors, RowError{Line: line, Message: "submission id is empty"})
				continue
			}
		} else {
			sub.ID = GenerateID(number, sub.ProjectName)
		}
		if prev, dup := seenIDs[sub.ID]; dup {
			rowErrors = append(rowErrors, RowError{
				Line:    line,
				Message: fmt.Sprintf("duplicate submission id %q (first seen on line %d)", sub.ID, prev),
			})
			continue
		}
		seenIDs[sub.ID] = line

		github := ClassifyGitHubURL(get(FieldGitHubURL))
		sub.RepoURL = github.Cleaned
		if sub.RepoURL == "" {
			sub.RepoURL = github.Original
		}
		sub.CloneURL = github.CloneURL
		for _, issue := range github.Issues {
			sub.Issues = append(sub.Issues, "github:"+issue)
		}

		video := ClassifyVideoURL(get(FieldVideoURL))
		sub.VideoURL = video.Original
		sub.VideoPlatform = video.Platform
		for _, issue := range video.Issues {
			sub.Issues = append(sub.Issues, "video:"+issue)
		}

		if sub.SubmittedAt != "" {
			sub.Lateness = OnTime
			if hasDeadline {
				if ts, err := config.ParseTimestamp(sub.SubmittedAt); err == nil && ts.After(deadline) {
					minutes := ts.Sub(deadline).Minutes()
					sub.MinutesLate = math.Round(minutes*10) / 10
					sub.Lateness = classifyLateness(minutes, grace)
				}
			}
		}

		if len(extraIndex) > 0 {
			sub.Extra = make(map[string]string, len(extraIndex))
			for name, idx := range extraIndex {
				if idx < len(record) {
					sub.Extra[name] = strings.TrimSpace(record[idx])
				}
			}
		}
		submissions = append(submissions, sub)
	}

	if len(rowErrors) > 0 {
		return nil, &ParseError{Path: name, Rows: rowErrors}
	}
	return submissions, nil
}

// GenerateID derives the stable id for a row without a configured id column.
func GenerateID(number int, name string) string {
	sanitized := SanitizeName(name)
	if sanitized == "" {
		sanitized = "submission"
	}
	return fmt.Sprintf("%03d_%s", number, sanitized)
}

func classifyLateness(minutes, grace float64) Lateness {
	switch {
	case minutes <= 0:
		return OnTime
	case minutes <= grace:
		return GracePeriod
	case minutes <= moderateLatenessMinutes:
		return ModeratelyLate
	default:
		return SignificantlyLate
	}
}

// resolveColumns maps field names to header indexes. A configured header
// wins; otherwise the first matching alias is used.
func resolveColumns(header []string, cols config.Columns) map[string]int {
	configured := map[string]string{
		FieldID:          cols.ID,
		FieldTeamName:    cols.TeamName,
		FieldTeamMembers: cols.TeamMembers,
		FieldProjectName: cols.ProjectName,
		FieldDescription: cols.Description,
		FieldGitHubURL:   cols.GitHubURL,
		FieldVideoURL:    cols.VideoURL,
		FieldSubmittedAt: cols.SubmittedAt,
	}
	out := make(map[string]int, len(configured))
	for field, name := range configured {
		if name != "" {
			if idx, ok := headerIndex(header, name); ok {
				out[field] = idx
				continue
			}
		}
		if field == FieldID {
			continue
		}
		for _, alias := range columnAliases[field] {
			if idx, ok := headerIndex(header, alias); ok {
				out[field] = idx
				break
			}
		}
	}
	return out
}

func headerIndex(header []string, name string) (int, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range header {
		if strings.ToLower(strings.TrimSpace(candidate)) == want {
			return i, true
		}
	}
	return 0, false
}

func describeField(field string, cols config.Columns) string {
	var configured string
	switch field {
	case FieldID:
		configured = cols.ID
	case FieldTeamName:
		configured = cols.TeamName
	case FieldGitHubURL:
		configured = cols.GitHubURL
	}
	if configured == "" {
		return field
	}
	return fmt.Sprintf("%s (%q)", field, configured)
}

func blankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

var memberPattern = regexp.MustCompile(`([^(,]+?)\s*\(([^)]+)\)`)

// ParseMembers reads "Name (email), Name (email)" lists. Text without
// emails becomes comma separated names.
func ParseMembers(raw string) []Member {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var members []Member
	for _, match := range memberPattern.FindAllStringSubmatch(raw, -1) {
		members = append(members, Member{
			Name:  strings.TrimSpace(strings.TrimLeft(match[1], ", ")),
			Email: strings.TrimSpace(match[2]),
		})
	}
	if len(members) > 0 {
		return members
	}
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			members = append(members, Member{Name: name})
		}
	}
	return members
}

// SortByNumber orders submissions by CSV row number.
func SortByNumber(subs []Submission) {
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].Number < subs[j].Number })
}
