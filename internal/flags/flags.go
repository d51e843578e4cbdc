// Package flags collects structured issues raised while reviewing
// submissions and groups them for reporting. Flags never influence control
// flow; they are recomputed from persisted stage records at report time.
package flags

import (
	"sort"
	"strings"
	"sync"
)

// Category classifies a flag.
type Category string

const (
	CategoryCloneFailed      Category = "CLONE_FAILED"
	CategoryVideoUnavailable Category = "VIDEO_UNAVAILABLE"
	CategoryVideoUnrelated   Category = "VIDEO_UNRELATED"
	CategoryLateSubmission   Category = "LATE_SUBMISSION"
	CategoryPreexistingCode  Category = "PREEXISTING_CODE"
	CategorySingleCommit     Category = "SINGLE_COMMIT"
	CategoryOther            Category = "OTHER"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryCloneFailed,
	CategoryVideoUnavailable,
	CategoryVideoUnrelated,
	CategoryLateSubmission,
	CategoryPreexistingCode,
	CategorySingleCommit,
	CategoryOther,
}

// Severity ranks a flag.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Flag is one structured issue. SubmissionID is empty for pipeline-level flags.
type Flag struct {
	SubmissionID string   `json:"submission_id,omitempty"`
	Category     Category `json:"category"`
	Severity     Severity `json:"severity"`
	Stage        string   `json:"stage"`
	Message      string   `json:"message"`
}

// Warning builds a WARNING flag.
func Warning(category Category, stage, message string) Flag {
	return Flag{Category: category, Severity: SeverityWarning, Stage: stage, Message: strings.TrimSpace(message)}
}

// Error builds an ERROR flag.
func Error(category Category, stage, message string) Flag {
	return Flag{Category: category, Severity: SeverityError, Stage: stage, Message: strings.TrimSpace(message)}
}

// Carrier is implemented by persisted records that hold flags.
type Carrier interface {
	StoredFlags() []Flag
}

// FromRecords rebuilds the flag set from persisted records.
func FromRecords[T Carrier](records ...T) []Flag {
	var out []Flag
	for _, record := range records {
		out = append(out, record.StoredFlags()...)
	}
	Sort(out)
	return out
}

// Aggregator accumulates flags from concurrent stage workers.
type Aggregator struct {
	mu    sync.Mutex
	flags []Flag
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add records flags. Safe for concurrent use.
func (a *Aggregator) Add(flags ...Flag) {
	if a == nil || len(flags) == 0 {
		return
	}
	a.mu.Lock()
	a.flags = append(a.flags, flags...)
	a.mu.Unlock()
}

// Flags returns a sorted copy of the recorded flags.
func (a *Aggregator) Flags() []Flag {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	out := append([]Flag(nil), a.flags...)
	a.mu.Unlock()
	Sort(out)
	return out
}

// Report groups the recorded flags.
func (a *Aggregator) Report() Report {
	return Collect(a.Flags())
}

// Report is the grouped view of a flag set.
type Report struct {
	Flags        []Flag
	ByCategory   map[Category][]Flag
	BySeverity   map[Severity]int
	BySubmission map[string][]Flag
}

// Collect deduplicates, orders, and groups flags.
func Collect(flags []Flag) Report {
	report := Report{
		ByCategory:   make(map[Category][]Flag),
		BySeverity:   make(map[Severity]int),
		BySubmission: make(map[string][]Flag),
	}
	sorted := append([]Flag(nil), flags...)
	Sort(sorted)
	seen := make(map[Flag]struct{}, len(sorted))
	for _, flag := range sorted {
		if _, ok := seen[flag]; ok {
			continue
		}
		seen[flag] = struct{}{}
		report.Flags = append(report.Flags, flag)
		report.ByCategory[flag.Category] = append(report.ByCategory[flag.Category], flag)
		report.BySeverity[flag.Severity]++
		report.BySubmission[flag.SubmissionID] = append(report.BySubmission[flag.SubmissionID], flag)
	}
	return report
}

// Total returns the number of distinct flags.
func (r Report) Total() int {
	return len(r.Flags)
}

// PipelineFlags returns flags not tied to a submission.
func (r Report) PipelineFlags() []Flag {
	return r.BySubmission[""]
}

// Submissions lists submission ids carrying flags, sorted.
func (r Report) Submissions() []string {
	ids := make([]string, 0, len(r.BySubmission))
	for id := range r.BySubmission {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sort orders flags by severity, category, submission id, stage, then message.
func Sort(flags []Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		a, b := flags[i], flags[j]
		if ra, rb := severityRank(a.Severity), severityRank(b.Severity); ra != rb {
			return ra < rb
		}
		if ra, rb := categoryRank(a.Category), categoryRank(b.Category); ra != rb {
			return ra < rb
		}
		if a.SubmissionID != b.SubmissionID {
			return a.SubmissionID < b.SubmissionID
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		return a.Message < b.Message
	})
}

func severityRank(s Severity) int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

func categoryRank(c Category) int {
	for i, candidate := range Categories {
		if candidate == c {
			return i
		}
	}
	return len(Categories)
}
