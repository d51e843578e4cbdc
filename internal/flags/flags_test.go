package flags

import (
	"sync"
	"testing"
)

type stored []Flag

func (s stored) StoredFlags() []Flag { return s }

func TestCollectOrdersAndGroups(t *testing.T) {
	input := []Flag{
		{SubmissionID: "002_b", Category: CategoryLateSubmission, Severity: SeverityWarning, Stage: "PARSE", Message: "late"},
		{SubmissionID: "003_c", Category: CategoryCloneFailed, Severity: SeverityError, Stage: "CLONE", Message: "not found"},
		{SubmissionID: "001_a", Category: CategoryCloneFailed, Severity: SeverityError, Stage: "CLONE", Message: "private"},
		{Category: CategoryOther, Severity: SeverityError, Stage: "CLONE", Message: "halted"},
	}
	report := Collect(input)
	if report.Total() != 4 {
		t.Fatalf("expected 4 flags, got %d", report.Total())
	}
	wantOrder := []string{"001_a", "003_c", "", "002_b"}
	for i, flag := range report.Flags {
		if flag.SubmissionID != wantOrder[i] {
			t.Fatalf("flag %d: got %q want %q (%+v)", i, flag.SubmissionID, wantOrder[i], report.Flags)
		}
	}
	if got := len(report.ByCategory[CategoryCloneFailed]); got != 2 {
		t.Fatalf("expected 2 clone failures, got %d", got)
	}
	if report.BySeverity[SeverityError] != 3 || report.BySeverity[SeverityWarning] != 1 {
		t.Fatalf("unexpected severity counts %v", report.BySeverity)
	}
	if got := report.PipelineFlags(); len(got) != 1 || got[0].Message != "halted" {
		t.Fatalf("unexpected pipeline flags %+v", got)
	}
	if subs := report.Submissions(); len(subs) != 3 || subs[0] != "001_a" {
		t.Fatalf("unexpected submissions %v", subs)
	}
}

func TestCollectDropsExactDuplicates(t *testing.T) {
	flag := Flag{SubmissionID: "001_a", Category: CategorySingleCommit, Severity: SeverityWarning, Stage: "CLONE", Message: "one commit"}
	report := Collect([]Flag{flag, flag})
	if report.Total() != 1 {
		t.Fatalf("expected duplicate to collapse, got %d", report.Total())
	}
}

func TestFromRecordsConcatenatesStoredFlags(t *testing.T) {
	got := FromRecords(
		stored{{SubmissionID: "b", Category: CategoryOther, Severity: SeverityWarning}},
		stored{{SubmissionID: "a", Category: CategoryCloneFailed, Severity: SeverityError}},
		stored(nil),
	)
	if len(got) != 2 || got[0].SubmissionID != "a" {
		t.Fatalf("unexpected flags %+v", got)
	}
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	agg := NewAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Add(Warning(CategoryOther, "ANALYZE", "note"))
		}()
	}
	wg.Wait()
	if got := len(agg.Flags()); got != 20 {
		t.Fatalf("expected 20 flags, got %d", got)
	}
	if agg.Report().Total() != 1 {
		t.Fatal("expected identical flags to collapse in the report")
	}
}
