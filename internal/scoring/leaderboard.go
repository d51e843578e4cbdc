package scoring

import "sort"

// Entry is one scored submission.
type Entry struct {
	SubmissionID string
	Number       int
	TeamName     string
	ProjectName  string
	Breakdown    Breakdown
}

// Ranked is an Entry with its leaderboard position. Equal totals share a rank.
type Ranked struct {
	Entry
	Rank int
}

// Rank orders entries by weighted total, highest first, breaking ties by
// submission number.
func Rank(entries []Entry) []Ranked {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Breakdown.WeightedTotal != sorted[j].Breakdown.WeightedTotal {
			return sorted[i].Breakdown.WeightedTotal > sorted[j].Breakdown.WeightedTotal
		}
		return sorted[i].Number < sorted[j].Number
	})
	out := make([]Ranked, len(sorted))
	for i, entry := range sorted {
		rank := i + 1
		if i > 0 && entry.Breakdown.WeightedTotal == sorted[i-1].Breakdown.WeightedTotal {
			rank = out[i-1].Rank
		}
		out[i] = Ranked{Entry: entry, Rank: rank}
	}
	return out
}
