package config

import (
	"fmt"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp accepts the timestamp shapes produced by common form tools.
// Values without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(trimmed, "Z") && !strings.Contains(trimmed, "T") {
		trimmed = strings.TrimSuffix(trimmed, "Z")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Deadline returns the submission deadline when configured.
func (h Hackathon) Deadline() (time.Time, bool) {
	if h.DeadlineUTC == "" {
		return time.Time{}, false
	}
	ts, err := ParseTimestamp(h.DeadlineUTC)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// GracePeriod returns the tolerated delay after the deadline.
func (h Hackathon) GracePeriod() time.Duration {
	return time.Duration(h.GracePeriodMinutes) * time.Minute
}

// Window returns the hackathon period used for git history checks. The end
// falls back to the deadline; a date-only end covers that whole day.
func (h Hackathon) Window() (time.Time, time.Time, bool) {
	if h.StartDate == "" {
		return time.Time{}, time.Time{}, false
	}
	start, err := ParseTimestamp(h.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	endValue := h.EndDate
	if endValue == "" {
		endValue = h.DeadlineUTC
	}
	if endValue == "" {
		return time.Time{}, time.Time{}, false
	}
	end, err := ParseTimestamp(endValue)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	if isDateOnly(endValue) {
		end = end.Add(24*time.Hour - time.Second)
	}
	return start, end, true
}

func isDateOnly(value string) bool {
	_, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	return err == nil
}
