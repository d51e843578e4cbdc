package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrExternalTool    = errors.New("external tool error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrPrivate         = errors.New("access denied")
	ErrInvalidURL      = errors.New("invalid url")
	ErrUnavailable     = errors.New("unavailable")
	ErrTimeout         = errors.New("timeout")
	ErrAuth            = errors.New("authentication failed")
	ErrRateLimit       = errors.New("rate limited")
	ErrInvalidResponse = errors.New("invalid response")
	ErrTransient       = errors.New("transient failure")
)

// Category is the coarse failure class persisted alongside FAILED stage records.
type Category string

const (
	CategoryNotFound        Category = "NOT_FOUND"
	CategoryPrivate         Category = "PRIVATE"
	CategoryInvalidURL      Category = "INVALID_URL"
	CategoryTimeout         Category = "TIMEOUT"
	CategoryUnavailable     Category = "UNAVAILABLE"
	CategoryAuth            Category = "AUTH"
	CategoryRateLimit       Category = "RATE_LIMIT"
	CategoryInvalidResponse Category = "INVALID_RESPONSE"
	CategoryTransient       Category = "TRANSIENT"
	CategoryValidation      Category = "VALIDATION"
	CategoryConfiguration   Category = "CONFIGURATION"
	CategoryExternalTool    Category = "EXTERNAL_TOOL"
	CategoryCanceled        Category = "CANCELED"
	CategoryInternal        Category = "INTERNAL"
)

// categoryMarkers is ordered: the first matching marker wins, so specific
// categories are listed ahead of the generic ones they may be wrapped with.
var categoryMarkers = []struct {
	marker   error
	category Category
}{
	{ErrNotFound, CategoryNotFound},
	{ErrPrivate, CategoryPrivate},
	{ErrInvalidURL, CategoryInvalidURL},
	{ErrAuth, CategoryAuth},
	{ErrRateLimit, CategoryRateLimit},
	{ErrTimeout, CategoryTimeout},
	{ErrInvalidResponse, CategoryInvalidResponse},
	{ErrUnavailable, CategoryUnavailable},
	{ErrConfiguration, CategoryConfiguration},
	{ErrValidation, CategoryValidation},
	{ErrTransient, CategoryTransient},
	{ErrExternalTool, CategoryExternalTool},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CategoryOf maps an error to the category recorded on a FAILED stage record.
// Deadline overruns count as timeouts; cancellation is reported separately so
// callers can tell an aborted run from a failed item.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	for _, entry := range categoryMarkers {
		if errors.Is(err, entry.marker) {
			return entry.category
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, context.Canceled):
		return CategoryCanceled
	}
	return CategoryInternal
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch CategoryOf(err) {
	case CategoryTimeout, CategoryRateLimit, CategoryTransient:
		return true
	default:
		return false
	}
}

// RetryAfterHinter is implemented by errors that carry a server supplied delay.
type RetryAfterHinter interface {
	RetryAfter() time.Duration
}

// RetryAfter extracts a retry delay hint from err, if any layer provides one.
func RetryAfter(err error) (time.Duration, bool) {
	var hinter RetryAfterHinter
	if errors.As(err, &hinter) {
		if d := hinter.RetryAfter(); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// ErrorDetails is the user-facing projection of a wrapped error.
type ErrorDetails struct {
	Category Category
	Message  string
}

// Details strips the marker prefix from err and returns a message suitable for
// reports alongside its category.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	msg := strings.TrimSpace(err.Error())
	for _, entry := range categoryMarkers {
		prefix := entry.marker.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			msg = strings.TrimSpace(strings.TrimPrefix(msg, prefix))
			break
		}
	}
	return ErrorDetails{Category: CategoryOf(err), Message: msg}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
