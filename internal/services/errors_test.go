package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"hackreview/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "clone", "git clone", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"clone", "git clone", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Category
	}{
		{"nil", nil, ""},
		{"not found", services.Wrap(services.ErrNotFound, "clone", "", "missing", nil), services.CategoryNotFound},
		{"private", services.Wrap(services.ErrPrivate, "clone", "", "", nil), services.CategoryPrivate},
		{"timeout", services.Wrap(services.ErrTimeout, "download", "", "", nil), services.CategoryTimeout},
		{"rate limit", services.Wrap(services.ErrRateLimit, "analyze", "", "", nil), services.CategoryRateLimit},
		{"deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), services.CategoryTimeout},
		{"canceled", context.Canceled, services.CategoryCanceled},
		{"plain", errors.New("boom"), services.CategoryInternal},
		{"specific beats generic", services.Wrap(services.ErrExternalTool, "clone", "", "", services.ErrNotFound), services.CategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.CategoryOf(tt.err); got != tt.want {
				t.Fatalf("CategoryOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !services.IsTransient(services.Wrap(services.ErrTimeout, "clone", "", "", nil)) {
		t.Fatal("expected timeout to be transient")
	}
	if !services.IsTransient(services.Wrap(services.ErrRateLimit, "analyze", "", "", nil)) {
		t.Fatal("expected rate limit to be transient")
	}
	if services.IsTransient(services.Wrap(services.ErrNotFound, "clone", "", "", nil)) {
		t.Fatal("expected not found to be terminal")
	}
	if services.IsTransient(services.Wrap(services.ErrInvalidURL, "download", "", "", nil)) {
		t.Fatal("expected invalid url to be terminal")
	}
	if services.IsTransient(context.Canceled) {
		t.Fatal("expected cancellation to be terminal")
	}
}

type hintedError struct{ delay time.Duration }

func (e hintedError) Error() string             { return "slow down" }
func (e hintedError) RetryAfter() time.Duration { return e.delay }

func TestRetryAfterUnwrapsHint(t *testing.T) {
	err := services.Wrap(services.ErrRateLimit, "analyze", "", "", hintedError{delay: 3 * time.Second})
	d, ok := services.RetryAfter(err)
	if !ok || d != 3*time.Second {
		t.Fatalf("RetryAfter = %v, %v", d, ok)
	}
	if _, ok := services.RetryAfter(errors.New("plain")); ok {
		t.Fatal("expected no hint for plain error")
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "clone", "git clone", "repository not found", nil)
	details := services.Details(err)
	if details.Category != services.CategoryNotFound {
		t.Fatalf("unexpected category %q", details.Category)
	}
	if details.Message != "clone: git clone: repository not found" {
		t.Fatalf("unexpected message %q", details.Message)
	}
}
