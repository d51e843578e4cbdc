package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hackreview/internal/config"
	"hackreview/internal/services"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

type hinted struct {
	after time.Duration
}

func (h hinted) Error() string             { return "slow down" }
func (h hinted) RetryAfter() time.Duration { return h.after }
func (h hinted) Unwrap() error             { return services.ErrRateLimit }

func TestDoRetriesTransientUntilBudgetExhausted(t *testing.T) {
	rec := &recorder{}
	policy := Policy{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Sleep: rec.sleep}
	calls := 0
	result, err := Do(context.Background(), policy, func(context.Context, int) error {
		calls++
		return services.Wrap(services.ErrTimeout, "clone", "git clone", "timed out", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 || result.Attempts != 3 {
		t.Fatalf("expected 3 calls, got calls=%d attempts=%d", calls, result.Attempts)
	}
	if services.CategoryOf(err) != services.CategoryTimeout {
		t.Fatalf("expected timeout category, got %s", services.CategoryOf(err))
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if fmt.Sprint(rec.delays) != fmt.Sprint(want) {
		t.Fatalf("unexpected delays %v", rec.delays)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	rec := &recorder{}
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 5, Sleep: rec.sleep}, func(context.Context, int) error {
		calls++
		return services.Wrap(services.ErrNotFound, "clone", "git clone", "repository not found", nil)
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected a single call without sleeping, calls=%d delays=%v", calls, rec.delays)
	}
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	rec := &recorder{}
	result, err := Do(context.Background(), Policy{Attempts: 3, Sleep: rec.sleep}, func(_ context.Context, attempt int) error {
		if attempt == 1 {
			return services.ErrTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", result.Attempts)
	}
}

func TestDoHonoursRetryAfterHint(t *testing.T) {
	rec := &recorder{}
	_, _ = Do(context.Background(), Policy{Attempts: 2, MaxDelay: 10 * time.Second, Sleep: rec.sleep}, func(context.Context, int) error {
		return hinted{after: 7 * time.Second}
	})
	if len(rec.delays) != 1 || rec.delays[0] != 7*time.Second {
		t.Fatalf("expected hinted delay, got %v", rec.delays)
	}

	rec = &recorder{}
	_, _ = Do(context.Background(), Policy{Attempts: 2, MaxDelay: 5 * time.Second, Sleep: rec.sleep}, func(context.Context, int) error {
		return hinted{after: time.Minute}
	})
	if len(rec.delays) != 1 || rec.delays[0] != 5*time.Second {
		t.Fatalf("expected hint capped at max delay, got %v", rec.delays)
	}
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 5, Sleep: func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}}, func(context.Context, int) error {
		calls++
		return services.ErrTransient
	})
	if calls != 1 {
		t.Fatalf("expected one call before cancellation, got %d", calls)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected last operation error, got %v", err)
	}
}

func TestDelayCapsExponentialGrowth(t *testing.T) {
	policy := Policy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{9, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.Delay(tt.attempt, errors.New("x")); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestFromConfig(t *testing.T) {
	policy := FromConfig(config.Retry{Attempts: 4, BaseDelaySeconds: 0.5, MaxDelaySeconds: 12})
	if policy.Attempts != 4 || policy.BaseDelay != 500*time.Millisecond || policy.MaxDelay != 12*time.Second {
		t.Fatalf("unexpected policy %+v", policy)
	}
}
