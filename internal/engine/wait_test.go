package engine

import (
	"context"
	"testing"
	"time"
)

func TestTimingValidate(t *testing.T) {
	if err := DefaultTiming().Validate(); err != nil {
		t.Fatalf("default timing should validate: %v", err)
	}

	bad := DefaultTiming()
	bad.Watchdog = bad.SoftTimeout
	if err := bad.Validate(); err == nil {
		t.Fatal("watchdog >= soft timeout must be rejected")
	}

	bad = DefaultTiming()
	bad.Tick = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero tick must be rejected")
	}
}

func TestPollUntilDone(t *testing.T) {
	calls := 0
	res, _ := pollUntil(context.Background(), time.Millisecond, time.Second, 2*time.Second, func() bool {
		calls++
		return calls >= 3
	})
	if res != pollDone {
		t.Fatalf("expected pollDone, got %v", res)
	}
}

// A loop that never stabilizes must hit the watchdog strictly before the
// soft bound, and the two outcomes must stay distinguishable.
func TestPollUntilWatchdogPrecedesBound(t *testing.T) {
	res, elapsed := pollUntil(context.Background(), time.Millisecond, 500*time.Millisecond, 30*time.Millisecond, func() bool {
		return false
	})
	if res != pollWatchdogFired {
		t.Fatalf("expected watchdog abort, got %v", res)
	}
	if elapsed >= 500*time.Millisecond {
		t.Fatalf("watchdog fired too late: %v", elapsed)
	}
}

func TestPollUntilBoundElapsed(t *testing.T) {
	res, _ := pollUntil(context.Background(), time.Millisecond, 20*time.Millisecond, time.Second, func() bool {
		return false
	})
	if res != pollBoundElapsed {
		t.Fatalf("expected soft bound, got %v", res)
	}
}

func TestPollUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, _ := pollUntil(ctx, 50*time.Millisecond, time.Second, 2*time.Second, func() bool {
		return false
	})
	if res != pollCanceled {
		t.Fatalf("expected cancellation, got %v", res)
	}
}
