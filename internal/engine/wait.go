package engine

import (
	"context"
	"errors"
	"time"
)

// Timing bounds every wait in the engine. Bounds are configuration, not
// hard-coded: rendering latency in the field varies by an order of
// magnitude between environments.
//
// Two timeout classes exist. SoftTimeout is the answer-level bound: when it
// elapses the question fails with a structured outcome and the run
// continues. Watchdog is a hard per-loop ceiling that exists only to stop
// runaway polling against a control that toggles without stabilizing; it
// must be strictly shorter than SoftTimeout so a runaway loop is cut as an
// abort, never misreported as a late answer.
type Timing struct {
	Tick            time.Duration
	AwaitBusyBound  time.Duration // submit control must go busy within this
	AwaitReadyBound time.Duration // and return to ready within this
	SoftTimeout     time.Duration // completion-evidence window
	Watchdog        time.Duration // hard ceiling on any single poll loop
}

// DefaultTiming returns bounds tuned against the target UI's observed
// latency.
func DefaultTiming() Timing {
	return Timing{
		Tick:            400 * time.Millisecond,
		AwaitBusyBound:  10 * time.Second,
		AwaitReadyBound: 90 * time.Second,
		SoftTimeout:     120 * time.Second,
		Watchdog:        100 * time.Second,
	}
}

// Validate rejects configurations where the watchdog would not fire before
// the soft timeout, or where a phase bound escapes the watchdog.
func (t Timing) Validate() error {
	if t.Tick <= 0 {
		return errors.New("tick must be positive")
	}
	if t.Watchdog >= t.SoftTimeout {
		return errors.New("watchdog must be strictly shorter than soft timeout")
	}
	if t.AwaitBusyBound <= 0 || t.AwaitReadyBound <= 0 {
		return errors.New("submit phase bounds must be positive")
	}
	return nil
}

// pollResult tells pollUntil's caller how the loop ended.
type pollResult int

const (
	pollDone pollResult = iota
	pollBoundElapsed
	pollWatchdogFired
	pollCanceled
)

// pollUntil runs fn every tick until it reports done, the per-phase bound
// elapses, the watchdog ceiling fires, or ctx is canceled. fn runs once
// immediately so a loop with a generous tick still reacts to an
// already-satisfied condition.
func pollUntil(ctx context.Context, tick, bound, watchdog time.Duration, fn func() bool) (pollResult, time.Duration) {
	start := time.Now()
	timer := time.NewTicker(tick)
	defer timer.Stop()

	for {
		if fn() {
			return pollDone, time.Since(start)
		}
		elapsed := time.Since(start)
		if watchdog > 0 && elapsed >= watchdog {
			return pollWatchdogFired, elapsed
		}
		if elapsed >= bound {
			return pollBoundElapsed, elapsed
		}
		select {
		case <-ctx.Done():
			return pollCanceled, time.Since(start)
		case <-timer.C:
		}
	}
}
