package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/gasflow/ops-console/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCoalescerRunsOncePerWindow(t *testing.T) {
	clock := NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	runs := 0
	c := NewCoalescer("test", 500*time.Millisecond, func(context.Context) { runs++ }, WithClock(clock))

	for i := 0; i < 5; i++ {
		c.Trigger()
		clock.Advance(50 * time.Millisecond)
	}
	if runs != 0 {
		t.Fatalf("refresh ran inside the window")
	}

	clock.Advance(250 * time.Millisecond)
	if runs != 1 {
		t.Fatalf("expected exactly one run after the window, got %d", runs)
	}
	if c.Pending() {
		t.Fatal("window should be closed after running")
	}

	c.Trigger()
	clock.Advance(500 * time.Millisecond)
	if runs != 2 {
		t.Fatalf("a new burst should open a new window, got %d runs", runs)
	}
}

func TestCoalescerFlushAndStop(t *testing.T) {
	clock := NewManualClock(time.Now())
	runs := 0
	c := NewCoalescer("test", time.Second, func(context.Context) { runs++ }, WithClock(clock))

	c.Flush()
	if runs != 0 {
		t.Fatal("flush without a trigger should not run")
	}

	c.Trigger()
	c.Flush()
	if runs != 1 {
		t.Fatalf("flush should run the pending refresh, got %d", runs)
	}
	clock.Advance(time.Second)
	if runs != 1 {
		t.Fatalf("stopped timer must not fire again, got %d", runs)
	}

	c.Trigger()
	c.Stop()
	clock.Advance(time.Second)
	c.Trigger()
	clock.Advance(time.Second)
	if runs != 1 {
		t.Fatalf("stopped coalescer ran, got %d", runs)
	}
	if clock.Waiting() != 0 {
		t.Fatalf("expected no live timers, got %d", clock.Waiting())
	}
}

func TestCoalescerCountsTriggersAndRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRefreshMetrics(reg)
	clock := NewManualClock(time.Now())
	c := NewCoalescer("orders", DefaultWindow, nil, WithClock(clock), WithRefreshMetrics(m))

	c.Trigger()
	c.Trigger()
	c.Trigger()
	clock.Advance(DefaultWindow)

	expected := `
# HELP refresh_runs_total Refreshes actually executed after coalescing.
# TYPE refresh_runs_total counter
refresh_runs_total{queue="orders"} 1
# HELP refresh_triggers_total Refresh requests received by a coalescer.
# TYPE refresh_triggers_total counter
refresh_triggers_total{queue="orders"} 3
`
	if err := testutil.GatherAndCompare(reg, stringsReader(expected), "refresh_runs_total", "refresh_triggers_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
