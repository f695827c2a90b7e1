package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func staticChecker(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Default timeout = %v, want 10s", agg.config.Timeout)
	}

	agg = NewAggregator(AggregatorConfig{Timeout: -1, MaxConcurrency: 2})
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Non-positive timeout should default, got %v", agg.config.Timeout)
	}
	if agg.config.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency = %d, want 2", agg.config.MaxConcurrency)
	}
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("b", staticChecker("b", Healthy("ok")))
	agg.Register("a", staticChecker("a", Healthy("ok")))
	agg.Register("b", staticChecker("b", Degraded("replaced")))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "b" || names[1] != "a" {
		t.Fatalf("CheckerNames() = %v, want [b a]", names)
	}

	r, err := agg.Check(context.Background(), "b")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if r.Message != "replaced" {
		t.Errorf("expected replaced checker, got %q", r.Message)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	agg := NewAggregator()
	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("expected ErrCheckerNotFound, got %v", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register("one", staticChecker("one", Healthy("ok")))
	agg.Register("two", staticChecker("two", Degraded("meh")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["two"].Status != StatusDegraded {
		t.Errorf("two = %v", results["two"].Status)
	}
	if results["one"].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	if got := NewAggregator().CheckAll(context.Background()); len(got) != 0 {
		t.Errorf("expected empty results, got %v", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	block := make(chan struct{})
	defer close(block)

	agg.Register("stuck", NewCheckerFunc("stuck", func(context.Context) Result {
		<-block
		return Healthy("late")
	}))

	results := agg.CheckAll(context.Background())
	r := results["stuck"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("expected timeout result, got %+v", r)
	}
}

func TestAggregator_MaxConcurrency(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{MaxConcurrency: 1})

	var running, peak atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return Healthy("ok")
		}))
	}

	results := agg.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"one unhealthy", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
