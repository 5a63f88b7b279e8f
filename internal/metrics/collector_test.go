package metrics

import (
	"math"
	"testing"
	"time"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	if c.Counter("tells") != 0 {
		t.Fatal("expected zero for an untouched counter")
	}
	c.Inc("tells")
	c.Inc("tells")
	c.Inc("fallbacks")
	if c.Counter("tells") != 2 {
		t.Fatalf("expected 2 tells, got %d", c.Counter("tells"))
	}
	if c.Counter("fallbacks") != 1 {
		t.Fatalf("expected 1 fallback, got %d", c.Counter("fallbacks"))
	}
}

func TestCollectorLatencySummary(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= 4; i++ {
		c.ObserveAskLatency("explore", time.Duration(i)*10*time.Millisecond)
	}
	c.ObserveFitDuration("optimize", 50*time.Millisecond)

	s := c.Summarize()

	ask, ok := s.AskLatencies["explore"]
	if !ok {
		t.Fatal("missing ask latency series for explore")
	}
	if ask.Count != 4 {
		t.Fatalf("expected 4 observations, got %d", ask.Count)
	}
	if ask.MeanMs != 25 {
		t.Fatalf("expected mean 25ms, got %f", ask.MeanMs)
	}
	if ask.MaxMs != 40 {
		t.Fatalf("expected max 40ms, got %f", ask.MaxMs)
	}
	if math.Abs(ask.StdDevMs-math.Sqrt(125)) > 1e-9 {
		t.Fatalf("expected stddev %f, got %f", math.Sqrt(125), ask.StdDevMs)
	}

	fit, ok := s.FitDurations["optimize"]
	if !ok {
		t.Fatal("missing fit duration series for optimize")
	}
	if fit.Count != 1 || fit.MaxMs != 50 {
		t.Fatalf("unexpected fit summary: %+v", fit)
	}
}

func TestCollectorSummaryIsSnapshot(t *testing.T) {
	c := NewCollector()
	c.Inc("asks")
	s := c.Summarize()
	c.Inc("asks")
	if s.Counters["asks"] != 1 {
		t.Fatal("summary must not see later increments")
	}
}
