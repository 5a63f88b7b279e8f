package metrics

import (
	"sync"
	"time"

	"github.com/adaptivelab/experiment-core/pkg/utils"
)

// Collector gathers per-experiment engine metrics: ask latencies and fit
// durations per strategy, plus named event counters (tells, fallbacks,
// timeouts). Safe for concurrent use.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time

	// strategy name -> observed ask latencies (ms)
	askLatencies map[string][]float64
	// strategy name -> observed fit durations (ms)
	fitDurations map[string][]float64
	// free-form event counters
	counters map[string]int64
}

// LatencySummary aggregates a series of duration observations
type LatencySummary struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// Summary is a point-in-time aggregation of everything collected
type Summary struct {
	UptimeMs     int64                     `json:"uptime_ms"`
	AskLatencies map[string]LatencySummary `json:"ask_latencies"`
	FitDurations map[string]LatencySummary `json:"fit_durations"`
	Counters     map[string]int64          `json:"counters"`
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		askLatencies: make(map[string][]float64),
		fitDurations: make(map[string][]float64),
		counters:     make(map[string]int64),
	}
}

// ObserveAskLatency records how long one ask took for the named strategy
func (c *Collector) ObserveAskLatency(strategy string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.askLatencies[strategy] = append(c.askLatencies[strategy], float64(d.Microseconds())/1000)
}

// ObserveFitDuration records how long one surrogate fit took for the named
// strategy
func (c *Collector) ObserveFitDuration(strategy string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fitDurations[strategy] = append(c.fitDurations[strategy], float64(d.Microseconds())/1000)
}

// Inc increments a named counter
func (c *Collector) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
}

// Counter returns the current value of a named counter
func (c *Collector) Counter(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// Summarize aggregates all collected series
func (c *Collector) Summarize() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Summary{
		UptimeMs:     time.Since(c.startTime).Milliseconds(),
		AskLatencies: make(map[string]LatencySummary, len(c.askLatencies)),
		FitDurations: make(map[string]LatencySummary, len(c.fitDurations)),
		Counters:     make(map[string]int64, len(c.counters)),
	}
	for name, series := range c.askLatencies {
		s.AskLatencies[name] = summarize(series)
	}
	for name, series := range c.fitDurations {
		s.FitDurations[name] = summarize(series)
	}
	for name, v := range c.counters {
		s.Counters[name] = v
	}
	return s
}

func summarize(series []float64) LatencySummary {
	max := 0.0
	for _, v := range series {
		if v > max {
			max = v
		}
	}
	return LatencySummary{
		Count:    len(series),
		MeanMs:   utils.Mean(series),
		StdDevMs: utils.StdDev(series),
		P50Ms:    utils.P50(series),
		P95Ms:    utils.P95(series),
		MaxMs:    max,
	}
}
