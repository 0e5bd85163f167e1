package metrics

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// RequestOutcome describes one interpretation request for aggregation.
type RequestOutcome struct {
	Success       bool
	Latency       time.Duration
	Confidence    float64
	HasConfidence bool
	Timeout       bool
	FromCache     bool
	UsedFallback  bool
}

// Thresholds classify overall health from windowed aggregates. Rates are
// percentages, latency is seconds.
type Thresholds struct {
	MinSamples     int
	TimeoutRate    float64
	SuccessRate    float64
	AvgLatencySecs float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSamples:     10,
		TimeoutRate:    30,
		SuccessRate:    70,
		AvgLatencySecs: 30,
	}
}

// Snapshot is a read-only view of the current window.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	TimeoutRequests    int64   `json:"timeout_requests"`
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	SuccessRate        float64 `json:"success_rate"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	TimeoutRate        float64 `json:"timeout_rate"`
	AverageLatencySecs float64 `json:"average_latency_seconds"`
	MinLatencySecs     float64 `json:"min_latency_seconds"`
	MaxLatencySecs     float64 `json:"max_latency_seconds"`
	AverageConfidence  float64 `json:"average_confidence"`
	LowConfidenceCount int64   `json:"low_confidence_count"`
	FallbackCount      int64   `json:"fallback_count"`
	WindowStart        string  `json:"window_start"`
}

// Health is the classified health view built from a snapshot.
type Health struct {
	Status        string   `json:"status"`
	Timestamp     string   `json:"timestamp"`
	UptimeSeconds float64  `json:"uptime_seconds"`
	Issues        []string `json:"issues"`
	Requests      Snapshot `json:"requests"`
}

// Aggregator keeps windowed counters for interpretation outcomes. It is
// safe for concurrent use; the window resets after resetInterval, logging
// a summary first.
type Aggregator struct {
	mu sync.Mutex

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	timeoutRequests    int64
	cacheHits          int64
	cacheMisses        int64

	totalLatency time.Duration
	minLatency   time.Duration
	maxLatency   time.Duration

	totalConfidence    float64
	lowConfidenceCount int64
	fallbackCount      int64

	windowStart   time.Time
	resetInterval time.Duration

	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

func WithResetInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.resetInterval = d
		}
	}
}

func WithThresholds(t Thresholds) Option {
	return func(a *Aggregator) { a.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		resetInterval: time.Hour,
		thresholds:    DefaultThresholds(),
		logger:        logger,
		now:           time.Now,
		minLatency:    time.Duration(math.MaxInt64),
	}
	for _, o := range opts {
		o(a)
	}
	a.windowStart = a.now()
	return a
}

// RecordRequest folds one request into the current window.
func (a *Aggregator) RecordRequest(out RequestOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.checkResetLocked()

	a.totalRequests++

	if out.FromCache {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}

	if out.UsedFallback {
		a.fallbackCount++
	}

	if out.Timeout {
		a.timeoutRequests++
		a.failedRequests++
		observeRequest(out)
		return
	}

	if out.Success {
		a.successfulRequests++

		a.totalLatency += out.Latency
		if out.Latency < a.minLatency {
			a.minLatency = out.Latency
		}
		if out.Latency > a.maxLatency {
			a.maxLatency = out.Latency
		}

		if out.HasConfidence {
			a.totalConfidence += out.Confidence
			if out.Confidence < 0.6 {
				a.lowConfidenceCount++
			}
		}
	} else {
		a.failedRequests++
	}

	observeRequest(out)
}

// Snapshot returns the current window's aggregates.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	s := Snapshot{
		TotalRequests:      a.totalRequests,
		SuccessfulRequests: a.successfulRequests,
		FailedRequests:     a.failedRequests,
		TimeoutRequests:    a.timeoutRequests,
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		LowConfidenceCount: a.lowConfidenceCount,
		FallbackCount:      a.fallbackCount,
		MaxLatencySecs:     a.maxLatency.Seconds(),
		WindowStart:        a.windowStart.UTC().Format(time.RFC3339),
	}
	if a.totalRequests > 0 {
		s.SuccessRate = float64(a.successfulRequests) / float64(a.totalRequests) * 100
		s.CacheHitRate = float64(a.cacheHits) / float64(a.totalRequests) * 100
		s.TimeoutRate = float64(a.timeoutRequests) / float64(a.totalRequests) * 100
	}
	if a.successfulRequests > 0 {
		s.AverageLatencySecs = a.totalLatency.Seconds() / float64(a.successfulRequests)
		s.AverageConfidence = a.totalConfidence / float64(a.successfulRequests)
	}
	if a.minLatency != time.Duration(math.MaxInt64) {
		s.MinLatencySecs = a.minLatency.Seconds()
	}
	return s
}

// Health classifies the current window. Thresholds apply only once the
// window holds more than MinSamples requests.
func (a *Aggregator) Health() Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.checkResetLocked()
	s := a.snapshotLocked()

	status := "healthy"
	issues := []string{}

	if s.TotalRequests > int64(a.thresholds.MinSamples) {
		if s.TimeoutRate > a.thresholds.TimeoutRate {
			status = "degraded"
			issues = append(issues, "high timeout rate")
		}
		if s.AverageLatencySecs > a.thresholds.AvgLatencySecs {
			status = "degraded"
			issues = append(issues, "high latency")
		}
		if s.SuccessRate < a.thresholds.SuccessRate {
			status = "unhealthy"
			issues = append(issues, "low success rate")
		}
	}

	now := a.now()
	return Health{
		Status:        status,
		Timestamp:     now.UTC().Format(time.RFC3339),
		UptimeSeconds: now.Sub(a.windowStart).Seconds(),
		Issues:        issues,
		Requests:      s,
	}
}

func (a *Aggregator) checkResetLocked() {
	if a.now().Sub(a.windowStart) <= a.resetInterval {
		return
	}
	s := a.snapshotLocked()
	a.logger.Info("metrics.window.reset",
		"total_requests", s.TotalRequests,
		"success_rate", s.SuccessRate,
		"cache_hit_rate", s.CacheHitRate,
		"timeout_rate", s.TimeoutRate,
		"avg_latency_s", s.AverageLatencySecs,
		"avg_confidence", s.AverageConfidence,
		"fallback_count", s.FallbackCount,
	)

	a.totalRequests = 0
	a.successfulRequests = 0
	a.failedRequests = 0
	a.timeoutRequests = 0
	a.cacheHits = 0
	a.cacheMisses = 0
	a.totalLatency = 0
	a.minLatency = time.Duration(math.MaxInt64)
	a.maxLatency = 0
	a.totalConfidence = 0
	a.lowConfidenceCount = 0
	a.fallbackCount = 0
	a.windowStart = a.now()
}
