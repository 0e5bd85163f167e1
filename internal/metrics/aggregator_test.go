package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCounters(t *testing.T) {
	a := NewAggregator(nil)

	a.RecordRequest(RequestOutcome{Success: true, Latency: 2 * time.Second, Confidence: 0.9, HasConfidence: true})
	a.RecordRequest(RequestOutcome{Success: true, Latency: 4 * time.Second, Confidence: 0.5, HasConfidence: true, FromCache: true})
	a.RecordRequest(RequestOutcome{Success: false, UsedFallback: true})
	a.RecordRequest(RequestOutcome{Timeout: true})

	s := a.Snapshot()
	assert.EqualValues(t, 4, s.TotalRequests)
	assert.EqualValues(t, 2, s.SuccessfulRequests)
	assert.EqualValues(t, 2, s.FailedRequests)
	assert.EqualValues(t, 1, s.TimeoutRequests)
	assert.EqualValues(t, 1, s.CacheHits)
	assert.EqualValues(t, 3, s.CacheMisses)
	assert.EqualValues(t, 1, s.FallbackCount)
	assert.EqualValues(t, 1, s.LowConfidenceCount)

	assert.InDelta(t, 50, s.SuccessRate, 1e-9)
	assert.InDelta(t, 25, s.CacheHitRate, 1e-9)
	assert.InDelta(t, 25, s.TimeoutRate, 1e-9)
	assert.InDelta(t, 3, s.AverageLatencySecs, 1e-9)
	assert.InDelta(t, 2, s.MinLatencySecs, 1e-9)
	assert.InDelta(t, 4, s.MaxLatencySecs, 1e-9)
	assert.InDelta(t, 0.7, s.AverageConfidence, 1e-9)
}

func TestSnapshotEmpty(t *testing.T) {
	a := NewAggregator(nil)

	s := a.Snapshot()
	assert.EqualValues(t, 0, s.TotalRequests)
	assert.Zero(t, s.SuccessRate)
	assert.Zero(t, s.AverageLatencySecs)
	assert.Zero(t, s.MinLatencySecs, "no requests yet means no sentinel leak")
}

func TestHealthHealthyBelowMinSamples(t *testing.T) {
	a := NewAggregator(nil)

	// All failures, but below the sample floor: thresholds do not apply.
	for i := 0; i < 10; i++ {
		a.RecordRequest(RequestOutcome{Success: false})
	}

	h := a.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Empty(t, h.Issues)
}

func TestHealthDegradedOnTimeouts(t *testing.T) {
	a := NewAggregator(nil)

	for i := 0; i < 7; i++ {
		a.RecordRequest(RequestOutcome{Success: true, Latency: time.Second, Confidence: 0.9, HasConfidence: true})
	}
	for i := 0; i < 4; i++ {
		a.RecordRequest(RequestOutcome{Timeout: true})
	}

	// 11 samples, 36% timeouts, 63% success: timeout degradation and the
	// success floor both trip.
	h := a.Health()
	assert.Equal(t, "unhealthy", h.Status)
	assert.Contains(t, h.Issues, "high timeout rate")
	assert.Contains(t, h.Issues, "low success rate")
}

func TestHealthDegradedOnLatency(t *testing.T) {
	a := NewAggregator(nil)

	for i := 0; i < 11; i++ {
		a.RecordRequest(RequestOutcome{Success: true, Latency: 40 * time.Second, Confidence: 0.9, HasConfidence: true})
	}

	h := a.Health()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, []string{"high latency"}, h.Issues)
}

func TestHealthUnhealthyOnSuccessRate(t *testing.T) {
	a := NewAggregator(nil)

	for i := 0; i < 6; i++ {
		a.RecordRequest(RequestOutcome{Success: true, Latency: time.Second, Confidence: 0.9, HasConfidence: true})
	}
	for i := 0; i < 5; i++ {
		a.RecordRequest(RequestOutcome{Success: false})
	}

	h := a.Health()
	assert.Equal(t, "unhealthy", h.Status)
	assert.Contains(t, h.Issues, "low success rate")
}

func TestWindowReset(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	a := NewAggregator(nil, WithResetInterval(time.Hour), WithClock(clock))

	for i := 0; i < 5; i++ {
		a.RecordRequest(RequestOutcome{Success: true, Latency: time.Second, Confidence: 0.9, HasConfidence: true})
	}
	require.EqualValues(t, 5, a.Snapshot().TotalRequests)

	now = now.Add(2 * time.Hour)
	a.RecordRequest(RequestOutcome{Success: true, Latency: time.Second, Confidence: 0.9, HasConfidence: true})

	s := a.Snapshot()
	assert.EqualValues(t, 1, s.TotalRequests, "window reset before folding the new request")
	assert.EqualValues(t, 1, s.SuccessfulRequests)
}

func TestCustomThresholds(t *testing.T) {
	a := NewAggregator(nil, WithThresholds(Thresholds{
		MinSamples:     0,
		TimeoutRate:    50,
		SuccessRate:    10,
		AvgLatencySecs: 100,
	}))

	a.RecordRequest(RequestOutcome{Success: true, Latency: time.Second, Confidence: 0.9, HasConfidence: true})

	h := a.Health()
	assert.Equal(t, "healthy", h.Status)
}
