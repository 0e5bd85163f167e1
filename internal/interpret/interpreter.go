package interpret

import (
	"context"
	"log/slog"
	"time"

	"github.com/mispesos/engine/internal/metrics"
	"github.com/mispesos/engine/internal/record"
)

// Interpreter is the facade callers consume: normalize → cache →
// retried inference → confidence gate → cache write. It never returns an
// error; inference failures resolve to the pattern fallback, so a record
// is always producible (possibly unsuccessful).
type Interpreter struct {
	cache   *ResponseCache
	retrier *RetryingInterpreter
	agg     *metrics.Aggregator
	logger  *slog.Logger
	now     func() time.Time
}

func NewInterpreter(cache *ResponseCache, retrier *RetryingInterpreter, agg *metrics.Aggregator, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		cache:   cache,
		retrier: retrier,
		agg:     agg,
		logger:  logger,
		now:     time.Now,
	}
}

// Interpret converts raw text into a structured record.
func (i *Interpreter) Interpret(ctx context.Context, raw string) record.Record {
	start := i.now()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	_, fingerprint := Normalize(raw)

	if rec, ok := i.cache.Get(fingerprint); ok {
		rec = rec.WithOrigin(record.OriginCache)
		i.logger.Info("interpret.cache.hit", "fingerprint", fingerprint)
		i.agg.RecordRequest(metrics.RequestOutcome{
			Success:       true,
			Latency:       i.now().Sub(start),
			Confidence:    rec.Confidence,
			HasConfidence: true,
			FromCache:     true,
		})
		return rec
	}

	out := i.retrier.Interpret(ctx, raw)
	latency := i.now().Sub(start)

	if out.Accepted {
		rec := out.Record.WithOrigin(record.OriginInference)
		i.cache.Put(fingerprint, rec)
		i.logger.Info("interpret.inference.accepted",
			"confidence", rec.Confidence,
			"latency_ms", latency.Milliseconds(),
		)
		i.agg.RecordRequest(metrics.RequestOutcome{
			Success:       true,
			Latency:       latency,
			Confidence:    rec.Confidence,
			HasConfidence: true,
		})
		return rec
	}

	rec := out.Record.WithOrigin(record.OriginFallback)
	i.logger.Info("interpret.fallback",
		"successful", rec.Successful(),
		"confidence", rec.Confidence,
		"latency_ms", latency.Milliseconds(),
	)
	i.agg.RecordRequest(metrics.RequestOutcome{
		Success:      false,
		Latency:      latency,
		Timeout:      out.TimedOut,
		UsedFallback: true,
	})
	return rec
}
