package interpret

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/mispesos/engine/internal/record"
)

// RetryConfig bounds the inference attempt loop.
type RetryConfig struct {
	MaxRetries       int           // attempt budget (default 2)
	BaseDelay        time.Duration // backoff base (default 2s)
	AcceptConfidence float64       // acceptance gate (default 0.6)
}

// Outcome reports how a retried interpretation resolved. The record is
// always present; Accepted marks a confident inference result, everything
// else came from the pattern fallback.
type Outcome struct {
	Record       record.Record
	Accepted     bool
	UsedFallback bool
	TimedOut     bool
}

// RetryingInterpreter drives the inference client with exponential
// backoff and an attempt budget, falling back to the pattern extractor
// when inference fails or is insufficiently confident. Weak inference
// results are discarded, not blended.
type RetryingInterpreter struct {
	client  InferenceClient
	pattern *PatternExtractor
	cfg     RetryConfig
	logger  *slog.Logger

	// sleep is injectable so tests observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryingInterpreter.
type RetryOption func(*RetryingInterpreter)

// WithSleep replaces the backoff sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *RetryingInterpreter) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func NewRetryingInterpreter(client InferenceClient, pattern *PatternExtractor, cfg RetryConfig, logger *slog.Logger, opts ...RetryOption) *RetryingInterpreter {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.AcceptConfidence <= 0 {
		cfg.AcceptConfidence = 0.6
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &RetryingInterpreter{
		client:  client,
		pattern: pattern,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Interpret runs the attempt loop: at most MaxRetries inference calls,
// sleeping baseDelay×2^attempt between failures (never after the last).
// Timeouts and other failures take the same control path and differ only
// in the outcome flags.
func (r *RetryingInterpreter) Interpret(ctx context.Context, message string) Outcome {
	var (
		rec      record.Record
		got      bool
		timedOut bool
	)

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		r.logger.Debug("interpret.attempt", "attempt", attempt+1, "max", r.cfg.MaxRetries)

		res, err := r.client.Infer(ctx, message)
		if err == nil {
			rec = res
			got = true
			break
		}

		if isTimeout(err) {
			timedOut = true
			r.logger.Error("interpret.attempt.timeout", "attempt", attempt+1, "error", err)
		} else {
			r.logger.Error("interpret.attempt.failed", "attempt", attempt+1, "error", err)
		}

		if attempt < r.cfg.MaxRetries-1 {
			delay := r.cfg.BaseDelay * (1 << attempt)
			r.logger.Warn("interpret.attempt.retrying", "delay", delay)
			if err := r.sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	if got {
		if rec.Confidence > r.cfg.AcceptConfidence && rec.Successful() {
			return Outcome{Record: rec, Accepted: true, TimedOut: timedOut}
		}
		// Weak result: discard it and fall back, flagged for metrics.
		r.logger.Warn("interpret.inference.weak",
			"confidence", rec.Confidence,
			"amount_present", rec.Amount != nil,
		)
		return Outcome{Record: r.pattern.Extract(message), UsedFallback: true, TimedOut: timedOut}
	}

	r.logger.Warn("interpret.inference.exhausted",
		"attempts", r.cfg.MaxRetries, "timed_out", timedOut)
	return Outcome{Record: r.pattern.Extract(message), UsedFallback: true, TimedOut: timedOut}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
