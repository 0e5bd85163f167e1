// Package interpret converts free-form financial statements into
// structured records. It composes normalization, a bounded TTL response
// cache, retried probabilistic inference and a deterministic pattern
// fallback behind a single facade that always produces a record.
package interpret

import (
	"context"

	"github.com/mispesos/engine/internal/record"
)

// InferenceClient is the single-attempt probabilistic extractor the
// interpreter depends on. Implementations must bound their own timeout.
type InferenceClient interface {
	Infer(ctx context.Context, message string) (record.Record, error)
}
