package record

import (
	"github.com/mispesos/engine/constants"
)

// Origin tags which extractor produced a record.
type Origin string

const (
	OriginInference Origin = "inference"
	OriginCache     Origin = "cache"
	OriginFallback  Origin = "pattern-fallback"
)

// MaxDescriptionLen caps the free-text description.
const MaxDescriptionLen = 500

// Record is the canonical extraction output: the structured reading of a
// free-form financial statement. An absent Amount means extraction failed;
// callers distinguish that from a successful low-confidence record.
type Record struct {
	Amount        *float64
	Description   string
	Category      constants.Category
	PaymentMethod constants.PaymentMethod
	Location      string
	DateOffset    int // days relative to now; 0 = today
	Confidence    float64
	Origin        Origin
	RawResponse   string
}

// Successful reports whether the record carries a usable amount.
// Downstream consumers only accept successful records.
func (r Record) Successful() bool {
	return r.Amount != nil && *r.Amount > 0
}

// WithOrigin returns a copy tagged with the given origin.
func (r Record) WithOrigin(o Origin) Record {
	r.Origin = o
	return r
}

// Amt is a convenience constructor for amount pointers.
func Amt(v float64) *float64 { return &v }

// TruncateDescription enforces the description length cap.
func TruncateDescription(s string) string {
	if len(s) > MaxDescriptionLen {
		return s[:MaxDescriptionLen]
	}
	return s
}
