package inference

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/record"
)

// ErrMalformedOutput marks a response with no parsable JSON block or a
// block failing schema validation. It is a client-side extraction failure,
// not a transport failure; both take the same retry path.
var ErrMalformedOutput = errors.New("no parsable JSON in inference output")

// reJSONBlock grabs the first top-level {...} span, newlines included.
var reJSONBlock = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONBlock scans raw model output for its JSON payload.
func extractJSONBlock(s string) ([]byte, bool) {
	m := reJSONBlock.FindString(s)
	if m == "" {
		return nil, false
	}
	return []byte(m), true
}

// parseResponse turns raw model output into a normalized record, or
// ErrMalformedOutput when no valid JSON object can be recovered.
func (c *Client) parseResponse(raw, original string) (record.Record, error) {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return record.Record{}, ErrMalformedOutput
	}
	if err := validateAgainstSchema(buildResponseSchema(), block); err != nil {
		return record.Record{}, errors.Join(ErrMalformedOutput, err)
	}

	var data map[string]any
	if err := json.Unmarshal(block, &data); err != nil {
		return record.Record{}, errors.Join(ErrMalformedOutput, err)
	}

	return c.normalize(data, original, raw), nil
}

// normalize validates extracted fields and applies confidence penalties:
// invalid amount zeroes the result, unknown category defaults to other,
// unknown payment method defaults to card. All penalties floor at 0.
func (c *Client) normalize(data map[string]any, original, raw string) record.Record {
	rec := record.Record{
		RawResponse: raw,
		Confidence:  clamp01(asFloat(data["confidence"])),
	}

	if amount := asFloat(data["amount"]); amount > 0 {
		rec.Amount = record.Amt(amount)
	} else {
		rec.Confidence = floor0(rec.Confidence - c.cfg.AmountPenalty)
	}

	desc := strings.TrimSpace(asString(data["description"]))
	if desc != "" {
		rec.Description = record.TruncateDescription(desc)
	} else {
		rec.Description = fallbackDescription(original)
	}

	cat, ok := constants.CanonicalizeCategory(asString(data["category"]))
	rec.Category = cat
	if !ok {
		rec.Confidence = floor0(rec.Confidence - c.cfg.CategoryPenalty)
	}

	pm, ok := constants.CanonicalizePaymentMethod(asString(data["payment_method"]))
	rec.PaymentMethod = pm
	if !ok {
		rec.Confidence = floor0(rec.Confidence - c.cfg.PaymentPenalty)
	}

	rec.Location = strings.TrimSpace(asString(data["location"]))
	rec.DateOffset = int(asFloat(data["date_offset"]))

	return rec
}

func fallbackDescription(original string) string {
	if len(original) > 100 {
		return original[:100]
	}
	return original
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func floor0(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
