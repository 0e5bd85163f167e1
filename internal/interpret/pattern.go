package interpret

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mispesos/engine/constants"
	"github.com/mispesos/engine/internal/record"
)

// amountPattern pairs a compiled regex with the multiplier its unit
// implies. Patterns are tried in order; first match wins.
type amountPattern struct {
	re         *regexp.Regexp
	multiplier float64
}

var amountPatterns = []amountPattern{
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*k(?:\s|$)`), 1000},   // 50k, 50.5k
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mil(?:\s|$)`), 1000}, // 50mil
	{regexp.MustCompile(`(\d{4,})`), 1},                         // bare 4+ digit run
	{regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:mil|k)`), 1000},   // combinator fallback
}

// categoryKeywords is walked in enumeration order; the first category with
// a matching keyword wins. Keywords stay in the source locale because
// that's what the input text carries.
var categoryKeywords = []struct {
	category constants.Category
	words    []string
}{
	{constants.Food, []string{"almuerzo", "desayuno", "cena", "comida", "restaurante", "pizza", "hamburgues", "mercado"}},
	{constants.Transport, []string{"uber", "taxi", "bus", "transmilenio", "gasolina", "peaje"}},
	{constants.Services, []string{"internet", "telefono", "luz", "agua", "netflix", "spotify"}},
	{constants.Entertainment, []string{"cine", "bar", "discoteca", "concierto"}},
	{constants.Health, []string{"farmacia", "medicina", "doctor", "eps", "drogueria"}},
	{constants.Clothing, []string{"ropa", "camisa", "zapatos", "pantalon"}},
	{constants.Education, []string{"curso", "universidad", "matricula", "libro"}},
	{constants.Housing, []string{"arriendo", "administracion", "hipoteca"}},
}

// paymentKeywords is checked in precedence order card > cash > transfer >
// debit.
var paymentKeywords = []struct {
	method constants.PaymentMethod
	words  []string
}{
	{constants.Card, []string{"tarjeta", "card"}},
	{constants.Cash, []string{"efectivo", "cash"}},
	{constants.Transfer, []string{"transferencia", "transfer"}},
	{constants.Debit, []string{"debito", "débito"}},
}

// dayOffsetKeywords: "anteayer" must precede "ayer", which it contains.
var dayOffsetKeywords = []struct {
	word   string
	offset int
}{
	{"anteayer", -2},
	{"ayer", -1},
	{"mañana", 1},
	{"hoy", 0},
}

// PatternConfig carries the extractor's confidence constants. The found
// value differs by call context (0.8 as a baseline extractor, 0.6 as the
// last-resort fallback after inference failure); both stay configurable.
type PatternConfig struct {
	FoundConfidence float64 // amount extracted (default 0.6)
	MissConfidence  float64 // no amount found (default 0.2)
}

// PatternExtractor is the deterministic, side-effect-free fallback:
// regex amount extraction plus keyword category, payment-method and
// day-offset detection.
type PatternExtractor struct {
	cfg PatternConfig
}

func NewPatternExtractor(cfg PatternConfig) *PatternExtractor {
	if cfg.FoundConfidence <= 0 {
		cfg.FoundConfidence = 0.6
	}
	if cfg.MissConfidence <= 0 {
		cfg.MissConfidence = 0.2
	}
	return &PatternExtractor{cfg: cfg}
}

// Extract produces a record from text alone. The record is successful iff
// an amount pattern matched; confidence reflects only that.
func (p *PatternExtractor) Extract(text string) record.Record {
	lower := strings.ToLower(text)

	rec := record.Record{
		Description:   fallbackDescription(text),
		Category:      p.DetectCategory(lower),
		PaymentMethod: p.DetectPaymentMethod(lower),
		DateOffset:    p.DetectDateOffset(lower),
		Confidence:    p.cfg.MissConfidence,
		RawResponse:   "pattern",
	}

	if amount, ok := p.ExtractAmount(lower); ok {
		rec.Amount = record.Amt(amount)
		rec.Confidence = p.cfg.FoundConfidence
	}
	return rec
}

// ExtractAmount tries the amount patterns in order. Non-numeric or zero
// results count as failure.
func (p *PatternExtractor) ExtractAmount(lower string) (float64, bool) {
	for _, pat := range amountPatterns {
		m := pat.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		value *= pat.multiplier
		if value <= 0 {
			continue
		}
		return value, true
	}
	return 0, false
}

// DetectCategory returns the first category whose keyword table matches,
// in enumeration order; default other.
func (p *PatternExtractor) DetectCategory(lower string) constants.Category {
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.category
			}
		}
	}
	return constants.OtherCategory
}

// DetectPaymentMethod returns the highest-precedence matching method;
// default card.
func (p *PatternExtractor) DetectPaymentMethod(lower string) constants.PaymentMethod {
	for _, entry := range paymentKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.method
			}
		}
	}
	return constants.Card
}

// DetectDateOffset maps day keywords to an offset; default 0 (today).
func (p *PatternExtractor) DetectDateOffset(lower string) int {
	for _, entry := range dayOffsetKeywords {
		if strings.Contains(lower, entry.word) {
			return entry.offset
		}
	}
	return 0
}

func fallbackDescription(text string) string {
	if len(text) > 100 {
		return text[:100]
	}
	return text
}
