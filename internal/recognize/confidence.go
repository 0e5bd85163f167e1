package recognize

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b|\b20\d{2}\b`)
	reCurr   = regexp.MustCompile(`\b(cop|usd|eur|pesos?)\b|[$]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})?\b|\b\d{4,}\b`)
)

// heuristicConfidence scores recognized text by receipt artifacts: a
// date-ish, currency-ish or amount-ish token each raises the score above
// a small base.
func heuristicConfidence(txt string) float64 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	lower := strings.ToLower(txt)
	score := 0.2
	if reDate.MatchString(lower) {
		score += 0.2
	}
	if reCurr.MatchString(lower) {
		score += 0.15
	}
	if reAmount.MatchString(lower) {
		score += 0.25
	}
	if len(lower) > 80 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}
