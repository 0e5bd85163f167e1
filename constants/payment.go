package constants

import (
	"strings"
)

type PaymentMethod string

const (
	Card     PaymentMethod = "card"
	Cash     PaymentMethod = "cash"
	Transfer PaymentMethod = "transfer"
	Debit    PaymentMethod = "debit"
)

var allPaymentMethods = []PaymentMethod{Card, Cash, Transfer, Debit}

func PaymentMethodNames() []string {
	result := make([]string, len(allPaymentMethods))
	for i, pm := range allPaymentMethods {
		result[i] = string(pm)
	}
	return result
}

var paymentSynonyms = map[string]PaymentMethod{
	"tarjeta":       Card,
	"efectivo":      Cash,
	"transferencia": Transfer,
	"debito":        Debit,
	"débito":        Debit,
}

// CanonicalizePaymentMethod maps free-form payment labels to the canonical
// enumeration. Unrecognized input defaults to Card with ok=false.
func CanonicalizePaymentMethod(input string) (PaymentMethod, bool) {
	if input == "" {
		return Card, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	if pm, ok := paymentSynonyms[normalized]; ok {
		return pm, true
	}

	for _, pm := range allPaymentMethods {
		if normalized == string(pm) {
			return pm, true
		}
	}

	return Card, false
}
