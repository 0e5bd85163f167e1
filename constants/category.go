package constants

import (
	"strings"
)

type Category string

const (
	Food          Category = "food"
	Transport     Category = "transport"
	Services      Category = "services"
	Entertainment Category = "entertainment"
	Health        Category = "health"
	Clothing      Category = "clothing"
	Education     Category = "education"
	Housing       Category = "housing"
	OtherCategory Category = "other"
)

// allCategories is ordered; keyword detection walks this order and the
// first matching category wins.
var allCategories = []Category{
	Food,
	Transport,
	Services,
	Entertainment,
	Health,
	Clothing,
	Education,
	Housing,
	OtherCategory,
}

func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func CategoryNames() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// categorySynonyms maps the source-locale labels the inference service
// tends to emit onto canonical values.
var categorySynonyms = map[string]Category{
	"alimentacion":    Food,
	"alimentación":    Food,
	"comida":          Food,
	"transporte":      Transport,
	"servicios":       Services,
	"entretenimiento": Entertainment,
	"salud":           Health,
	"ropa":            Clothing,
	"educacion":       Education,
	"educación":       Education,
	"casa":            Housing,
	"vivienda":        Housing,
	"otros":           OtherCategory,
}

// CanonicalizeCategory maps free-form category labels to the canonical
// enumeration. Unrecognized input maps to OtherCategory with ok=false.
func CanonicalizeCategory(input string) (Category, bool) {
	if input == "" {
		return OtherCategory, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	if cat, ok := categorySynonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return OtherCategory, false
}
