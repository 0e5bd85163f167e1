package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mispesos/engine/constants"
)

func TestExtractAmount(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"almuerzo 50k", 50000, true},
		{"almuerzo 50.5k", 50500, true},
		{"gasté 50mil en mercado", 50000, true},
		{"50 mil pesos", 50000, true},
		{"pagué 50000", 50000, true},
		{"pagué 123456 ayer", 123456, true},
		{"tres cafés", 0, false},
		{"almuerzo 50", 0, false}, // bare short digit run is ambiguous
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := p.ExtractAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDetectCategory(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	tests := []struct {
		input string
		want  constants.Category
	}{
		{"almuerzo con el equipo", constants.Food},
		{"uber al aeropuerto", constants.Transport},
		{"pago de netflix", constants.Services},
		{"cine con amigos", constants.Entertainment},
		{"farmacia cruz verde", constants.Health},
		{"zapatos nuevos", constants.Clothing},
		{"matricula del semestre", constants.Education},
		{"arriendo del mes", constants.Housing},
		{"algo sin pista", constants.OtherCategory},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DetectCategory(tt.input))
		})
	}
}

func TestDetectCategoryFirstMatchWins(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})
	// Both food and transport keywords present; enumeration order decides.
	assert.Equal(t, constants.Food, p.DetectCategory("almuerzo y uber"))
}

func TestDetectPaymentMethod(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	tests := []struct {
		input string
		want  constants.PaymentMethod
	}{
		{"pagué con tarjeta", constants.Card},
		{"en efectivo", constants.Cash},
		{"por transferencia", constants.Transfer},
		{"con debito", constants.Debit},
		{"sin pista", constants.Card}, // default
		// Precedence: card beats cash when both appear.
		{"tarjeta o efectivo", constants.Card},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DetectPaymentMethod(tt.input))
		})
	}
}

func TestDetectDateOffset(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	tests := []struct {
		input string
		want  int
	}{
		{"almuerzo ayer", -1},
		{"cena anteayer", -2},
		{"pago mañana", 1},
		{"mercado hoy", 0},
		{"sin fecha", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, p.DetectDateOffset(tt.input))
		})
	}
}

func TestPatternExtract(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	rec := p.Extract("Almuerzo 50k tarjeta ayer")
	require.NotNil(t, rec.Amount)
	assert.Equal(t, 50000.0, *rec.Amount)
	assert.Equal(t, constants.Food, rec.Category)
	assert.Equal(t, constants.Card, rec.PaymentMethod)
	assert.Equal(t, -1, rec.DateOffset)
	assert.Equal(t, 0.6, rec.Confidence)
	assert.True(t, rec.Successful())
	assert.Equal(t, "Almuerzo 50k tarjeta ayer", rec.Description)
}

func TestPatternExtractNoAmount(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{})

	rec := p.Extract("almuerzo delicioso")
	assert.Nil(t, rec.Amount)
	assert.Equal(t, 0.2, rec.Confidence)
	assert.False(t, rec.Successful())
}

func TestPatternConfigOverrides(t *testing.T) {
	p := NewPatternExtractor(PatternConfig{FoundConfidence: 0.8, MissConfidence: 0.3})

	assert.Equal(t, 0.8, p.Extract("50k almuerzo").Confidence)
	assert.Equal(t, 0.3, p.Extract("almuerzo").Confidence)
}
