package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Pizza 50K Tarjeta", want: "pizza 50k tarjeta"},
		{name: "trims whitespace", input: "  50k almuerzo  ", want: "50k almuerzo"},
		{name: "trims newlines", input: "\n50k almuerzo\t", want: "50k almuerzo"},
		{name: "empty stays empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFingerprint(t *testing.T) {
	_, a := Normalize("Pizza 50K")
	_, b := Normalize("  pizza 50k  ")
	_, c := Normalize("pizza 60k")

	require.NotEmpty(t, a)
	assert.Equal(t, a, b, "inputs differing only in case and padding share a fingerprint")
	assert.NotEqual(t, a, c, "different content yields a different fingerprint")
	assert.Len(t, a, 32, "128-bit hash hex-encoded")
}
