package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"The Forest Hiker", "the-forest-hiker"},
		{"  The Sea Explorer  ", "the-sea-explorer"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"The Snow   Adventurer!!", "the-snow-adventurer"},
		{"Crème Brûlée Tour", "creme-brulee-tour"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Straße nach Øresund", "strasse-nach-oresund"},
		{"Tour #5: 3 days", "tour-5-3-days"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}
