package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shl-matching/internal/match"
)

func TestCleanField(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Grundschule Nord", "Grundschule Nord"},
		{"separators", "Schule;Nord,Kiel", "Schule Nord Kiel"},
		{"control characters", "\tSchule\r\nNord\n", "Schule  Nord"},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanField(tt.input))
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Gymnasium Kiel", Text(" Gymnasium Kiel "))
	assert.Equal(t, Empty, Text(""))
	assert.Equal(t, Empty, Text(" ; "))
}

func TestOptional(t *testing.T) {
	site := " www.schule-nord.de "
	blank := ""

	assert.Equal(t, match.Optional{Value: "www.schule-nord.de", Valid: true}, Optional(&site))
	assert.Equal(t, match.Optional{Value: Empty}, Optional(&blank))
	assert.Equal(t, match.Optional{Value: Empty}, Optional(nil))
}

func TestPostalCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"24103", "24103"},
		{"1067", "01067"},
		{"99", "00099"},
		{" 4109 ", "04109"},
		{"", Empty},
		{"123456", "123456"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, PostalCode(tt.input))
		})
	}
}

func TestAbbrevRules(t *testing.T) {
	rules := NewAbbrevRules()

	tests := []struct {
		input string
		want  string
	}{
		{"Hauptstr. 5", "Hauptstraße 5"},
		{"Hauptstr.", "Hauptstr."},
		{"Schul Str. 1", "Schul straße 1"},
		{"KIRCHSTR. 3", "KIRCHSTRAße 3"},
		{"Am Markt 2", "Am Markt 2"},
		{`"Alte Schule" 4`, "Alte Schule 4"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Expand(tt.input))
		})
	}
}
