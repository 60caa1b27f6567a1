package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/shl-matching/internal/debug"
	"github.com/shl-matching/internal/match"
)

// Empty is the sentinel written for fields that are missing in the source data
const Empty = match.Missing

// PostalCodeWidth is the fixed width of a normalized postal code
const PostalCodeWidth = 5

// separators are replaced by spaces so that field values never break delimited output
var separators = strings.NewReplacer(",", " ", ";", " ", "\t", " ", "\n", " ", "\r", " ")

// AbbrevRules handles street abbreviation expansion. Rules are applied in order.
type AbbrevRules struct {
	rules [][2]string
}

// NewAbbrevRules creates the default German street abbreviation rules
func NewAbbrevRules() *AbbrevRules {
	return &AbbrevRules{
		rules: [][2]string{
			{"str. ", "straße "},
			{"STR. ", "STRAße "},
			{"Str. ", "straße "},
			{"-straße ", "-Straße "},
			{`"`, ""},
		},
	}
}

// Expand applies abbreviation rules to text
func (ar *AbbrevRules) Expand(text string) string {
	result := text
	for _, rule := range ar.rules {
		result = strings.ReplaceAll(result, rule[0], rule[1])
	}
	return result
}

var defaultRules = NewAbbrevRules()

// CleanField replaces separator and control characters with spaces and trims the result
func CleanField(raw string) string {
	return strings.TrimSpace(separators.Replace(norm.NFC.String(raw)))
}

// Text normalizes a required text field; blank values become Empty
func Text(raw string) string {
	cleaned := CleanField(raw)
	if cleaned == "" {
		return Empty
	}
	return cleaned
}

// Optional normalizes a carried-through attribute. A nil value is absent in the source.
func Optional(raw *string) match.Optional {
	if raw == nil {
		return match.Optional{Value: Empty}
	}
	cleaned := CleanField(*raw)
	if cleaned == "" {
		return match.Optional{Value: Empty}
	}
	return match.Optional{Value: cleaned, Valid: true}
}

// PostalCode left-pads a postal code with zeros to five characters.
// Longer values are left as they are; blank values become Empty.
func PostalCode(raw string) string {
	code := strings.TrimSpace(raw)
	if code == "" {
		return Empty
	}
	if n := len([]rune(code)); n < PostalCodeWidth {
		code = strings.Repeat("0", PostalCodeWidth-n) + code
	}
	return code
}

// Street normalizes a street address and expands street abbreviations
func Street(raw string) string {
	return StreetDebug(false, raw)
}

// StreetDebug normalizes a street address with optional debug output
func StreetDebug(localDebug bool, raw string) string {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	cleaned := CleanField(raw)
	if cleaned == "" {
		return Empty
	}
	debug.DebugOutput(localDebug, "Input: %s", cleaned)

	// rules only match "str. " followed by a space, so a trailing "str." is kept
	expanded := strings.TrimSpace(ExpandStreet(cleaned))
	debug.DebugOutput(localDebug, "After abbreviation expansion: %s", expanded)

	if expanded == "" {
		return Empty
	}
	return expanded
}
