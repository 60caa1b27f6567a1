//go:build !libpostal

package normalize

// ExpandStreet expands street abbreviations with the built-in rules.
// Build with -tags libpostal to use libpostal instead.
func ExpandStreet(street string) string {
	return defaultRules.Expand(street)
}
