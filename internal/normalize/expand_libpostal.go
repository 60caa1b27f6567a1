//go:build libpostal

package normalize

import (
	"strings"

	postal "github.com/openvenues/gopostal/parser"
)

// ExpandStreet parses the street with libpostal and keeps the road and house
// number components. Addresses libpostal cannot split fall back to the rules.
func ExpandStreet(street string) string {
	expanded := defaultRules.Expand(street)

	var road, number []string
	for _, c := range postal.ParseAddress(expanded) {
		switch c.Label {
		case "road":
			road = append(road, c.Value)
		case "house_number", "unit":
			number = append(number, c.Value)
		}
	}
	if len(road) == 0 {
		return expanded
	}

	return strings.Join(append(road, number...), " ")
}
