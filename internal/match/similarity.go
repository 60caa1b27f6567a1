package match

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// indel counts insertions and deletions only; a substitution costs one of each.
var indel = func() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.CaseSensitive = true
	m.InsertCost = 1
	m.DeleteCost = 1
	m.ReplaceCost = 2
	return m
}()

// TokenSetRatio returns a case-insensitive similarity in [0, 100] between two
// strings compared as sets of words. Word order, repeated words and one string
// containing the other all score high: "City Elementary School" and
// "Elementary School City" score 100.
func TokenSetRatio(a, b string) float64 {
	pa, pb := process(a), process(b)
	if pa == "" || pb == "" {
		return 0
	}

	tokensA, tokensB := tokenSet(pa), tokenSet(pb)

	var sect, onlyA, onlyB []string
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			sect = append(sect, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tokensB {
		if _, ok := tokensA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sorted := strings.Join(sect, " ")
	combinedA := strings.TrimSpace(sorted + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sorted + " " + strings.Join(onlyB, " "))

	return math.Max(
		ratio(sorted, combinedA),
		math.Max(ratio(sorted, combinedB), ratio(combinedA, combinedB)),
	)
}

// ratio is the InDel similarity of two strings scaled to [0, 100] and rounded half to even
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	total := la + lb
	dist := indel.Distance(a, b)
	return math.RoundToEven(100 * float64(total-dist) / float64(total))
}

// process case-folds s and turns every rune that is not a letter, digit or
// underscore into a space
func process(s string) string {
	folded := cases.Fold().String(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
