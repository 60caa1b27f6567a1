package match

import (
	"github.com/shl-matching/internal/metrics"
)

// BlockingIndex partitions candidate records by postal code.
// Buckets keep the candidates' input order, which decides ties in the Matcher.
type BlockingIndex struct {
	candidates []Record
	buckets    map[string][]Record
}

// blockable reports whether a postal code can serve as a block key.
// Two records that both lack a postal code share nothing.
func blockable(postalCode string) bool {
	return postalCode != "" && postalCode != Missing
}

// BlockKeys returns the distinct postal codes of the primary records in first-seen order.
// Missing postal codes are left out.
func BlockKeys(primary []Record) []string {
	seen := make(map[string]struct{}, len(primary))
	keys := make([]string, 0, len(primary))
	for _, rec := range primary {
		if !blockable(rec.PostalCode) {
			continue
		}
		if _, ok := seen[rec.PostalCode]; ok {
			continue
		}
		seen[rec.PostalCode] = struct{}{}
		keys = append(keys, rec.PostalCode)
	}
	return keys
}

// NewBlockingIndex keeps the candidates whose postal code is one of keys and
// buckets them by postal code. A nil keys slice keeps every candidate.
// Candidates without a postal code are never indexed.
func NewBlockingIndex(candidates []Record, keys []string) *BlockingIndex {
	var allowed map[string]struct{}
	if keys != nil {
		allowed = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			allowed[k] = struct{}{}
		}
	}

	idx := &BlockingIndex{
		candidates: make([]Record, 0, len(candidates)),
		buckets:    make(map[string][]Record),
	}
	for _, rec := range candidates {
		if !blockable(rec.PostalCode) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[rec.PostalCode]; !ok {
				continue
			}
		}
		idx.candidates = append(idx.candidates, rec)
		idx.buckets[rec.PostalCode] = append(idx.buckets[rec.PostalCode], rec)
	}

	for _, bucket := range idx.buckets {
		metrics.BlockSize.Observe(float64(len(bucket)))
	}

	return idx
}

// Lookup returns the candidates sharing postalCode, in input order.
// The returned slice must not be modified.
func (b *BlockingIndex) Lookup(postalCode string) []Record {
	if !blockable(postalCode) {
		return nil
	}
	return b.buckets[postalCode]
}

// Candidates returns the reduced candidate set in input order
func (b *BlockingIndex) Candidates() []Record {
	return b.candidates
}

// Len returns the number of candidates kept by the index
func (b *BlockingIndex) Len() int {
	return len(b.candidates)
}

// Buckets returns the number of distinct postal codes in the index
func (b *BlockingIndex) Buckets() int {
	return len(b.buckets)
}
