package match

import (
	"github.com/shl-matching/internal/debug"
	"github.com/shl-matching/internal/metrics"
)

// Field weights of the combined score. Postal code is enforced by blocking and
// city is carried but not scored.
const (
	NameWeight    = 0.5
	AddressWeight = 0.5
)

// PairScore holds the scores of one primary/candidate comparison
type PairScore struct {
	Name     float64 `json:"name"`
	Address  float64 `json:"address"`
	Combined float64 `json:"combined"`
}

// PairScorer compares a primary record with one candidate
type PairScorer interface {
	Score(primary, candidate Record) PairScore
}

// Scorer computes combined record similarity from name and street address
type Scorer struct {
	localDebug bool
}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// NewDebugScorer creates a scorer that logs every comparison at debug level
func NewDebugScorer() *Scorer {
	return &Scorer{localDebug: true}
}

// Score compares two records. It is a pure function of the two records.
func (s *Scorer) Score(primary, candidate Record) PairScore {
	metrics.PairsCompared.Inc()

	name := TokenSetRatio(primary.Name, candidate.Name)
	address := TokenSetRatio(primary.StreetAddress, candidate.StreetAddress)
	combined := NameWeight*name + AddressWeight*address

	debug.DebugOutput(s.localDebug, "Scored %s vs %s: name=%.0f address=%.0f combined=%.1f",
		primary.ID, candidate.ID, name, address, combined)

	return PairScore{Name: name, Address: address, Combined: combined}
}
