package match

import (
	"encoding/json"
	"time"
)

const (
	// NoMatchID is the candidate id reported when a primary record has no candidate in its block
	NoMatchID = "-1"

	// NoMatchScore is the score reported alongside NoMatchID
	NoMatchScore = -1.0

	// PerfectScore is the combined score that ends a bucket scan early
	PerfectScore = 100.0

	// Missing is the value normalization writes for fields absent from the source data
	Missing = "leer"
)

// Optional is a carried-through attribute that may be absent in the source data.
// Loaders always populate Value; when the source had nothing, Value holds the
// normalization sentinel and Valid is false.
type Optional struct {
	Value string
	Valid bool
}

// String returns the value (or sentinel) for output
func (o Optional) String() string {
	return o.Value
}

// MarshalJSON writes the value (or sentinel) as a plain string
func (o Optional) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// UnmarshalJSON reads a plain string; null and the Missing sentinel are not valid
func (o *Optional) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || *s == Missing {
		*o = Optional{Value: Missing}
		return nil
	}
	*o = Optional{Value: *s, Valid: true}
	return nil
}

// Attributes are the record fields that do not participate in matching
type Attributes struct {
	Address2    Optional `json:"address2"`
	Website     Optional `json:"website"`
	Email       Optional `json:"email"`
	SchoolType  Optional `json:"school_type"`
	LegalStatus Optional `json:"legal_status"`
	Provider    Optional `json:"provider"`
	Fax         Optional `json:"fax"`
	Phone       Optional `json:"phone"`
	Director    Optional `json:"director"`
}

// Record is one institution from either catalog, already normalized
type Record struct {
	ID            string     `json:"id" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	StreetAddress string     `json:"street_address" validate:"required"`
	PostalCode    string     `json:"postal_code" validate:"required,len=5|eq=leer"`
	City          string     `json:"city" validate:"required"`
	Attributes    Attributes `json:"attributes"`
}

// MatchResult is the best candidate found for one primary record
type MatchResult struct {
	PrimaryID    string  `json:"id"`
	CandidateID  string  `json:"id_scraped"`
	Score        float64 `json:"score"`
	NameScore    float64 `json:"score_name"`
	AddressScore float64 `json:"score_anschrift"`

	// Truncated is set when a deadline stopped the bucket scan before it finished
	Truncated bool `json:"truncated,omitempty"`
}

// NoMatch returns the sentinel result for a primary record without candidates
func NoMatch(primaryID string) MatchResult {
	return MatchResult{
		PrimaryID:    primaryID,
		CandidateID:  NoMatchID,
		Score:        NoMatchScore,
		NameScore:    NoMatchScore,
		AddressScore: NoMatchScore,
	}
}

// Matched reports whether a candidate was selected
func (r MatchResult) Matched() bool {
	return r.CandidateID != NoMatchID
}

// Tier is a named bucket of match quality
type Tier string

const (
	TierPerfect  Tier = "perfect"
	TierSimilar  Tier = "similar"
	TierLikely   Tier = "likely"
	TierUnlikely Tier = "unlikely"
	TierNoMatch  Tier = "no-match"
	TierRest     Tier = "rest"
)

// Tiers lists every tier in report order
var Tiers = []Tier{TierPerfect, TierSimilar, TierLikely, TierUnlikely, TierNoMatch, TierRest}

// TierStat is the count and share of results in one tier
type TierStat struct {
	Tier    Tier    `json:"tier" yaml:"tier"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"` // fraction of total in [0,1]
}

// QualityReport summarizes a matching pass.
// Truncated results are also counted in the tier of the score they reached,
// so a record cut off before its first comparison counts as no-match.
type QualityReport struct {
	Total     int           `json:"total" yaml:"total"`
	Truncated int           `json:"truncated" yaml:"truncated"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
	Tiers     []TierStat    `json:"tiers" yaml:"tiers"`
}
