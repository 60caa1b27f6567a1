package match

import (
	"time"

	"github.com/shl-matching/internal/metrics"
)

// Classify buckets a combined score. The score is truncated toward zero and the
// conditions are checked in order; the exact values 100 and -1 come first
// because they sit outside the ranges used by the other tiers.
func Classify(score float64) Tier {
	v := int(score)
	switch {
	case v == 100:
		return TierPerfect
	case v == -1:
		return TierNoMatch
	case v < 100 && v >= 90:
		return TierSimilar
	case v < 90 && v >= 80:
		return TierLikely
	case v < 80 && v >= 70:
		return TierUnlikely
	default:
		return TierRest
	}
}

// NewQualityReport counts results per tier and the results cut off by a
// deadline. Percentages are fractions of the total and are all zero when
// there are no results.
func NewQualityReport(results []MatchResult, elapsed time.Duration) QualityReport {
	counts := make(map[Tier]int, len(Tiers))
	truncated := 0
	for _, r := range results {
		tier := Classify(r.Score)
		counts[tier]++
		metrics.ResultsByTier.WithLabelValues(string(tier)).Inc()
		if r.Truncated {
			truncated++
		}
	}

	report := QualityReport{
		Total:     len(results),
		Truncated: truncated,
		Elapsed:   elapsed,
		Tiers:     make([]TierStat, 0, len(Tiers)),
	}
	for _, tier := range Tiers {
		stat := TierStat{Tier: tier, Count: counts[tier]}
		if report.Total > 0 {
			stat.Percent = float64(stat.Count) / float64(report.Total)
		}
		report.Tiers = append(report.Tiers, stat)
	}

	return report
}

// Stat returns the statistics for one tier
func (q QualityReport) Stat(tier Tier) TierStat {
	for _, s := range q.Tiers {
		if s.Tier == tier {
			return s
		}
	}
	return TierStat{Tier: tier}
}
