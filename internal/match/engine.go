package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shl-matching/internal/debug"
	"github.com/shl-matching/internal/metrics"
)

// Engine runs the complete resolution pass: candidate dedupe, blocking,
// best-candidate selection and quality classification
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// Outcome holds everything a matching pass produced
type Outcome struct {
	Primary    []Record       // primary records in input order
	Candidates []Record       // deduplicated candidate catalog
	Index      *BlockingIndex // candidates restricted to primary postal codes
	Results    []MatchResult  // one per primary record, in primary order
	Report     QualityReport
}

// NewEngine creates a new matching engine
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger}
}

// Run resolves primary records against the candidate catalog
func (e *Engine) Run(ctx context.Context, primary, candidates []Record) (*Outcome, error) {
	defer debug.DebugTiming(e.opts.Debug, "matching engine run")()

	deduped := Dedupe(candidates)
	e.logger.Info("Deduplicated candidates",
		zap.Int("before", len(candidates)),
		zap.Int("after", len(deduped)))

	index := NewBlockingIndex(deduped, BlockKeys(primary))
	e.logger.Info("Built blocking index",
		zap.Int("candidates", index.Len()),
		zap.Int("blocks", index.Buckets()))

	scorer := NewScorer()
	if e.opts.Debug {
		scorer = NewDebugScorer()
	}
	matcher := NewMatcher(index, scorer, e.opts, e.logger)

	start := time.Now()
	results, err := matcher.Match(ctx, primary)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}
	metrics.RunDuration.Observe(elapsed.Seconds())

	report := NewQualityReport(results, elapsed)
	e.logger.Info("Matching pass complete",
		zap.Int("total", report.Total),
		zap.Int("perfect", report.Stat(TierPerfect).Count),
		zap.Int("no_match", report.Stat(TierNoMatch).Count),
		zap.Int("truncated", report.Truncated),
		zap.Duration("elapsed", elapsed))

	return &Outcome{
		Primary:    primary,
		Candidates: deduped,
		Index:      index,
		Results:    results,
		Report:     report,
	}, nil
}
