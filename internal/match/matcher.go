package match

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shl-matching/internal/metrics"
)

// Options controls how a matching pass is executed
type Options struct {
	Workers       int           // <= 1 runs the pass sequentially
	RecordTimeout time.Duration // deadline for scanning one block, 0 disables it
	ProgressEvery int           // log progress every N records, 0 disables it
	Debug         bool          // log every pair comparison
}

// DefaultOptions returns sequential matching with progress logged every 10 records
func DefaultOptions() Options {
	return Options{
		Workers:       1,
		ProgressEvery: 10,
	}
}

// Matcher selects the best candidate in the blocking index for each primary record
type Matcher struct {
	index  *BlockingIndex
	scorer PairScorer
	opts   Options
	logger *zap.Logger
}

// NewMatcher creates a matcher over a blocking index
func NewMatcher(index *BlockingIndex, scorer PairScorer, opts Options, logger *zap.Logger) *Matcher {
	if scorer == nil {
		scorer = NewScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		index:  index,
		scorer: scorer,
		opts:   opts,
		logger: logger,
	}
}

// bestSoFar is the accumulator of the best-candidate reduction over one block
type bestSoFar struct {
	result MatchResult
	done   bool
}

// step folds one scored candidate into the accumulator. Only a strictly greater
// score replaces the current best, so the first of equal candidates wins.
// A perfect score ends the reduction.
func (b bestSoFar) step(candidate Record, score PairScore) bestSoFar {
	if score.Combined > b.result.Score {
		b.result.CandidateID = candidate.ID
		b.result.Score = score.Combined
		b.result.NameScore = score.Name
		b.result.AddressScore = score.Address
	}
	if score.Combined == PerfectScore {
		b.done = true
	}
	return b
}

// BestMatch scans the block of the primary record's postal code and returns the
// first candidate with the maximal combined score. A record whose block is empty
// yields the NoMatch sentinel. If ctx ends mid-scan, the best result so far is
// returned with Truncated set.
func (m *Matcher) BestMatch(ctx context.Context, primary Record) MatchResult {
	acc := bestSoFar{result: NoMatch(primary.ID)}

	for _, candidate := range m.index.Lookup(primary.PostalCode) {
		if ctx.Err() != nil {
			acc.result.Truncated = true
			break
		}
		acc = acc.step(candidate, m.scorer.Score(primary, candidate))
		if acc.done {
			break
		}
	}

	return acc.result
}

// Match produces one result per primary record, in primary order.
// Records are independent, so with Workers > 1 they are spread over a worker
// pool and written back by position. Match fails only when ctx is cancelled.
func (m *Matcher) Match(ctx context.Context, primary []Record) ([]MatchResult, error) {
	results := make([]MatchResult, len(primary))
	if len(primary) == 0 {
		return results, nil
	}

	m.logger.Info("Starting matching pass",
		zap.Int("primary", len(primary)),
		zap.Int("candidates", m.index.Len()),
		zap.Int("blocks", m.index.Buckets()),
		zap.Int("workers", m.workers()))

	var err error
	if m.workers() <= 1 {
		err = m.matchSequential(ctx, primary, results)
	} else {
		err = m.matchParallel(ctx, primary, results)
	}
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (m *Matcher) matchSequential(ctx context.Context, primary []Record, results []MatchResult) error {
	for i, rec := range primary {
		if err := ctx.Err(); err != nil {
			return err
		}
		results[i] = m.evaluate(ctx, rec)
		m.progress(i+1, len(primary))
	}
	return ctx.Err()
}

// job carries one primary record and its position in the output
type job struct {
	pos    int
	record Record
}

func (m *Matcher) matchParallel(ctx context.Context, primary []Record, results []MatchResult) error {
	jobs := make(chan job, m.workers())
	var wg sync.WaitGroup
	var done atomic.Int64

	for w := 0; w < m.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.pos] = m.evaluate(ctx, j.record)
				m.progress(int(done.Add(1)), len(primary))
			}
		}()
	}

feed:
	for i, rec := range primary {
		select {
		case jobs <- job{pos: i, record: rec}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}

// evaluate runs BestMatch under the per-record deadline, if one is configured
func (m *Matcher) evaluate(ctx context.Context, rec Record) MatchResult {
	if m.opts.RecordTimeout <= 0 {
		return m.BestMatch(ctx, rec)
	}

	recordCtx, cancel := context.WithTimeout(ctx, m.opts.RecordTimeout)
	defer cancel()

	result := m.BestMatch(recordCtx, rec)
	if result.Truncated && ctx.Err() == nil {
		metrics.RecordsTruncated.Inc()
		m.logger.Warn("Block scan hit record deadline",
			zap.String("id", rec.ID),
			zap.String("postal_code", rec.PostalCode),
			zap.Int("block_size", len(m.index.Lookup(rec.PostalCode))),
			zap.Duration("timeout", m.opts.RecordTimeout))
	}
	return result
}

func (m *Matcher) progress(done, total int) {
	if m.opts.ProgressEvery > 0 && done%m.opts.ProgressEvery == 0 {
		m.logger.Info("Matching progress", zap.Int("done", done), zap.Int("total", total))
	}
}

func (m *Matcher) workers() int {
	if m.opts.Workers < 1 {
		return 1
	}
	return m.opts.Workers
}
