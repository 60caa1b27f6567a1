package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/match"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("match run not found")

// Schema creates the run history tables
const Schema = `
CREATE TABLE IF NOT EXISTS match_run (
	run_id           UUID PRIMARY KEY,
	run_label        TEXT NOT NULL,
	run_started_at   TIMESTAMPTZ NOT NULL,
	run_completed_at TIMESTAMPTZ NOT NULL,
	elapsed_ms       BIGINT NOT NULL,
	total_processed  INTEGER NOT NULL,
	perfect          INTEGER NOT NULL,
	similar          INTEGER NOT NULL,
	likely           INTEGER NOT NULL,
	unlikely         INTEGER NOT NULL,
	no_match         INTEGER NOT NULL,
	rest             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS match_result (
	run_id          UUID NOT NULL REFERENCES match_run(run_id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	primary_id      TEXT NOT NULL,
	candidate_id    TEXT NOT NULL,
	score           DOUBLE PRECISION NOT NULL,
	score_name      DOUBLE PRECISION NOT NULL,
	score_anschrift DOUBLE PRECISION NOT NULL,
	tier            TEXT NOT NULL,
	truncated       BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (run_id, position)
);
`

// Run represents a matching run record
type Run struct {
	ID          uuid.UUID           `json:"run_id"`
	Label       string              `json:"run_label"`
	StartedAt   time.Time           `json:"run_started_at"`
	CompletedAt time.Time           `json:"run_completed_at"`
	Report      match.QualityReport `json:"report"`
}

// Store persists matching runs and their results
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New creates a new run store
func New(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// EnsureSchema creates the run history tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun writes a run and all of its results in one transaction
func (s *Store) SaveRun(ctx context.Context, label string, startedAt time.Time, outcome *match.Outcome) (*Run, error) {
	run := &Run{
		ID:          uuid.New(),
		Label:       label,
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(outcome.Report.Elapsed),
		Report:      outcome.Report,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	report := outcome.Report
	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_run (
			run_id, run_label, run_started_at, run_completed_at, elapsed_ms, total_processed,
			perfect, similar, likely, unlikely, no_match, rest
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, run.ID, run.Label, run.StartedAt, run.CompletedAt, report.Elapsed.Milliseconds(), report.Total,
		report.Stat(match.TierPerfect).Count, report.Stat(match.TierSimilar).Count,
		report.Stat(match.TierLikely).Count, report.Stat(match.TierUnlikely).Count,
		report.Stat(match.TierNoMatch).Count, report.Stat(match.TierRest).Count)
	if err != nil {
		return nil, fmt.Errorf("failed to create match run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_result (
			run_id, position, primary_id, candidate_id, score, score_name, score_anschrift, tier, truncated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range outcome.Results {
		_, err := stmt.ExecContext(ctx, run.ID, i, r.PrimaryID, r.CandidateID,
			r.Score, r.NameScore, r.AddressScore, string(match.Classify(r.Score)), r.Truncated)
		if err != nil {
			return nil, fmt.Errorf("failed to save result for %s: %w", r.PrimaryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match run: %w", err)
	}

	s.logger.Info("Saved matching run",
		zap.String("run_id", run.ID.String()),
		zap.String("label", label),
		zap.Int("results", len(outcome.Results)))
	return run, nil
}

// GetRun loads a run and rebuilds its quality report
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run := &Run{ID: id}
	var elapsedMS int64
	counts := make([]int, len(match.Tiers))

	err := s.db.QueryRowContext(ctx, `
		SELECT run_label, run_started_at, run_completed_at, elapsed_ms, total_processed,
		       perfect, similar, likely, unlikely, no_match, rest
		FROM match_run
		WHERE run_id = $1
	`, id).Scan(&run.Label, &run.StartedAt, &run.CompletedAt, &elapsedMS, &run.Report.Total,
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load match run: %w", err)
	}

	run.Report.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Report.Tiers = tierStats(counts, run.Report.Total)
	return run, nil
}

// ListResults returns the results of a run in primary order
func (s *Store) ListResults(ctx context.Context, id uuid.UUID) ([]match.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primary_id, candidate_id, score, score_name, score_anschrift, truncated
		FROM match_result
		WHERE run_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []match.MatchResult
	for rows.Next() {
		var r match.MatchResult
		if err := rows.Scan(&r.PrimaryID, &r.CandidateID, &r.Score, &r.NameScore, &r.AddressScore, &r.Truncated); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// tierStats rebuilds tier statistics from counts stored in match.Tiers order
func tierStats(counts []int, total int) []match.TierStat {
	stats := make([]match.TierStat, len(match.Tiers))
	for i, tier := range match.Tiers {
		stats[i] = match.TierStat{Tier: tier, Count: counts[i]}
		if total > 0 {
			stats[i].Percent = float64(counts[i]) / float64(total)
		}
	}
	return stats
}
