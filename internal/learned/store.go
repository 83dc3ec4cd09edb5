// Package learned persists promoted question→answer pairs so that
// repeat questions are answered without re-querying external services.
//
// Entries are keyed by the normalized question text (NormalizeQuestion)
// and looked up by exact key only — no fuzzy or semantic matching.
// That keeps learned-answer recall deterministic and auditable; semantic
// reuse is handled by the local vector path, not this cache.
package learned

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Source values recorded with an entry.
const (
	// SourceInternet marks answers promoted from the general-knowledge
	// fallback path. Currently the only source that learns.
	SourceInternet = "internet"
)

// Entry is a stored learned answer.
// At most one entry exists per normalized question; a later write with
// an equal key replaces the earlier one.
type Entry struct {
	Question       string    `json:"question"`     // original question text as asked
	Key            string    `json:"question_key"` // normalized cache key
	Answer         string    `json:"answer"`
	Confidence     int       `json:"confidence_score"` // score at time of learning
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `json:"access_count"`
}

// Stats summarizes the learned-answer store for the admin surface.
type Stats struct {
	Total         int64   `json:"total"`
	AvgConfidence float64 `json:"avg_confidence"`
}

const entryCols = `question, question_key, answer, confidence, source,
	created_at, last_accessed_at, access_count`

// Store is the PostgreSQL-backed learned answer store.
//
// Store is safe for concurrent use. Concurrent Upserts for the same key
// resolve to exactly one surviving row (last committed write wins);
// losing writers neither corrupt nor duplicate the record — the unique
// key constraint plus ON CONFLICT DO UPDATE guarantee that.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a learned answer Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Lookup returns the entry whose normalized key matches the question
// exactly, or nil when none exists. A hit bumps the entry's access
// bookkeeping best-effort; a bookkeeping failure is logged, never
// surfaced.
func (s *Store) Lookup(ctx context.Context, question string) (*Entry, error) {
	key := NormalizeQuestion(question)
	if key == "" {
		return nil, nil
	}

	var e Entry
	err := s.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM learned_answers WHERE question_key = $1`, key,
	).Scan(&e.Question, &e.Key, &e.Answer, &e.Confidence, &e.Source,
		&e.CreatedAt, &e.LastAccessedAt, &e.AccessCount)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("looking up learned answer: %w", err)
	}

	if _, touchErr := s.pool.Exec(ctx,
		`UPDATE learned_answers
		 SET access_count = access_count + 1, last_accessed_at = now()
		 WHERE question_key = $1`, key,
	); touchErr != nil {
		s.logger.Warn("failed to bump learned answer access", "key", key, "error", touchErr)
	}

	return &e, nil
}

// Upsert writes or replaces the entry for the question's normalized key
// and returns the stored entry. Idempotent: repeated calls with
// identical arguments leave the store in the same observable state
// (access bookkeeping aside).
func (s *Store) Upsert(ctx context.Context, question, answer string, confidence int, source string) (*Entry, error) {
	key := NormalizeQuestion(question)
	if key == "" {
		return nil, fmt.Errorf("question normalizes to empty key")
	}
	if answer == "" {
		return nil, fmt.Errorf("answer is required")
	}
	if confidence < 0 || confidence > 100 {
		return nil, fmt.Errorf("confidence %d out of range [0,100]", confidence)
	}

	var e Entry
	err := s.pool.QueryRow(ctx,
		`INSERT INTO learned_answers
		   (question, question_key, answer, confidence, source, created_at, last_accessed_at, access_count)
		 VALUES ($1, $2, $3, $4, $5, now(), now(), 0)
		 ON CONFLICT (question_key) DO UPDATE
		 SET question = EXCLUDED.question,
		     answer = EXCLUDED.answer,
		     confidence = EXCLUDED.confidence,
		     source = EXCLUDED.source
		 RETURNING `+entryCols,
		question, key, answer, confidence, source,
	).Scan(&e.Question, &e.Key, &e.Answer, &e.Confidence, &e.Source,
		&e.CreatedAt, &e.LastAccessedAt, &e.AccessCount)
	if err != nil {
		return nil, fmt.Errorf("upserting learned answer: %w", err)
	}

	s.logger.Debug("learned answer stored", "key", key, "confidence", confidence, "source", source)
	return &e, nil
}

// Delete removes the entry for the question's normalized key. Returns
// true when an entry was removed.
func (s *Store) Delete(ctx context.Context, question string) (bool, error) {
	key := NormalizeQuestion(question)
	tag, err := s.pool.Exec(ctx, `DELETE FROM learned_answers WHERE question_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("deleting learned answer: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns the most recently learned entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+entryCols+` FROM learned_answers ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing learned answers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Question, &e.Key, &e.Answer, &e.Confidence, &e.Source,
			&e.CreatedAt, &e.LastAccessedAt, &e.AccessCount); err != nil {
			return nil, fmt.Errorf("scanning learned answer: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading learned answers: %w", err)
	}
	return entries, nil
}

// GetStats returns entry count and average confidence.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), coalesce(round(avg(confidence)::numeric, 1), 0) FROM learned_answers`,
	).Scan(&st.Total, &st.AvgConfidence)
	if err != nil {
		return Stats{}, fmt.Errorf("reading learned answer stats: %w", err)
	}
	return st, nil
}
