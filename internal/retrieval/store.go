// Package retrieval provides vector similarity search over ingested
// document chunks, backed by PostgreSQL + pgvector.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding dimension for the chunks table.
// Must match the vector(N) column in db/migrations.
const VectorDimension int32 = 768

// SearchTimeout bounds a single embedding + vector search round trip.
const SearchTimeout = 10 * time.Second

// Store manages document chunks with vector search, backed by
// PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a chunk Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add writes a chunk and its embedding. Re-adding a chunk with the same
// ID replaces its content and embedding.
func (s *Store) Add(ctx context.Context, chunk StoredChunk) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if chunk.Text == "" {
		return fmt.Errorf("chunk text is required")
	}

	vec, err := s.embed(ctx, chunk.Text)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO chunks (id, document_id, file, ordinal, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
		chunk.ID, chunk.DocumentID, chunk.File, chunk.Ordinal, chunk.Text, vec,
	)
	if err != nil {
		return fmt.Errorf("inserting chunk %q: %w", chunk.ID, err)
	}

	s.logger.Debug("added chunk", "id", chunk.ID, "file", chunk.File, "bytes", len(chunk.Text))
	return nil
}

// Search embeds the question and returns the top-K most similar chunks,
// ordered by descending cosine similarity with ties broken by chunk ID.
// Zero results is not an error.
func (s *Store) Search(ctx context.Context, question string, opts ...SearchOption) ([]Chunk, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, SearchTimeout)
	defer cancel()

	vec, err := s.embed(queryCtx, question)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timeout: %w", err)
		}
		return nil, err
	}

	query := `SELECT id, document_id, file, content, 1 - (embedding <=> $1) AS similarity
		 FROM chunks`
	args := []any{vec}
	if cfg.documentID != "" {
		query += ` WHERE document_id = $2`
		args = append(args, cfg.documentID)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1, id LIMIT %d`, cfg.topK)

	rows, err := s.pool.Query(queryCtx, query, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if scanErr := rows.Scan(&c.ID, &c.DocumentID, &c.File, &c.Text, &c.Similarity); scanErr != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", scanErr)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return rankChunks(chunks), nil
}

// rankChunks sorts by descending similarity with chunk ID as the tie
// breaker, then assigns stable 0-based ranks. The database already
// orders by distance; re-sorting here pins down tie ordering, which
// PostgreSQL does not guarantee for equal distances.
func rankChunks(chunks []Chunk) []Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Similarity != chunks[j].Similarity {
			return chunks[i].Similarity > chunks[j].Similarity
		}
		return chunks[i].ID < chunks[j].ID
	})
	for i := range chunks {
		chunks[i].Rank = i
	}
	return chunks
}

// DeleteDocument removes all chunks belonging to a document. Returns
// the number of chunks removed.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for document %q: %w", documentID, err)
	}
	s.logger.Debug("deleted document chunks", "document_id", documentID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
