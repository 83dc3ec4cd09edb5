package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omnidoc/omnidoc/internal/confidence"
	"github.com/omnidoc/omnidoc/internal/generation"
	"github.com/omnidoc/omnidoc/internal/learned"
	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// Retriever finds the chunks most similar to a question. Satisfied by
// *retrieval.Store.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...retrieval.SearchOption) ([]retrieval.Chunk, error)
}

// Generator produces answer text. Satisfied by *generation.Generator.
type Generator interface {
	Grounded(ctx context.Context, question string, chunks []retrieval.Chunk) (generation.Output, error)
	Ungrounded(ctx context.Context, question string) (generation.Output, error)
}

// LearnedStore is the learned-answer cache. Satisfied by
// *learned.Store. Lookup returns (nil, nil) on a miss.
type LearnedStore interface {
	Lookup(ctx context.Context, question string) (*learned.Entry, error)
	Upsert(ctx context.Context, question, answer string, conf int, source string) (*learned.Entry, error)
}

// ScoreFunc maps an answer and its evidence to a confidence score in
// [0, 100]. It must be pure and deterministic.
type ScoreFunc func(confidence.Input) int

// Config carries the decision thresholds and retrieval depth. All
// thresholds are integer percentages.
type Config struct {
	// OfferThreshold: local answers scoring below it set OfferFallback.
	OfferThreshold int

	// ReturnThreshold: the advisory floor below which callers may
	// choose not to display a local answer. Must not be below
	// OfferThreshold.
	ReturnThreshold int

	// LearnThreshold: fallback answers scoring at or above it are
	// saved to the learned store.
	LearnThreshold int

	// TopK is the number of chunks retrieved per question.
	TopK int
}

// Validate checks the threshold ordering invariant. The engine
// revalidates at construction so a miswired caller fails fast rather
// than silently learning garbage.
func (c Config) Validate() error {
	if c.OfferThreshold < 0 || c.LearnThreshold > 100 {
		return fmt.Errorf("%w: thresholds must lie in [0, 100]", ErrInvalidConfig)
	}
	if c.OfferThreshold > c.LearnThreshold {
		return fmt.Errorf("%w: offer threshold %d exceeds learn threshold %d",
			ErrInvalidConfig, c.OfferThreshold, c.LearnThreshold)
	}
	if c.ReturnThreshold < c.OfferThreshold || c.ReturnThreshold > 100 {
		return fmt.Errorf("%w: return threshold %d must lie in [%d, 100]",
			ErrInvalidConfig, c.ReturnThreshold, c.OfferThreshold)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top-K must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	}
	return nil
}

// Engine orchestrates the answer pipeline. Safe for concurrent use.
type Engine struct {
	retriever Retriever
	generator Generator
	store     LearnedStore
	cfg       Config
	score     ScoreFunc
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithScoreFunc replaces the default confidence scorer.
func WithScoreFunc(fn ScoreFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.score = fn
		}
	}
}

// New creates an Engine. All collaborators are required; cfg must
// satisfy the threshold ordering invariant.
func New(retriever Retriever, generator Generator, store LearnedStore, cfg Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("learned store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		retriever: retriever,
		generator: generator,
		store:     store,
		cfg:       cfg,
		score:     confidence.Score,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AnswerLocally answers a question from the learned cache or the
// ingested documents. It never touches general knowledge and never
// writes to the learned store; a low score only sets OfferFallback so
// the caller can decide whether to escalate.
func (e *Engine) AnswerLocally(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	if entry := e.lookupLearned(ctx, question); entry != nil {
		e.logger.Info("answered from learned cache",
			slog.String("question_key", entry.Key),
			slog.Int("confidence", entry.Confidence))
		return &Result{
			Answer:     entry.Answer,
			Confidence: entry.Confidence,
			Source:     SourceLearned,
			Sources:    []retrieval.Chunk{},
		}, nil
	}

	chunks, err := e.retriever.Search(ctx, question, retrieval.WithTopK(e.cfg.TopK))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	out, err := e.generator.Grounded(ctx, question, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: model returned empty answer", ErrGeneration)
	}

	score := e.score(confidence.Input{
		Answer:    out.Text,
		Chunks:    chunks,
		Grounded:  true,
		Certainty: out.Certainty,
	})

	if chunks == nil {
		chunks = []retrieval.Chunk{}
	}
	res := &Result{
		Answer:        out.Text,
		Confidence:    score,
		Source:        SourceLocalDB,
		Sources:       chunks,
		OfferFallback: score < e.cfg.OfferThreshold,
	}
	e.logger.Info("answered from local documents",
		slog.Int("confidence", score),
		slog.Int("chunks", len(chunks)),
		slog.Bool("offer_fallback", res.OfferFallback))
	return res, nil
}

// AnswerWithFallback answers a question from the model's general
// knowledge. It is only ever invoked by an explicit caller decision.
// When saveIfConfident is true and the score reaches the learn
// threshold, the answer is committed to the learned store; a failed
// commit is reported through SavedToStore, not as an error.
func (e *Engine) AnswerWithFallback(ctx context.Context, question string, saveIfConfident bool) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	out, err := e.generator.Ungrounded(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, fmt.Errorf("%w: model returned empty answer", ErrGeneration)
	}

	score := e.score(confidence.Input{
		Answer:    out.Text,
		Grounded:  false,
		Certainty: out.Certainty,
	})

	res := &Result{
		Answer:     out.Text,
		Confidence: score,
		Source:     SourceInternet,
		Sources:    []retrieval.Chunk{},
	}

	if saveIfConfident && score >= e.cfg.LearnThreshold {
		if _, err := e.store.Upsert(ctx, question, out.Text, score, learned.SourceInternet); err != nil {
			e.logger.Warn("saving fallback answer failed",
				slog.Int("confidence", score),
				slog.String("error", err.Error()))
		} else {
			res.SavedToStore = true
		}
	}

	e.logger.Info("answered from general knowledge",
		slog.Int("confidence", score),
		slog.Bool("saved", res.SavedToStore))
	return res, nil
}

// lookupLearned consults the cache, degrading any failure to a miss so
// a broken cache cannot take the whole pipeline down.
func (e *Engine) lookupLearned(ctx context.Context, question string) *learned.Entry {
	entry, err := e.store.Lookup(ctx, question)
	if err != nil {
		e.logger.Warn("learned lookup failed, treating as miss",
			slog.String("error", err.Error()))
		return nil
	}
	return entry
}
