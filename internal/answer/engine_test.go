package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omnidoc/omnidoc/internal/confidence"
	"github.com/omnidoc/omnidoc/internal/log"
	"github.com/omnidoc/omnidoc/internal/retrieval"
	"github.com/omnidoc/omnidoc/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func defaultConfig() Config {
	return Config{
		OfferThreshold:  60,
		ReturnThreshold: 60,
		LearnThreshold:  90,
		TopK:            5,
	}
}

func fixedScore(n int) ScoreFunc {
	return func(confidence.Input) int { return n }
}

func sampleChunks() []retrieval.Chunk {
	return []retrieval.Chunk{
		{ID: "c1", DocumentID: "d1", File: "notes.txt", Text: "Photosynthesis converts light energy into chemical energy.", Similarity: 0.91, Rank: 0},
		{ID: "c2", DocumentID: "d1", File: "notes.txt", Text: "Chlorophyll absorbs light in the red and blue bands.", Similarity: 0.84, Rank: 1},
	}
}

type fixture struct {
	retriever *testutil.MockRetriever
	generator *testutil.MockGenerator
	store     *testutil.MemoryLearnedStore
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fixture) {
	t.Helper()
	f := &fixture{
		retriever: testutil.NewMockRetriever(sampleChunks()),
		generator: testutil.NewMockGenerator("Photosynthesis converts light energy into chemical energy stored in glucose."),
		store:     testutil.NewMemoryLearnedStore(),
	}
	eng, err := New(f.retriever, f.generator, f.store, defaultConfig(), log.NewNop(), opts...)
	require.NoError(t, err)
	return eng, f
}

func TestNew_Validation(t *testing.T) {
	retriever := testutil.NewMockRetriever(nil)
	generator := testutil.NewMockGenerator("ok")
	store := testutil.NewMemoryLearnedStore()
	logger := log.NewNop()

	t.Run("nil retriever", func(t *testing.T) {
		_, err := New(nil, generator, store, defaultConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("nil generator", func(t *testing.T) {
		_, err := New(retriever, nil, store, defaultConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := New(retriever, generator, nil, defaultConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := New(retriever, generator, store, defaultConfig(), nil)
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "offer above learn", mutate: func(c *Config) { c.OfferThreshold = 95 }, wantErr: true},
		{name: "negative offer", mutate: func(c *Config) { c.OfferThreshold = -1 }, wantErr: true},
		{name: "learn above 100", mutate: func(c *Config) { c.LearnThreshold = 101 }, wantErr: true},
		{name: "return below offer", mutate: func(c *Config) { c.ReturnThreshold = 50 }, wantErr: true},
		{name: "return above 100", mutate: func(c *Config) { c.ReturnThreshold = 101 }, wantErr: true},
		{name: "zero top-K", mutate: func(c *Config) { c.TopK = 0 }, wantErr: true},
		{name: "boundary offer equals learn", mutate: func(c *Config) {
			c.OfferThreshold = 90
			c.ReturnThreshold = 90
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnswerLocally_EmptyQuestion(t *testing.T) {
	eng, _ := newTestEngine(t)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := eng.AnswerLocally(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuestion)
	}
}

func TestAnswerLocally_LearnedHit(t *testing.T) {
	eng, f := newTestEngine(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "What is photosynthesis?", "Cached answer.", 92, "internet")
	require.NoError(t, err)

	// Normalization-equivalent phrasing must hit the same entry.
	res, err := eng.AnswerLocally(ctx, "what is PHOTOSYNTHESIS")
	require.NoError(t, err)

	assert.Equal(t, "Cached answer.", res.Answer)
	assert.Equal(t, 92, res.Confidence)
	assert.Equal(t, SourceLearned, res.Source)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.False(t, res.OfferFallback)
	assert.False(t, res.SavedToStore)

	// A cache hit must cost zero retrieval or generation calls.
	assert.Empty(t, f.retriever.Calls())
	assert.Empty(t, f.generator.GroundedCalls())
}

func TestAnswerLocally_CacheMiss(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(85)))

	res, err := eng.AnswerLocally(context.Background(), "What is photosynthesis?")
	require.NoError(t, err)

	assert.Equal(t, SourceLocalDB, res.Source)
	assert.Equal(t, 85, res.Confidence)
	assert.Len(t, res.Sources, 2)
	assert.Equal(t, "c1", res.Sources[0].ID)
	assert.False(t, res.OfferFallback)

	require.Len(t, f.generator.GroundedCalls(), 1)
	assert.Len(t, f.generator.GroundedCalls()[0].Chunks, 2)
}

func TestAnswerLocally_OfferThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		wantOffer bool
	}{
		{name: "one below offers fallback", score: 59, wantOffer: true},
		{name: "exactly at does not", score: 60, wantOffer: false},
		{name: "well above does not", score: 95, wantOffer: false},
		{name: "zero offers fallback", score: 0, wantOffer: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, _ := newTestEngine(t, WithScoreFunc(fixedScore(tt.score)))
			res, err := eng.AnswerLocally(context.Background(), "boundary question")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOffer, res.OfferFallback)
			assert.Equal(t, tt.score, res.Confidence)
		})
	}
}

func TestAnswerLocally_LowScoreOnlyOffers(t *testing.T) {
	// A low score must not trigger fallback generation or learning on
	// its own; it only sets the flag.
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(20)))

	res, err := eng.AnswerLocally(context.Background(), "obscure question")
	require.NoError(t, err)

	assert.True(t, res.OfferFallback)
	assert.Equal(t, SourceLocalDB, res.Source)
	assert.NotEmpty(t, res.Answer)
	assert.Empty(t, f.generator.UngroundedCalls())
	assert.Zero(t, f.store.Upserts())
}

func TestAnswerLocally_NeverWritesStore(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(100)))

	_, err := eng.AnswerLocally(context.Background(), "confident local question")
	require.NoError(t, err)

	assert.Zero(t, f.store.Upserts())
	assert.Zero(t, f.store.Len())
}

func TestAnswerLocally_RetrievalFailureAborts(t *testing.T) {
	eng, f := newTestEngine(t)
	f.retriever.FailWith(errors.New("connection refused"))

	res, err := eng.AnswerLocally(context.Background(), "any question")
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.Nil(t, res)
	assert.Empty(t, f.generator.GroundedCalls())
}

func TestAnswerLocally_GenerationFailureAborts(t *testing.T) {
	eng, f := newTestEngine(t)
	f.generator.FailGrounded(errors.New("model unavailable"))

	res, err := eng.AnswerLocally(context.Background(), "any question")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Nil(t, res)
}

func TestAnswerLocally_EmptyGenerationAborts(t *testing.T) {
	eng, f := newTestEngine(t)
	f.generator.AddResponse("blank", "   ")

	res, err := eng.AnswerLocally(context.Background(), "blank output question")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Nil(t, res)
}

func TestAnswerLocally_LookupFailureDegradesToMiss(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(80)))
	f.store.FailLookup(errors.New("store unavailable"))

	res, err := eng.AnswerLocally(context.Background(), "degraded question")
	require.NoError(t, err)

	assert.Equal(t, SourceLocalDB, res.Source)
	assert.Equal(t, 80, res.Confidence)
	require.Len(t, f.retriever.Calls(), 1)
}

func TestAnswerWithFallback_EmptyQuestion(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.AnswerWithFallback(context.Background(), "  ", true)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswerWithFallback_LearnThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		save     bool
		wantSave bool
	}{
		{name: "one below learn is not saved", score: 89, save: true, wantSave: false},
		{name: "exactly at learn is saved", score: 90, save: true, wantSave: true},
		{name: "above learn is saved", score: 97, save: true, wantSave: true},
		{name: "save disabled skips learning", score: 97, save: false, wantSave: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, f := newTestEngine(t, WithScoreFunc(fixedScore(tt.score)))
			res, err := eng.AnswerWithFallback(context.Background(), "What is quantum entanglement?", tt.save)
			require.NoError(t, err)

			assert.Equal(t, SourceInternet, res.Source)
			assert.Equal(t, tt.score, res.Confidence)
			assert.False(t, res.OfferFallback)
			assert.Equal(t, tt.wantSave, res.SavedToStore)

			if tt.wantSave {
				entry := f.store.Get("What is quantum entanglement?")
				require.NotNil(t, entry)
				assert.Equal(t, res.Answer, entry.Answer)
				assert.Equal(t, tt.score, entry.Confidence)
				assert.Equal(t, "internet", entry.Source)
			} else {
				assert.Zero(t, f.store.Len())
			}
		})
	}
}

func TestAnswerWithFallback_NeverReadsCache(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(50)))
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "cached question", "Cached answer.", 95, "internet")
	require.NoError(t, err)

	res, err := eng.AnswerWithFallback(ctx, "cached question", true)
	require.NoError(t, err)

	// The fallback path generates fresh output even when a learned
	// entry exists; reading happens only in AnswerLocally.
	assert.Zero(t, f.store.Lookups())
	assert.Equal(t, SourceInternet, res.Source)
	require.Len(t, f.generator.UngroundedCalls(), 1)
}

func TestAnswerWithFallback_NeverTouchesRetrieval(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(70)))

	res, err := eng.AnswerWithFallback(context.Background(), "general question", true)
	require.NoError(t, err)

	assert.Empty(t, f.retriever.Calls())
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
}

func TestAnswerWithFallback_GenerationFailureAborts(t *testing.T) {
	eng, f := newTestEngine(t)
	f.generator.FailUngrounded(errors.New("model unavailable"))

	res, err := eng.AnswerWithFallback(context.Background(), "any question", true)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Nil(t, res)
	assert.Zero(t, f.store.Upserts())
}

func TestAnswerWithFallback_UpsertFailureIsNotFatal(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(95)))
	f.store.FailUpsert(errors.New("disk full"))

	res, err := eng.AnswerWithFallback(context.Background(), "save me", true)
	require.NoError(t, err)

	// The answer survives; only the saved flag reports the failure.
	assert.NotEmpty(t, res.Answer)
	assert.Equal(t, 95, res.Confidence)
	assert.False(t, res.SavedToStore)
	assert.Equal(t, 1, f.store.Upserts())
}

func TestAnswerWithFallback_SavedAnswerServesNextLookup(t *testing.T) {
	eng, f := newTestEngine(t, WithScoreFunc(fixedScore(93)))
	ctx := context.Background()

	first, err := eng.AnswerWithFallback(ctx, "What is dark matter?", true)
	require.NoError(t, err)
	require.True(t, first.SavedToStore)

	// The same question now short-circuits to the cache.
	second, err := eng.AnswerLocally(ctx, "what is dark matter")
	require.NoError(t, err)
	assert.Equal(t, SourceLearned, second.Source)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 93, second.Confidence)
	assert.Empty(t, f.retriever.Calls())
}

func TestEngine_DefaultScorerEndToEnd(t *testing.T) {
	// Without an injected scorer the real confidence scorer runs: a
	// grounded answer restating high-similarity chunks clears the
	// offer threshold.
	f := &fixture{
		retriever: testutil.NewMockRetriever(sampleChunks()),
		generator: testutil.NewMockGenerator("Photosynthesis converts light energy into chemical energy that the plant stores as glucose."),
		store:     testutil.NewMemoryLearnedStore(),
	}
	eng, err := New(f.retriever, f.generator, f.store, defaultConfig(), log.NewNop())
	require.NoError(t, err)

	res, err := eng.AnswerLocally(context.Background(), "What is photosynthesis?")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Confidence, 60)
	assert.False(t, res.OfferFallback)
}

func TestEngine_DefaultScorerEmptyIndexOffersFallback(t *testing.T) {
	// No documents ingested: retrieval support is zero, so even a
	// direct grounded answer scores low and the fallback is offered.
	f := &fixture{
		retriever: testutil.NewMockRetriever(nil),
		generator: testutil.NewMockGenerator("Quantum computing uses qubits that exploit superposition to evaluate many states at once."),
		store:     testutil.NewMemoryLearnedStore(),
	}
	eng, err := New(f.retriever, f.generator, f.store, defaultConfig(), log.NewNop())
	require.NoError(t, err)

	res, err := eng.AnswerLocally(context.Background(), "What is quantum computing?")
	require.NoError(t, err)

	assert.Equal(t, SourceLocalDB, res.Source)
	assert.Empty(t, res.Sources)
	assert.NotNil(t, res.Sources)
	assert.Less(t, res.Confidence, 60)
	assert.True(t, res.OfferFallback)
}

func TestEngine_DefaultScorerStrongEvidenceSuppressesOffer(t *testing.T) {
	// Three high-similarity chunks from one document plus an answer
	// restating their vocabulary clear the high-confidence band.
	chunks := []retrieval.Chunk{
		{ID: "l1", DocumentID: "doc-lec", File: "lecture.pdf", Text: "Gradient descent updates the network weights to minimize the training loss.", Similarity: 0.93, Rank: 0},
		{ID: "l2", DocumentID: "doc-lec", File: "lecture.pdf", Text: "The learning rate controls the size of each gradient descent step.", Similarity: 0.90, Rank: 1},
		{ID: "l3", DocumentID: "doc-lec", File: "lecture.pdf", Text: "Backpropagation computes the gradients of the loss for every network layer.", Similarity: 0.88, Rank: 2},
	}
	f := &fixture{
		retriever: testutil.NewMockRetriever(chunks),
		generator: testutil.NewMockGenerator("Gradient descent trains the network by adjusting weights step by step to minimize the training loss."),
		store:     testutil.NewMemoryLearnedStore(),
	}
	eng, err := New(f.retriever, f.generator, f.store, defaultConfig(), log.NewNop())
	require.NoError(t, err)

	res, err := eng.AnswerLocally(context.Background(), "How does gradient descent work?")
	require.NoError(t, err)

	assert.Equal(t, SourceLocalDB, res.Source)
	assert.GreaterOrEqual(t, res.Confidence, 80)
	assert.False(t, res.OfferFallback)
	require.Len(t, res.Sources, 3)
	for _, c := range res.Sources {
		assert.Equal(t, "lecture.pdf", c.File)
	}
}

func TestEngine_DefaultScorerFallbackLearnsAndServes(t *testing.T) {
	// The full escalation path with the real scorer: a question with no
	// local evidence is offered the fallback, the thorough fallback
	// answer clears the learn threshold and is saved, and the next ask
	// is served from the cache with zero external calls.
	const thorough = "Dark matter is a form of matter that does not emit or absorb light yet exerts gravitational pull on visible structures. " +
		"Observations of galaxy rotation curves suggest it makes up roughly 27 percent of the universe, far outweighing ordinary matter."

	f := &fixture{
		retriever: testutil.NewMockRetriever(nil),
		generator: testutil.NewMockGenerator(thorough),
		store:     testutil.NewMemoryLearnedStore(),
	}
	eng, err := New(f.retriever, f.generator, f.store, defaultConfig(), log.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	local, err := eng.AnswerLocally(ctx, "What is dark matter?")
	require.NoError(t, err)
	assert.True(t, local.OfferFallback)

	fb, err := eng.AnswerWithFallback(ctx, "What is dark matter?", true)
	require.NoError(t, err)
	assert.Equal(t, SourceInternet, fb.Source)
	assert.GreaterOrEqual(t, fb.Confidence, 90)
	assert.True(t, fb.SavedToStore)

	again, err := eng.AnswerLocally(ctx, "what is dark matter")
	require.NoError(t, err)
	assert.Equal(t, SourceLearned, again.Source)
	assert.Equal(t, fb.Answer, again.Answer)
	assert.Equal(t, fb.Confidence, again.Confidence)
	assert.Len(t, f.retriever.Calls(), 1)
	assert.Len(t, f.generator.GroundedCalls(), 1)
}
