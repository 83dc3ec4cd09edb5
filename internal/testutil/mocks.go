package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/omnidoc/omnidoc/internal/generation"
	"github.com/omnidoc/omnidoc/internal/learned"
	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// MockRetriever returns a scripted chunk list or error for every
// search. Thread-safe for concurrent use.
type MockRetriever struct {
	mu     sync.Mutex
	chunks []retrieval.Chunk
	err    error
	calls  []string
}

// NewMockRetriever creates a retriever that returns the given chunks.
func NewMockRetriever(chunks []retrieval.Chunk) *MockRetriever {
	return &MockRetriever{chunks: chunks}
}

// FailWith makes every subsequent search return err.
func (m *MockRetriever) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Search returns the scripted chunks and records the query.
func (m *MockRetriever) Search(_ context.Context, query string, _ ...retrieval.SearchOption) ([]retrieval.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, query)
	if m.err != nil {
		return nil, m.err
	}
	return append([]retrieval.Chunk(nil), m.chunks...), nil
}

// Calls returns a copy of all recorded queries.
func (m *MockRetriever) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockGenerator provides deterministic model output for testing. It
// matches the question against registered patterns (substring,
// case-insensitive, first match wins) and falls back to a default.
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu             sync.Mutex
	rules          []generatorRule
	fallback       string
	groundedErr    error
	ungroundedErr  error
	groundedCalls  []GeneratorCall
	ungroundedCall []string
}

type generatorRule struct {
	pattern  string
	response string
}

// GeneratorCall records one grounded generation request.
type GeneratorCall struct {
	Question string
	Chunks   []retrieval.Chunk
}

// NewMockGenerator creates a generator returning fallback when no
// pattern matches.
func NewMockGenerator(fallback string) *MockGenerator {
	return &MockGenerator{fallback: fallback}
}

// AddResponse registers a pattern-response pair.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, generatorRule{pattern: strings.ToLower(pattern), response: response})
}

// FailGrounded makes Grounded return err.
func (m *MockGenerator) FailGrounded(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groundedErr = err
}

// FailUngrounded makes Ungrounded return err.
func (m *MockGenerator) FailUngrounded(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ungroundedErr = err
}

// Grounded returns the scripted response for the question.
func (m *MockGenerator) Grounded(_ context.Context, question string, chunks []retrieval.Chunk) (generation.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groundedCalls = append(m.groundedCalls, GeneratorCall{
		Question: question,
		Chunks:   append([]retrieval.Chunk(nil), chunks...),
	})
	if m.groundedErr != nil {
		return generation.Output{}, m.groundedErr
	}
	return generation.Output{Text: m.respond(question)}, nil
}

// Ungrounded returns the scripted response for the question.
func (m *MockGenerator) Ungrounded(_ context.Context, question string) (generation.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ungroundedCall = append(m.ungroundedCall, question)
	if m.ungroundedErr != nil {
		return generation.Output{}, m.ungroundedErr
	}
	return generation.Output{Text: m.respond(question)}, nil
}

func (m *MockGenerator) respond(question string) string {
	lower := strings.ToLower(question)
	for _, r := range m.rules {
		if strings.Contains(lower, r.pattern) {
			return r.response
		}
	}
	return m.fallback
}

// GroundedCalls returns a copy of all recorded grounded requests.
func (m *MockGenerator) GroundedCalls() []GeneratorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GeneratorCall(nil), m.groundedCalls...)
}

// UngroundedCalls returns a copy of all recorded ungrounded questions.
func (m *MockGenerator) UngroundedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ungroundedCall...)
}

// MemoryLearnedStore is an in-memory learned-answer cache keyed by the
// same normalization as the real store. Lookup and upsert failures can
// be injected per test. Thread-safe for concurrent use.
type MemoryLearnedStore struct {
	mu        sync.Mutex
	entries   map[string]*learned.Entry
	lookupErr error
	upsertErr error
	lookups   int
	upserts   int
}

// NewMemoryLearnedStore creates an empty in-memory store.
func NewMemoryLearnedStore() *MemoryLearnedStore {
	return &MemoryLearnedStore{entries: make(map[string]*learned.Entry)}
}

// FailLookup makes every subsequent lookup return err.
func (m *MemoryLearnedStore) FailLookup(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupErr = err
}

// FailUpsert makes every subsequent upsert return err.
func (m *MemoryLearnedStore) FailUpsert(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// Lookup returns the entry for the normalized question, or (nil, nil)
// on a miss.
func (m *MemoryLearnedStore) Lookup(_ context.Context, question string) (*learned.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	entry, ok := m.entries[learned.NormalizeQuestion(question)]
	if !ok {
		return nil, nil
	}
	entry.AccessCount++
	entry.LastAccessedAt = time.Now()
	cp := *entry
	return &cp, nil
}

// Upsert stores the entry under the normalized question key,
// overwriting any previous value.
func (m *MemoryLearnedStore) Upsert(_ context.Context, question, answer string, conf int, source string) (*learned.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	key := learned.NormalizeQuestion(question)
	now := time.Now()
	entry, ok := m.entries[key]
	if !ok {
		entry = &learned.Entry{Key: key, CreatedAt: now}
		m.entries[key] = entry
	}
	entry.Question = question
	entry.Answer = answer
	entry.Confidence = conf
	entry.Source = source
	entry.LastAccessedAt = now
	cp := *entry
	return &cp, nil
}

// Len returns the number of stored entries.
func (m *MemoryLearnedStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Lookups returns how many lookups were attempted.
func (m *MemoryLearnedStore) Lookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// Upserts returns how many upserts were attempted.
func (m *MemoryLearnedStore) Upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// Get returns the stored entry for question, or nil.
func (m *MemoryLearnedStore) Get(question string) *learned.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[learned.NormalizeQuestion(question)]
	if !ok {
		return nil
	}
	cp := *entry
	return &cp
}
