// Package answer implements the query orchestration engine: the
// decision pipeline that answers a question against the ingested
// corpus, escalating to general-knowledge generation on request and
// remembering high-confidence escalations.
//
// # Pipeline
//
// AnswerLocally runs the local path:
//
//	learned-cache lookup ──hit──> return (zero external calls)
//	     │ miss
//	     v
//	vector retrieval (top-K)
//	     │
//	     v
//	grounded generation + confidence scoring
//	     │
//	     v
//	Result{OfferFallback: score < offer threshold}
//
// AnswerWithFallback is a second, explicit call — never chained
// automatically — that generates from general knowledge, scores the
// result with no evidence, and promotes it into the learned store when
// the caller allows it and the score clears the learn threshold.
//
// A single orchestration call never both reads and writes the learned
// store: reading happens only at the start of AnswerLocally, writing
// only at the end of AnswerWithFallback.
//
// # Failure semantics
//
// Retrieval and generation faults abort the call with ErrRetrieval or
// ErrGeneration; no partial Result is produced. A learned-store lookup
// failure degrades to a cache miss (logged, not surfaced) to preserve
// availability. A learned-store upsert failure does not invalidate the
// already-computed answer: the Result is returned with
// SavedToStore=false, because failing to cache must never be conflated
// with failing to answer.
//
// # Concurrency
//
// The engine is stateless between calls except through the learned
// store; calls for different questions run concurrently with no shared
// mutable state, and concurrent upserts for the same normalized
// question resolve by the store's last-committed-wins contract.
package answer
