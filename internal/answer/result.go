package answer

import "github.com/omnidoc/omnidoc/internal/retrieval"

// Source identifies which stage of the pipeline produced an answer.
type Source string

const (
	// SourceLearned means the answer came from the learned-answer
	// cache with no retrieval or generation.
	SourceLearned Source = "learned"

	// SourceLocalDB means the answer was generated from retrieved
	// document chunks.
	SourceLocalDB Source = "local_db"

	// SourceInternet means the answer was generated from the model's
	// general knowledge via the explicit fallback path.
	SourceInternet Source = "internet"
)

// Result is the complete outcome of one orchestration call. Every
// field is populated on success; a Result is never returned alongside
// a non-nil error.
type Result struct {
	// Answer is the final answer text.
	Answer string `json:"answer"`

	// Confidence is the integer confidence score in [0, 100].
	Confidence int `json:"confidence_score"`

	// Source records which pipeline stage produced the answer.
	Source Source `json:"source"`

	// Sources lists the chunks the answer was grounded on, in rank
	// order. Empty (never absent) for learned and internet answers.
	Sources []retrieval.Chunk `json:"sources"`

	// OfferFallback is true when the local answer scored below the
	// offer threshold and the caller should surface the internet
	// fallback option. Always false on the fallback path itself.
	OfferFallback bool `json:"offer_internet"`

	// SavedToStore is true only when a fallback answer was actually
	// committed to the learned store in this call.
	SavedToStore bool `json:"saved_to_store"`
}
