package answer

import "errors"

// Sentinel errors for the orchestration pipeline. Callers branch with
// errors.Is; the wrapped cause carries the backend detail.
var (
	// ErrEmptyQuestion is returned when the question is empty or
	// whitespace-only after trimming.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrRetrieval indicates the vector search against the chunk store
	// failed. The call aborts; no answer is produced.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the language model call failed or
	// returned empty output. The call aborts; no answer is produced.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidConfig indicates the engine configuration violates the
	// threshold ordering or top-K constraints.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)
