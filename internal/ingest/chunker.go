package ingest

import "strings"

// Chunking defaults. Sizes are in runes so multi-byte scripts chunk
// the same as ASCII.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 100
)

// SplitText splits text into chunks of at most size runes, with each
// chunk after the first starting overlap runes before the end of the
// previous one. Leading and trailing whitespace is trimmed from each
// chunk; empty chunks are dropped.
//
// size must be positive and overlap must lie in [0, size); callers
// validate configuration, so out-of-range values fall back to the
// defaults.
func SplitText(text string, size, overlap int) []string {
	if size < 1 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
