package retrieval

// Chunk is a single retrievable unit of an ingested document, as
// returned by Search. Chunks are ordered by descending similarity; Rank
// is stable across repeated queries against an unchanged index (ties
// broken by chunk ID) so prompts built from them are deterministic.
type Chunk struct {
	ID         string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	File       string  `json:"file"`
	Text       string  `json:"text"`
	Similarity float32 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// StoredChunk is a chunk as written by ingestion, before any query
// ranking applies.
type StoredChunk struct {
	ID         string
	DocumentID string
	File       string
	Ordinal    int // position of the chunk within its document
	Text       string
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK       int
	documentID string
}

// WithTopK sets the maximum number of chunks to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithDocument restricts search to chunks of a single document.
func WithDocument(documentID string) SearchOption {
	return func(c *searchConfig) {
		c.documentID = documentID
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
