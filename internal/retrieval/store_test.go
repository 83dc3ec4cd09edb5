package retrieval

import (
	"testing"
)

func TestNewStore_NilPool(t *testing.T) {
	_, err := NewStore(nil, nil, nil)
	if err == nil {
		t.Fatal("NewStore(nil, nil, nil) expected error, got nil")
	}
}

func TestRankChunks_OrderAndTies(t *testing.T) {
	chunks := []Chunk{
		{ID: "c", Similarity: 0.70},
		{ID: "b", Similarity: 0.90},
		{ID: "a", Similarity: 0.70},
		{ID: "d", Similarity: 0.95},
	}

	ranked := rankChunks(chunks)

	wantOrder := []string{"d", "b", "a", "c"} // ties at 0.70 break by ID
	for i, want := range wantOrder {
		if ranked[i].ID != want {
			t.Errorf("ranked[%d].ID = %q, want %q", i, ranked[i].ID, want)
		}
		if ranked[i].Rank != i {
			t.Errorf("ranked[%d].Rank = %d, want %d", i, ranked[i].Rank, i)
		}
	}
}

func TestRankChunks_Deterministic(t *testing.T) {
	base := []Chunk{
		{ID: "x1", Similarity: 0.5},
		{ID: "x2", Similarity: 0.5},
		{ID: "x3", Similarity: 0.5},
	}

	first := rankChunks(append([]Chunk(nil), base...))
	// Same chunks in a different arrival order must produce the same ranking.
	shuffled := []Chunk{base[2], base[0], base[1]}
	second := rankChunks(shuffled)

	for i := range first {
		if first[i].ID != second[i].ID || first[i].Rank != second[i].Rank {
			t.Errorf("ranking not deterministic at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestRankChunks_Empty(t *testing.T) {
	if got := rankChunks(nil); len(got) != 0 {
		t.Errorf("rankChunks(nil) = %v, want empty", got)
	}
}

func TestBuildSearchConfig(t *testing.T) {
	cfg := buildSearchConfig(nil)
	if cfg.topK != 5 {
		t.Errorf("default topK = %d, want 5", cfg.topK)
	}

	cfg = buildSearchConfig([]SearchOption{WithTopK(10), WithDocument("doc-1")})
	if cfg.topK != 10 || cfg.documentID != "doc-1" {
		t.Errorf("buildSearchConfig = %+v, want topK=10 documentID=doc-1", cfg)
	}

	// Non-positive K keeps the default.
	cfg = buildSearchConfig([]SearchOption{WithTopK(0)})
	if cfg.topK != 5 {
		t.Errorf("WithTopK(0) topK = %d, want 5", cfg.topK)
	}
}
