package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_Short(t *testing.T) {
	chunks := SplitText("hello world", 400, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, SplitText("", 400, 100))
	assert.Empty(t, SplitText("   \n\t  ", 400, 100))
}

func TestSplitText_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("a", 150) + strings.Repeat("b", 150) + strings.Repeat("c", 150)
	chunks := SplitText(text, 200, 50)

	require.GreaterOrEqual(t, len(chunks), 3)
	// Each chunk after the first starts 50 runes before the previous
	// one ended, so adjacent chunks share a 50-rune window.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-50:])
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d should start with the previous chunk's tail", i)
	}
}

func TestSplitText_ChunkSizeIsRunes(t *testing.T) {
	// 600 CJK characters are 1800 bytes; rune-based splitting must
	// still produce chunks of at most 400 characters.
	text := strings.Repeat("文", 600)
	chunks := SplitText(text, 400, 100)

	require.Len(t, chunks, 2)
	assert.Len(t, []rune(chunks[0]), 400)
	assert.LessOrEqual(t, len([]rune(chunks[1])), 400)
}

func TestSplitText_CoversAllContent(t *testing.T) {
	text := strings.Repeat("x", 950)
	chunks := SplitText(text, 400, 100)

	var covered int
	for i, c := range chunks {
		if i == 0 {
			covered += len([]rune(c))
		} else {
			covered += len([]rune(c)) - 100
		}
	}
	assert.Equal(t, 950, covered)
}

func TestSplitText_InvalidParamsFallBack(t *testing.T) {
	text := strings.Repeat("y", 500)

	assert.NotEmpty(t, SplitText(text, 0, 0))
	assert.NotEmpty(t, SplitText(text, 100, 100)) // overlap == size
	assert.NotEmpty(t, SplitText(text, 100, -5))
}

func TestSplitText_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox ", 60)
	first := SplitText(text, 400, 100)
	second := SplitText(text, 400, 100)
	assert.Equal(t, first, second)
}
