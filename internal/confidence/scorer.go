// Package confidence derives a 0-100 confidence score for a generated
// answer from the evidence used to produce it.
//
// Score is a pure function of its input: identical inputs always yield
// identical scores, so threshold behavior is reproducible in tests
// without invoking any external service. The score is a heuristic
// signal, not a correctness proof.
package confidence

import (
	"math"
	"strings"
	"unicode"

	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// Input carries everything the scorer considers.
type Input struct {
	// Answer is the generated answer text. The scorer must not be
	// called with empty text; the orchestration engine treats that as a
	// generation failure before scoring.
	Answer string

	// Chunks is the retrieved evidence the answer was grounded on.
	// Empty for ungrounded generation or an empty index.
	Chunks []retrieval.Chunk

	// Grounded reports whether generation ran with retrieved context.
	Grounded bool

	// Certainty is an optional model-reported certainty in [0,1].
	// Nil when the generation port does not expose one.
	Certainty *float64
}

// Scoring weights. Grounded answers start from a higher baseline than
// ungrounded ones: local evidence is more trustworthy than
// unconstrained generation.
const (
	groundedPrior   = 35
	ungroundedPrior = 30

	similarityWeight = 40 // top chunk similarity contribution
	perChunkBonus    = 3  // per chunk actually used, capped
	maxCountedChunks = 5

	hedgePenalty  = 25
	directBonus   = 10
	overlapBonus  = 10
	minDirectLen  = 40 // runes; shorter answers don't earn the direct bonus
	minOverlapHit = 3  // shared significant words needed for the overlap bonus

	certaintyWeight = 50 // model-reported certainty contribution

	// Ungrounded answers carry no retrieval support, so their
	// confidence must come from the answer text itself. The weights sum
	// high enough that a thorough, hedge-free answer can clear the
	// default learn threshold of 90 on its own.
	knowledgeDirectBonus    = 20
	knowledgeDepthBonus     = 15 // substantive length
	knowledgeDepthLen       = 160
	knowledgeDetailBonus    = 10 // concrete figures
	knowledgeStructureBonus = 10 // more than one full sentence
	knowledgeBreadthBonus   = 10 // varied vocabulary
	minBreadthWords         = 8
)

// hedgePhrases are patterns of low-commitment answers. Matching is
// case-insensitive substring search over the whole answer.
var hedgePhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i don't have information",
	"i don't have enough information",
	"i do not have enough information",
	"i couldn't find",
	"i could not find",
	"cannot answer this question",
	"no information available",
	"based on the provided documents, i don't",
}

// Score computes the confidence score for a generated answer, clamped
// to [0, 100].
//
// Grounded answers combine: source prior + retrieval support
// (monotonic in top similarity and chunk count, zero without chunks) +
// answer-text signals (hedging penalty, directness and
// context-reference rewards). Ungrounded answers combine the lower
// source prior with knowledge signals measuring the answer text alone.
// Optional model-reported certainty adds to either.
func Score(in Input) int {
	score := prior(in.Grounded)
	if in.Grounded {
		score += retrievalSupport(in.Chunks)
		score += textSignals(in.Answer, in.Chunks)
	} else {
		score += knowledgeSignals(in.Answer)
	}

	if in.Certainty != nil {
		c := math.Max(0, math.Min(1, *in.Certainty))
		score += int(math.Round(c * certaintyWeight))
	}

	return clamp(score)
}

func prior(grounded bool) int {
	if grounded {
		return groundedPrior
	}
	return ungroundedPrior
}

// retrievalSupport is monotonic in the top similarity and in the number
// of chunks used, and zero when no chunks exist.
func retrievalSupport(chunks []retrieval.Chunk) int {
	if len(chunks) == 0 {
		return 0
	}

	top := float64(chunks[0].Similarity)
	for _, c := range chunks[1:] {
		if float64(c.Similarity) > top {
			top = float64(c.Similarity)
		}
	}
	top = math.Max(0, math.Min(1, top))

	counted := len(chunks)
	if counted > maxCountedChunks {
		counted = maxCountedChunks
	}

	return int(math.Round(top*similarityWeight)) + counted*perChunkBonus
}

// textSignals rewards direct answers that reference retrieved content
// and penalizes hedging.
func textSignals(answer string, chunks []retrieval.Chunk) int {
	lower := strings.ToLower(answer)

	if hedges(lower) {
		return -hedgePenalty
	}

	signal := 0
	if len([]rune(strings.TrimSpace(answer))) >= minDirectLen {
		signal += directBonus
	}
	if referencesContext(lower, chunks) {
		signal += overlapBonus
	}
	return signal
}

// knowledgeSignals measures the quality of an ungrounded answer from
// its text alone. With no evidence to score against, length,
// structure, concrete figures, and vocabulary breadth stand in for
// retrieval support.
func knowledgeSignals(answer string) int {
	lower := strings.ToLower(answer)
	if hedges(lower) {
		return -hedgePenalty
	}

	trimmed := []rune(strings.TrimSpace(answer))

	signal := 0
	if len(trimmed) >= minDirectLen {
		signal += knowledgeDirectBonus
	}
	if len(trimmed) >= knowledgeDepthLen {
		signal += knowledgeDepthBonus
	}
	if strings.ContainsFunc(answer, unicode.IsDigit) {
		signal += knowledgeDetailBonus
	}
	if sentenceCount(answer) >= 2 {
		signal += knowledgeStructureBonus
	}
	if distinctSignificantWords(lower) >= minBreadthWords {
		signal += knowledgeBreadthBonus
	}
	return signal
}

func hedges(lowerAnswer string) bool {
	for _, phrase := range hedgePhrases {
		if strings.Contains(lowerAnswer, phrase) {
			return true
		}
	}
	return false
}

// sentenceCount counts sentence terminators followed by whitespace or
// the end of the text, so decimal points and abbreviations mid-word do
// not count.
func sentenceCount(text string) int {
	runes := []rune(strings.TrimSpace(text))
	n := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			n++
		}
	}
	return n
}

func distinctSignificantWords(lowerText string) int {
	seen := make(map[string]struct{})
	for _, w := range significantWords(lowerText) {
		seen[w] = struct{}{}
	}
	return len(seen)
}

// referencesContext reports whether the answer shares enough
// significant vocabulary with the retrieved chunks to plausibly be
// derived from them.
func referencesContext(lowerAnswer string, chunks []retrieval.Chunk) bool {
	if len(chunks) == 0 {
		return false
	}

	vocab := make(map[string]struct{})
	for _, c := range chunks {
		for _, w := range significantWords(strings.ToLower(c.Text)) {
			vocab[w] = struct{}{}
		}
	}

	hits := 0
	seen := make(map[string]struct{})
	for _, w := range significantWords(lowerAnswer) {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := vocab[w]; ok {
			hits++
			if hits >= minOverlapHit {
				return true
			}
		}
	}
	return false
}

// significantWords splits text into words of 5+ letters. Short words
// and punctuation carry no grounding signal.
func significantWords(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 5 {
			words = append(words, f)
		}
	}
	return words
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
