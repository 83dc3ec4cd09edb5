package generation

import (
	"strings"
	"testing"

	"github.com/omnidoc/omnidoc/internal/retrieval"
)

func TestClassifyQuestion(t *testing.T) {
	tests := []struct {
		question string
		want     questionKind
	}{
		{"What is machine learning?", kindDefinition},
		{"Define entropy", kindDefinition},
		{"How to configure pgvector?", kindHowTo},
		{"How does backpropagation work?", kindHowTo},
		{"Difference between TCP and UDP", kindComparison},
		{"Redis versus Memcached", kindComparison},
		{"Give me an example of recursion", kindExample},
		{"Types of neural networks", kindList},
		{"Why does the sky appear blue?", kindExplanation},
		{"Tell me about the Roman Empire", kindExplanation},
		{"pgvector index tuning", kindOther},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := classifyQuestion(tt.question); got != tt.want {
				t.Errorf("classifyQuestion(%q) = %q, want %q", tt.question, got, tt.want)
			}
		})
	}
}

func TestBuildGroundedPrompt(t *testing.T) {
	chunks := []retrieval.Chunk{
		{ID: "c1", File: "lecture.pdf", Text: "Qubits exploit superposition.", Similarity: 0.9, Rank: 0},
		{ID: "c2", File: "lecture.pdf", Text: "Entanglement links qubit states.", Similarity: 0.8, Rank: 1},
	}

	prompt := buildGroundedPrompt("What is a qubit?", chunks)

	if !strings.Contains(prompt, "Qubits exploit superposition.") {
		t.Error("prompt missing first chunk text")
	}
	if !strings.Contains(prompt, "Entanglement links qubit states.") {
		t.Error("prompt missing second chunk text")
	}
	if !strings.Contains(prompt, "USER QUESTION: What is a qubit?") {
		t.Error("prompt missing user question")
	}
	// Definition guidance is selected for "what is" questions.
	if !strings.Contains(prompt, "concise definition") {
		t.Error("prompt missing definition guidance")
	}
}

func TestBuildGroundedPrompt_Deterministic(t *testing.T) {
	chunks := []retrieval.Chunk{
		{ID: "a", Text: "alpha", Rank: 0},
		{ID: "b", Text: "beta", Rank: 1},
	}
	first := buildGroundedPrompt("what is alpha?", chunks)
	second := buildGroundedPrompt("what is alpha?", chunks)
	if first != second {
		t.Error("grounded prompt not deterministic for identical input")
	}
}

func TestBuildGroundedPrompt_EmptyContext(t *testing.T) {
	prompt := buildGroundedPrompt("What is quantum computing?", nil)
	if !strings.Contains(prompt, "USER QUESTION: What is quantum computing?") {
		t.Error("prompt missing question with empty context")
	}
	// Context block present but empty; the system prompt forces the
	// model to admit missing information.
	if !strings.Contains(prompt, "---\n\n---") {
		t.Errorf("empty context block malformed:\n%s", prompt)
	}
}

func TestBuildUngroundedPrompt(t *testing.T) {
	prompt := buildUngroundedPrompt("How does photosynthesis work?")
	if !strings.Contains(prompt, "QUESTION: How does photosynthesis work?") {
		t.Error("prompt missing question")
	}
	if strings.Contains(prompt, "CONTEXT FROM UPLOADED DOCUMENTS") {
		t.Error("ungrounded prompt must not carry a context block")
	}
	if !strings.Contains(prompt, "step-by-step") {
		t.Error("how-to guidance missing")
	}
}
