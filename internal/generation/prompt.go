package generation

import (
	"fmt"
	"strings"

	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// questionKind classifies a question to pick answer-shape guidance for
// the prompt. Classification is keyword-based and intentionally cheap —
// it only nudges answer formatting, never routing.
type questionKind string

const (
	kindDefinition  questionKind = "definition"
	kindHowTo       questionKind = "how_to"
	kindComparison  questionKind = "comparison"
	kindExample     questionKind = "example"
	kindList        questionKind = "list"
	kindExplanation questionKind = "explanation"
	kindOther       questionKind = "other"
)

var kindMarkers = []struct {
	kind    questionKind
	phrases []string
}{
	{kindDefinition, []string{"what is", "what are", "define", "meaning of", "definition of"}},
	{kindHowTo, []string{"how to", "how do", "how does", "how can", "steps to", "process of", "way to"}},
	{kindComparison, []string{"difference between", "compare", " vs ", "versus", "differ from", "contrast"}},
	{kindExample, []string{"example", "give me", "show me", "demonstrate", "instance of"}},
	{kindList, []string{"list", "types of", "kinds of", "categories", "what are the"}},
	{kindExplanation, []string{"explain", "why", "describe", "tell me about", "elaborate"}},
}

// classifyQuestion returns the question kind for guidance selection.
// Earlier marker groups win; a definition phrasing beats a list phrasing.
func classifyQuestion(question string) questionKind {
	lower := strings.ToLower(strings.TrimSpace(question))
	for _, m := range kindMarkers {
		for _, p := range m.phrases {
			if strings.Contains(lower, p) {
				return m.kind
			}
		}
	}
	return kindOther
}

var kindGuidance = map[questionKind]string{
	kindDefinition:  "Provide a clear, concise definition followed by an explanation. Use simple language and examples from the context if available.",
	kindHowTo:       "Provide step-by-step instructions or explain the process clearly. Break down complex procedures into numbered steps.",
	kindComparison:  "Highlight key similarities and differences in a structured way. Be specific and reference the context.",
	kindExample:     "Provide concrete, specific examples from the context. Explain why the example demonstrates the concept.",
	kindList:        "Provide a clear, organized list with brief explanations for each item if helpful.",
	kindExplanation: "Explain the concept thoroughly with reasoning, breaking complex ideas into digestible parts.",
	kindOther:       "Answer the question comprehensively based on the context. Be clear and helpful.",
}

// groundedSystem constrains the model to the supplied corpus context.
const groundedSystem = `You are a document Q&A assistant answering from a user's personal corpus.

RULES:
1. ONLY answer based on the context provided in the user's message.
2. Do NOT use your general knowledge or training data.
3. If the context does not contain the answer, say "Based on the provided documents, I don't have enough information to answer this question."
4. Reference the source material when answering.`

// ungroundedSystem allows general knowledge; the orchestration layer
// invokes this only as an explicit fallback.
const ungroundedSystem = `You are a knowledgeable assistant answering from general knowledge. No documents are provided. Answer accurately and directly; if you are uncertain, say so explicitly rather than guessing.`

// buildGroundedPrompt assembles the user prompt for grounded
// generation. Chunks arrive pre-ranked, so the prompt text is
// deterministic for a fixed retrieval result.
func buildGroundedPrompt(question string, chunks []retrieval.Chunk) string {
	var context strings.Builder
	for i, c := range chunks {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(c.Text)
	}

	guidance := kindGuidance[classifyQuestion(question)]

	return fmt.Sprintf(`Answer the question based ONLY on the provided context.

%s

CONTEXT FROM UPLOADED DOCUMENTS:
---
%s
---

USER QUESTION: %s

DETAILED ANSWER:`, guidance, context.String(), question)
}

// buildUngroundedPrompt assembles the user prompt for the
// general-knowledge fallback.
func buildUngroundedPrompt(question string) string {
	guidance := kindGuidance[classifyQuestion(question)]
	return fmt.Sprintf(`%s

QUESTION: %s

ANSWER:`, guidance, question)
}
