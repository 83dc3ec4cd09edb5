// Package generation produces natural-language answers via Genkit in
// two modes: grounded (retrieved context supplied, model constrained to
// it) and ungrounded (general knowledge, used only as an explicit
// fallback).
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/omnidoc/omnidoc/internal/retrieval"
)

// Output is a single generation result. Certainty is a model-reported
// signal in [0,1]; nil when the backing model does not expose one (the
// Genkit providers currently do not).
type Output struct {
	Text      string
	Certainty *float64
}

// Generator produces answers through a Genkit-registered model.
//
// Generator is safe for concurrent use; it holds no mutable state.
type Generator struct {
	g         *genkit.Genkit
	modelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	logger    *slog.Logger
}

// New creates a Generator. modelName must be provider-qualified
// (config.FullModelName).
func New(g *genkit.Genkit, modelName string, logger *slog.Logger) (*Generator, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{g: g, modelName: modelName, logger: logger}, nil
}

// Grounded generates an answer constrained to the retrieved chunks.
// An empty chunk list is allowed: the model is still instructed to
// answer only from context, which yields the hedged phrasing the
// confidence scorer expects for unsupported answers.
func (gen *Generator) Grounded(ctx context.Context, question string, chunks []retrieval.Chunk) (Output, error) {
	return gen.generate(ctx, groundedSystem, buildGroundedPrompt(question, chunks), "grounded")
}

// Ungrounded generates an answer from general knowledge only.
func (gen *Generator) Ungrounded(ctx context.Context, question string) (Output, error) {
	return gen.generate(ctx, ungroundedSystem, buildUngroundedPrompt(question), "ungrounded")
}

func (gen *Generator) generate(ctx context.Context, system, prompt, mode string) (Output, error) {
	resp, err := genkit.Generate(ctx, gen.g,
		ai.WithModelName(gen.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return Output{}, fmt.Errorf("generating %s answer: %w", mode, err)
	}

	text := strings.TrimSpace(resp.Text())
	gen.logger.Debug("generated answer", "mode", mode, "model", gen.modelName, "bytes", len(text))

	// Empty text is treated as a generation failure upstream; return it
	// as-is so the engine applies its failure semantics uniformly.
	return Output{Text: text}, nil
}
