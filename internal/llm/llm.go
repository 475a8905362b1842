package llm

import (
	"context"
	"errors"

	"ai-nutritionist/internal/shared"
)

// ErrUnavailable is returned when no generative backend is configured or the
// backend could not produce a usable answer. Callers fall back to their
// deterministic path.
var ErrUnavailable = errors.New("generative service unavailable")

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// JSONRequest asks a model for a single JSON object conforming to Schema.
type JSONRequest struct {
	System string
	Prompt string
	Schema *Schema
}

// StructuredGenerator produces schema-conformant JSON.
type StructuredGenerator interface {
	GenerateJSON(ctx context.Context, req JSONRequest) (ContentResponse, error)
}

// EmbeddingGenerator is an interface for generating vector embeddings from text.
type EmbeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ModelNamer is implemented by embedders whose vectors are only comparable
// with vectors from the same model.
type ModelNamer interface {
	ModelName() string
}

// ModelNameOf returns the embedder's model name, or "unknown".
func ModelNameOf(gen EmbeddingGenerator) string {
	if n, ok := gen.(ModelNamer); ok {
		return n.ModelName()
	}
	return "unknown"
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
