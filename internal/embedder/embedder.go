// Package embedder exposes the abstract Embedder capability (§4.2, §6):
// embed_text(text) -> vector of fixed dimension D. The embedder is a
// stateless pure function from the caller's point of view; a transient
// failure is retried by the caller (the Embedding Index, §4.2).
package embedder

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
)

// Embedder is the capability consumed by the Embedding Index (C2).
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Finder resolves a named Embedder, mirroring the teacher's
// genai/embedder.Finder dependency-injection pattern.
type Finder interface {
	Find(ctx context.Context, id string) (Embedder, error)
}

// LangchainAdapter adapts any github.com/tmc/langchaingo/embeddings.Embedder
// (the real upstream interface the teacher's genai/embedder package wires
// its providers to) to the single-text Embedder capability this module
// consumes.
type LangchainAdapter struct {
	Inner embeddings.Embedder
}

// EmbedText embeds a single piece of text and returns its vector.
func (a LangchainAdapter) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return a.Inner.EmbedQuery(ctx, text)
}
