package llm

import "context"

// Model is the abstract Language Model capability (§6). Implementations may
// call out to any provider. Callers in this module make a single Generate
// call and do not retry it: on error each call site degrades to a fallback
// value instead of propagating the error.
type Model interface {
	// Generate completes prompt_parts (Messages) and returns the response.
	// When opts.ResponseFormat is ResponseFormatJSON the caller expects the
	// returned text to parse as JSON; a reasoning error (unparseable JSON)
	// is handled by the caller, not by Model itself.
	Generate(ctx context.Context, request *GenerateRequest) (*GenerateResponse, error)
}

// Finder resolves a model by id, following the teacher's dependency-injection
// pattern (genai/llm/finder.go) so production wiring and deterministic test
// fakes share one interface.
type Finder interface {
	Find(ctx context.Context, id string) (Model, error)
}

// Complete is a convenience wrapper matching the §6 capability signature
// literally: complete(prompt_parts, max_tokens?, response_format) -> string.
func Complete(ctx context.Context, model Model, promptParts []Message, maxTokens int, format ResponseFormat) (string, error) {
	opts := &Options{MaxTokens: maxTokens, ResponseFormat: format}
	resp, err := model.Generate(ctx, &GenerateRequest{Messages: promptParts, Options: opts})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
