// Package langchain adapts a github.com/tmc/langchaingo/llms.Model to this
// module's llm.Model capability (§6), the same adapter shape
// embedder.LangchainAdapter uses on the embedding side.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/reactquery/agent/internal/llm"
)

// Adapter wraps any langchaingo chat model.
type Adapter struct {
	Inner llms.Model
}

// Generate implements llm.Model.
func (a Adapter) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(roleOf(m.Role), m.Content))
	}

	var opts []llms.CallOption
	if req.Options != nil && req.Options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Options.MaxTokens))
	}

	resp, err := a.Inner.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("langchain: empty response")
	}
	return &llm.GenerateResponse{
		Choices: []llm.Choice{{Message: llm.NewAssistantMessage(resp.Choices[0].Content)}},
	}, nil
}

func roleOf(r llm.MessageRole) llms.ChatMessageType {
	switch r {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	case llm.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}
