package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/viant/afs"

	"github.com/reactquery/agent/internal/embedder"
	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/llm/langchain"
)

// buildFromEnv loads the YAML config (if any) and constructs the Language
// Model / Embedder capabilities from an OpenAI-compatible backend, following
// the teacher's convention of resolving provider credentials from the
// environment when the config doesn't pin them (genai/llm/provider/openai's
// OPENAI_API_KEY fallback).
func buildFromEnv(ctx context.Context, configPath string) (Config, llm.Model, embedder.Embedder, error) {
	cfg, err := LoadConfig(ctx, afs.New(), configPath)
	if err != nil {
		return Config{}, nil, nil, err
	}

	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return Config{}, nil, nil, fmt.Errorf("reactagent: no OpenAI API key configured (set openai_api_key or OPENAI_API_KEY)")
	}

	chatLLM, err := openai.New(openai.WithToken(apiKey), openai.WithModel(cfg.OpenAIModel))
	if err != nil {
		return Config{}, nil, nil, fmt.Errorf("reactagent: construct OpenAI chat client: %w", err)
	}
	model := langchain.Adapter{Inner: chatLLM}

	embedderImpl, err := embeddings.NewEmbedder(chatLLM)
	if err != nil {
		return Config{}, nil, nil, fmt.Errorf("reactagent: construct OpenAI embedder: %w", err)
	}
	embed := embedder.LangchainAdapter{Inner: embedderImpl}

	return cfg, model, embed, nil
}
