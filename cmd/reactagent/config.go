package main

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/reactquery/agent/internal/agentloop"
	"github.com/reactquery/agent/internal/executor"
	"github.com/reactquery/agent/internal/hybrid"
)

// Config is the recognised configuration surface from spec.md §6, loaded
// from a YAML file the same way the teacher's workspace loaders read their
// fixtures (gopkg.in/yaml.v3 over github.com/viant/afs).
type Config struct {
	MaxIterations     int     `yaml:"max_iterations"`
	QualityThreshold  float64 `yaml:"quality_threshold"`
	RuleThreshold     float64 `yaml:"rule_threshold"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	TopKRetrieval     int     `yaml:"top_k_retrieval"`
	TopKSelected      int     `yaml:"top_k_selected"`
	MaxRetries        int     `yaml:"max_retries"`
	PerCallTimeoutMS  int     `yaml:"per_call_timeout_ms"`
	HistoryTurns      int     `yaml:"history_turns"`
	LanguageDefault   string  `yaml:"language_default"`

	RegistrySeed  string `yaml:"registry_seed"`  // afs URL to a Function Record YAML fixture
	RuleSet       string `yaml:"rule_set"`       // afs URL to a ruleselect.LoadRules fixture
	TemplateSet   string `yaml:"template_set"`   // afs URL to a synth.LoadTemplates fixture
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
}

// DefaultConfig returns the spec's documented defaults (§6).
func DefaultConfig() Config {
	return Config{
		MaxIterations:     5,
		QualityThreshold:  0.75,
		RuleThreshold:     0.80,
		SemanticThreshold: 0.70,
		TopKRetrieval:     20,
		TopKSelected:      5,
		MaxRetries:        2,
		PerCallTimeoutMS:  10_000,
		HistoryTurns:      10,
		LanguageDefault:   "auto",
		OpenAIModel:       "gpt-4o-mini",
	}
}

// LoadConfig reads path over afs and merges it onto DefaultConfig, mirroring
// the teacher's workspace YAML loaders.
func LoadConfig(ctx context.Context, fs afs.Service, path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := fs.DownloadWithURL(ctx, path)
	if err != nil {
		return Config{}, fmt.Errorf("reactagent: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("reactagent: parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) hybridConfig() hybrid.Config {
	return hybrid.Config{
		RuleThreshold:     c.RuleThreshold,
		SemanticThreshold: c.SemanticThreshold,
		TopKRetrieval:     c.TopKRetrieval,
		LLMConfidence:     hybrid.DefaultConfig().LLMConfidence,
	}
}

func (c Config) executorConfig() executor.Config {
	cfg := executor.DefaultConfig()
	cfg.MaxRetries = c.MaxRetries
	cfg.PerCallTimeout = msDuration(c.PerCallTimeoutMS)
	return cfg
}

func (c Config) loopConfig() agentloop.Config {
	return agentloop.Config{
		QualityThreshold: c.QualityThreshold,
		MaxIterations:    c.MaxIterations,
		FullHistoryDepth: agentloop.DefaultConfig().FullHistoryDepth,
		HistoryTurnCap:   agentloop.DefaultConfig().HistoryTurnCap,
	}
}
