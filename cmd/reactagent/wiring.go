package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/viant/afs"

	"github.com/reactquery/agent/internal/agentctx"
	"github.com/reactquery/agent/internal/agentloop"
	"github.com/reactquery/agent/internal/embedder"
	"github.com/reactquery/agent/internal/executor"
	"github.com/reactquery/agent/internal/hybrid"
	"github.com/reactquery/agent/internal/index"
	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/registry"
	"github.com/reactquery/agent/internal/ruleselect"
	"github.com/reactquery/agent/internal/streamevent"
	"github.com/reactquery/agent/internal/synth"
)

func msDuration(ms int) time.Duration {
	if ms <= 0 {
		return 10 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// app bundles every wired component for one process lifetime. Built once at
// startup, shared (read-mostly) across runs (§5 "Shared resources").
type app struct {
	store  *registry.Store
	idx    *index.Index
	syncer *index.Syncer
	events *streamevent.Emitter
	loop   *agentloop.Loop
}

// buildApp wires the Function Registry Store, Embedding Index and its CDC
// syncer, Hybrid Selector, Parameter Synthesizer, Retry Executor, Context
// Builder, and the ReAct Loop from cfg, following the teacher's
// constructor-injection style (genai/service/agent wiring its collaborators
// in one place) rather than a DI framework.
func buildApp(ctx context.Context, cfg Config, model llm.Model, embed embedder.Embedder) (*app, error) {
	fs := afs.New()

	store := registry.New()
	if cfg.RegistrySeed != "" {
		if err := registry.LoadSeed(ctx, store, fs, cfg.RegistrySeed); err != nil {
			return nil, fmt.Errorf("reactagent: load registry seed: %w", err)
		}
	}

	idx := index.New()
	syncer := index.NewSyncer(store, idx, embed)
	if err := syncer.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("reactagent: bootstrap embedding index: %w", err)
	}
	go syncer.Run(ctx)

	var rules []ruleselect.Rule
	if cfg.RuleSet != "" {
		loaded, err := ruleselect.LoadRules(ctx, fs, cfg.RuleSet)
		if err != nil {
			return nil, fmt.Errorf("reactagent: load rule set: %w", err)
		}
		rules = loaded
	}

	var templates []synth.Template
	if cfg.TemplateSet != "" {
		loaded, err := synth.LoadTemplates(ctx, fs, cfg.TemplateSet)
		if err != nil {
			return nil, fmt.Errorf("reactagent: load template set: %w", err)
		}
		templates = loaded
	}

	selector := &hybrid.Selector{
		Rules:  rules,
		Store:  store,
		Index:  idx,
		Embed:  embed,
		Model:  model,
		Config: cfg.hybridConfig(),
	}

	synthesizer := &synth.Synthesizer{Templates: templates, Model: model}

	exec := executor.New(store, cfg.executorConfig())
	exec.Client = &http.Client{Timeout: cfg.executorConfig().PerCallTimeout}

	events := streamevent.NewEmitter()

	loop := &agentloop.Loop{
		Model:       model,
		Selector:    selector,
		Synthesizer: synthesizer,
		Executor:    exec,
		Contexts:    &agentctx.Builder{HistoryTurns: cfg.HistoryTurns},
		Events:      events,
		Config:      cfg.loopConfig(),
	}

	return &app{store: store, idx: idx, syncer: syncer, events: events, loop: loop}, nil
}
