// Package agentloop implements the ReAct Loop (C8, §4.8): the
// THINK -> ACT -> OBSERVE -> REFLECT state machine that drives one run.
// OBSERVE's concurrent fan-out for simultaneous API calls uses
// golang.org/x/sync/errgroup, joining before the next phase per §5's
// "concurrent fan-out within a single action, join before the next phase".
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reactquery/agent/internal/agentctx"
	"github.com/reactquery/agent/internal/executor"
	"github.com/reactquery/agent/internal/hybrid"
	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/quality"
	"github.com/reactquery/agent/internal/streamevent"
	"github.com/reactquery/agent/internal/synth"
	"github.com/reactquery/agent/internal/workmem"
)

// Config carries the tunables named in §4.8.
type Config struct {
	QualityThreshold float64 // default 0.75
	MaxIterations    int     // default 5
	FullHistoryDepth int     // default 3, earlier iterations are summarised
	HistoryTurnCap   int     // default 5 raw history turns fed to THINK
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{QualityThreshold: 0.75, MaxIterations: 5, FullHistoryDepth: 3, HistoryTurnCap: 5}
}

// Loop is the ReAct Loop (C8), wiring together the Hybrid Selector,
// Parameter Synthesizer, Retry Executor, and Quality Validator under a
// single Language Model.
type Loop struct {
	Model       llm.Model
	Selector    *hybrid.Selector
	Synthesizer *synth.Synthesizer
	Executor    *executor.Executor
	Contexts    *agentctx.Builder
	Events      *streamevent.Emitter // optional; nil disables streaming
	Config      Config
}

// Run executes the ReAct Loop contract (§4.8): never raises, always returns
// a Working Memory with a terminal status (or "running" only if interrupted
// mid-iteration by a caller bug, which should not happen in practice).
func (l *Loop) Run(ctx context.Context, runID, userID, query, conversationID string) (wm *workmem.WorkingMemory) {
	start := time.Now()
	agentCtx := l.buildContext(ctx, userID, query, conversationID)
	wm = workmem.New(agentCtx)

	defer func() {
		if r := recover(); r != nil {
			wm.SetStatus(workmem.StatusFailed)
			wm.FinalAnswer = "Sorry, something went wrong while processing this request."
			wm.TotalExecutionTimeMS = time.Since(start).Milliseconds()
			l.emit(streamevent.Event{Type: streamevent.EventError, RunID: runID, Error: fmt.Sprintf("%v", r)})
			l.emitComplete(runID, wm, start)
		}
	}()

	l.emit(streamevent.Event{Type: streamevent.EventStart, RunID: runID})

	cfg := l.Config
	if cfg.MaxIterations == 0 {
		cfg = DefaultConfig()
	}

	for i := 1; i <= cfg.MaxIterations; i++ {
		it := workmem.Iteration{Index: i, Timestamp: time.Now()}

		it.Thought = l.think(ctx, wm, cfg)
		l.emit(streamevent.Event{Type: streamevent.EventThought, RunID: runID, StepNumber: i, Content: it.Thought})

		it.Action = l.act(ctx, wm, it.Thought)
		if it.Action.Type != workmem.ActionCallAPIs {
			// call_apis emits its own action event per resolved function,
			// with the real function_name and synthesised parameters (§6);
			// other action types have no function/parameters to report.
			l.emit(streamevent.Event{Type: streamevent.EventAction, RunID: runID, StepNumber: i, FunctionName: string(it.Action.Type)})
		}

		obsResult := l.observe(ctx, wm, runID, i, it.Action)
		it.Observation = obsResult.Observation
		it.SelectionMethod = obsResult.SelectionMethod
		it.SelectionConfidence = obsResult.SelectionConfidence
		it.SynthesisStrategy = obsResult.SynthesisStrategy
		l.recordSelectionMetadata(wm, &it)

		// Append before scoring so completeness's "first iteration's thought"
		// lookup (§4.7) sees this iteration too, not just earlier ones.
		wm.AppendIteration(it)
		current := &wm.Iterations[len(wm.Iterations)-1]

		overall, details := quality.Score(wm)
		wm.QualityScore = overall
		wm.QualityDetails = details
		current.QualityScoreAtIteration = overall

		current.Reflection, current.Decision = l.reflect(ctx, wm, overall, i, cfg)

		if current.Decision == workmem.DecisionDone {
			break
		}
	}

	overall, details := quality.Score(wm)
	wm.QualityScore = overall
	wm.QualityDetails = details

	wm.FinalAnswer = l.renderFinalAnswer(ctx, wm)
	l.emit(streamevent.Event{Type: streamevent.EventFinalAnswer, RunID: runID, Response: wm.FinalAnswer, QualityScore: overall})

	if overall >= cfg.QualityThreshold {
		wm.SetStatus(workmem.StatusCompleted)
	} else {
		wm.SetStatus(workmem.StatusIncomplete)
	}
	wm.TotalExecutionTimeMS = time.Since(start).Milliseconds()
	l.emitComplete(runID, wm, start)
	return wm
}

func (l *Loop) buildContext(ctx context.Context, userID, query, conversationID string) agentctx.AgentContext {
	if l.Contexts != nil {
		return l.Contexts.Build(ctx, userID, query, conversationID)
	}
	return agentctx.AgentContext{
		UserID:          userID,
		Query:           query,
		ConversationID:  conversationID,
		UserPreferences: map[string]interface{}{},
		Language:        agentctx.DetectLanguage(query),
	}
}

func (l *Loop) emit(evt streamevent.Event) {
	if l.Events == nil {
		return
	}
	l.Events.Publish(evt)
}

func (l *Loop) emitComplete(runID string, wm *workmem.WorkingMemory, start time.Time) {
	l.emit(streamevent.Event{
		Type:             streamevent.EventComplete,
		RunID:            runID,
		Success:          wm.Status == workmem.StatusCompleted,
		TotalSteps:       len(wm.Iterations),
		TotalAPICalls:    len(wm.APICalls),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		QualityScore:     wm.QualityScore,
	})
	if l.Events != nil {
		l.Events.Close(runID)
	}
}

func (l *Loop) recordSelectionMetadata(wm *workmem.WorkingMemory, it *workmem.Iteration) {
	if it.SelectionMethod != "" {
		wm.StrategyCounts["selector:"+string(it.SelectionMethod)]++
	}
	if it.SynthesisStrategy != "" {
		wm.StrategyCounts["synth:"+string(it.SynthesisStrategy)]++
	}
}

// think produces the THINK-phase thought (§4.8), bounding inputs to the
// last HistoryTurnCap conversation turns, the last FullHistoryDepth
// iterations in full, and summarising earlier ones.
func (l *Loop) think(ctx context.Context, wm *workmem.WorkingMemory, cfg Config) string {
	if l.Model == nil {
		return "no language model configured"
	}
	prompt := buildThinkPrompt(wm, cfg)
	resp, err := l.Model.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewSystemMessage(prompt), llm.NewUserMessage(wm.Context.Query)},
	})
	if err != nil {
		return "unable to reason about the query right now"
	}
	return resp.Text()
}

func buildThinkPrompt(wm *workmem.WorkingMemory, cfg Config) string {
	var sb strings.Builder
	sb.WriteString("You are reasoning step by step about how to answer a user's query using a catalogue of callable functions.\n")
	fmt.Fprintf(&sb, "Query: %s\n", wm.Context.Query)

	history := wm.Context.History
	if len(history) > cfg.HistoryTurnCap {
		history = history[len(history)-cfg.HistoryTurnCap:]
	}
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "- %s: %s\n", turn.Role, turn.Content)
		}
	}

	iterations := wm.Iterations
	if len(iterations) > 0 {
		sb.WriteString("Prior iterations:\n")
		cut := len(iterations) - cfg.FullHistoryDepth
		if cut < 0 {
			cut = 0
		}
		for i, it := range iterations {
			if i < cut {
				fmt.Fprintf(&sb, "- iteration %d summary: action=%s decision=%s\n", it.Index, it.Action.Type, it.Decision)
			} else {
				fmt.Fprintf(&sb, "- iteration %d: thought=%q action=%s reflection=%q\n", it.Index, it.Thought, it.Action.Type, it.Reflection)
			}
		}
	}
	sb.WriteString("Produce a short thought about what to do next.\n")
	return sb.String()
}

// actionDecision is the JSON shape the ACT-phase prompt asks the model for.
type actionDecision struct {
	Type        string   `json:"type"`
	FunctionIDs []string `json:"function_ids,omitempty"`
}

// act asks the model to choose the next action from the fixed closed set
// (§4.8). An unparseable or unrecognised type degrades to analyse with an
// empty input, per spec.
func (l *Loop) act(ctx context.Context, wm *workmem.WorkingMemory, thought string) workmem.Action {
	if l.Model == nil {
		return workmem.Action{Type: workmem.ActionAnalyse}
	}
	prompt := "Given the thought below, choose exactly one action: search_functions, call_apis, analyse, or done.\n" +
		"Return a single JSON object: {\"type\": one of those four, \"function_ids\": [..] (only for call_apis)}.\n" +
		"Thought: " + thought + "\n" +
		"Query: " + wm.Context.Query
	resp, err := l.Model.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewSystemMessage(prompt)},
		Options:  &llm.Options{ResponseFormat: llm.ResponseFormatJSON},
	})
	if err != nil {
		return workmem.Action{Type: workmem.ActionAnalyse}
	}
	decision, err := extractActionDecision(resp.Text())
	if err != nil {
		return workmem.Action{Type: workmem.ActionAnalyse}
	}
	switch workmem.ActionType(decision.Type) {
	case workmem.ActionSearchFunctions, workmem.ActionCallAPIs, workmem.ActionAnalyse, workmem.ActionDone:
		return workmem.Action{Type: workmem.ActionType(decision.Type), Input: decision}
	default:
		return workmem.Action{Type: workmem.ActionAnalyse}
	}
}

func extractActionDecision(text string) (actionDecision, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return actionDecision{}, fmt.Errorf("agentloop: no JSON object found in action response")
	}
	var decision actionDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &decision); err != nil {
		return actionDecision{}, fmt.Errorf("agentloop: parse action decision: %w", err)
	}
	return decision, nil
}

// reflect runs C7 and asks the model for a short reasoning string, applying
// the §4.8 termination decision rule.
func (l *Loop) reflect(ctx context.Context, wm *workmem.WorkingMemory, overall float64, iterationIndex int, cfg Config) (reasoning string, decision workmem.Decision) {
	llmDone := false
	if l.Model != nil {
		prompt := fmt.Sprintf("Quality score is %.2f. Summarise progress in one short sentence and state whether to continue or finish: respond with JSON {\"reasoning\": string, \"decision\": \"continue\"|\"done\"}.", overall)
		resp, err := l.Model.Generate(ctx, &llm.GenerateRequest{
			Messages: []llm.Message{llm.NewSystemMessage(prompt)},
			Options:  &llm.Options{ResponseFormat: llm.ResponseFormatJSON},
		})
		if err == nil {
			if r, d, ok := extractReflection(resp.Text()); ok {
				reasoning = r
				llmDone = d == "done"
			}
		}
	}
	if reasoning == "" {
		reasoning = fmt.Sprintf("quality score %.2f after iteration %d", overall, iterationIndex)
	}

	if overall >= cfg.QualityThreshold || llmDone || iterationIndex >= cfg.MaxIterations {
		return reasoning, workmem.DecisionDone
	}
	return reasoning, workmem.DecisionContinue
}

type reflectionJSON struct {
	Reasoning string `json:"reasoning"`
	Decision  string `json:"decision"`
}

func extractReflection(text string) (reasoning, decision string, ok bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", "", false
	}
	var r reflectionJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return "", "", false
	}
	return r.Reasoning, r.Decision, true
}

// renderFinalAnswer asks the model to produce the run's final_answer from
// Working Memory (§4.8 termination). On model failure it falls back to a
// best-effort synthesis from accumulated insights so the run never ends
// without some answer.
func (l *Loop) renderFinalAnswer(ctx context.Context, wm *workmem.WorkingMemory) string {
	if l.Model != nil {
		prompt := buildFinalAnswerPrompt(wm)
		resp, err := l.Model.Generate(ctx, &llm.GenerateRequest{
			Messages: []llm.Message{llm.NewSystemMessage(prompt), llm.NewUserMessage(wm.Context.Query)},
		})
		if err == nil && strings.TrimSpace(resp.Text()) != "" {
			return resp.Text()
		}
	}
	if len(wm.Insights) > 0 {
		return strings.Join(wm.Insights, " ")
	}
	return "Unable to produce a complete answer with the information gathered so far."
}

func buildFinalAnswerPrompt(wm *workmem.WorkingMemory) string {
	var sb strings.Builder
	sb.WriteString("Render a final answer to the user's query using the observations and insights gathered.\n")
	fmt.Fprintf(&sb, "Language: %s\n", wm.Context.Language)
	fmt.Fprintf(&sb, "Query: %s\n", wm.Context.Query)
	if len(wm.Insights) > 0 {
		sb.WriteString("Insights: " + strings.Join(wm.Insights, "; ") + "\n")
	}
	for i, obs := range wm.Observations {
		fmt.Fprintf(&sb, "Observation %d: %v\n", i+1, obs)
	}
	return sb.String()
}
