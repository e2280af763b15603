// Package synth implements the Parameter Synthesizer (C5, §4.5): given a
// function's parameter schema and a natural-language query, produce a
// validated argument set using the cheapest strategy that succeeds —
// template match, type-directed extraction, reuse from previous call
// results, and finally an LLM generation fallback.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reactquery/agent/internal/llm"
	"github.com/reactquery/agent/internal/registry"
)

// Strategy identifies which tier produced (or last attempted) a result.
type Strategy string

const (
	StrategyTemplate Strategy = "template"
	StrategyExtract  Strategy = "extraction"
	StrategyContext  Strategy = "context_reuse"
	StrategyLLM      Strategy = "llm"
)

// PreviousResult is one prior ACT-phase call outcome (§4.5 tier 3), made
// available for parameter reuse in a later synthesis call within the same
// run.
type PreviousResult struct {
	FunctionID string
	Parameters map[string]interface{}
	Response   map[string]interface{}
}

// Request carries the function schema, query, and context a synthesis call
// needs, mirroring the §4.5 contract signature.
type Request struct {
	FunctionID      string
	ParameterSchema map[string]registry.ParamSpec
	Query           string
	PreviousResults []PreviousResult
}

// Result is the §4.5 contract's (ok, parameters, error?, strategy) tuple.
type Result struct {
	OK         bool
	Parameters map[string]interface{}
	Err        error
	Strategy   Strategy
}

// Synthesizer orchestrates the four strategies in order.
type Synthesizer struct {
	Templates []Template
	Clock     Clock
	Model     llm.Model
}

// Synthesize runs the cascade described in §4.5.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) Result {
	clock := s.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	// Tier 1: template.
	if params, ok := applyTemplates(s.Templates, req.Query); ok {
		if err := Validate(req.ParameterSchema, params); err == nil {
			return Result{OK: true, Parameters: params, Strategy: StrategyTemplate}
		}
	}

	// Tier 2: extraction.
	extracted := extractParameters(req.ParameterSchema, req.Query, clock)
	if err := Validate(req.ParameterSchema, extracted); err == nil && len(extracted) > 0 {
		return Result{OK: true, Parameters: extracted, Strategy: StrategyExtract}
	}

	// Tier 3: context reuse, filling gaps left by extraction.
	withReuse := fillFromPreviousResults(req.ParameterSchema, extracted, req.FunctionID, req.PreviousResults)
	if err := Validate(req.ParameterSchema, withReuse); err == nil {
		return Result{OK: true, Parameters: withReuse, Strategy: StrategyContext}
	}

	// Tier 4: LLM generation, last resort.
	if s.Model != nil {
		params, err := s.generateWithLLM(ctx, req)
		if err == nil {
			if verr := Validate(req.ParameterSchema, params); verr == nil {
				return Result{OK: true, Parameters: params, Strategy: StrategyLLM}
			}
		}
	}

	firstMissing := firstMissingOrInvalid(req.ParameterSchema, withReuse)
	return Result{OK: false, Err: fmt.Errorf("synth: %s", firstMissing), Strategy: StrategyLLM}
}

// fillFromPreviousResults fills missing parameter values from prior ACT
// results, most recent first, matching either the same function_id or a
// response that declared a field with the same name (§4.5 tier 3).
func fillFromPreviousResults(schema map[string]registry.ParamSpec, current map[string]interface{}, functionID string, previous []PreviousResult) map[string]interface{} {
	out := make(map[string]interface{}, len(current))
	for k, v := range current {
		out[k] = v
	}
	for name := range schema {
		if _, present := out[name]; present {
			continue
		}
		for i := len(previous) - 1; i >= 0; i-- {
			pr := previous[i]
			if pr.FunctionID == functionID {
				if v, ok := pr.Parameters[name]; ok {
					out[name] = v
					break
				}
			}
			if v, ok := pr.Response[name]; ok {
				out[name] = v
				break
			}
		}
	}
	return out
}

func firstMissingOrInvalid(schema map[string]registry.ParamSpec, params map[string]interface{}) string {
	for name, spec := range schema {
		if spec.Required {
			if _, ok := params[name]; !ok {
				return fmt.Sprintf("missing required parameter %q", name)
			}
		}
	}
	if err := Validate(schema, params); err != nil {
		return err.Error()
	}
	return "parameters invalid"
}

func (s *Synthesizer) generateWithLLM(ctx context.Context, req Request) (map[string]interface{}, error) {
	prompt := buildSynthesisPrompt(req)
	resp, err := s.Model.Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewSystemMessage(prompt), llm.NewUserMessage(req.Query)},
		Options:  &llm.Options{ResponseFormat: llm.ResponseFormatJSON},
	})
	if err != nil {
		return nil, err
	}
	return extractParameterObject(resp.Text())
}

func buildSynthesisPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Produce JSON arguments for a function call.\n")
	fmt.Fprintf(&sb, "Function: %s\n", req.FunctionID)
	sb.WriteString("Parameter schema:\n")
	for name, spec := range req.ParameterSchema {
		fmt.Fprintf(&sb, "- %s: type=%s required=%v enum=%v\n", name, spec.Type, spec.Required, spec.Enum)
	}
	sb.WriteString("Return a single JSON object mapping parameter name to value. Return only the JSON object.\n")
	return sb.String()
}

// extractParameterObject finds the first "{" and last "}" in text and parses
// the JSON object between them, the same defensive idiom the ranking tier
// uses for arrays (hybrid.extractRankedItems).
func extractParameterObject(text string) (map[string]interface{}, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("synth: no JSON object found in LLM response")
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(text[start:end+1]), &params); err != nil {
		return nil, fmt.Errorf("synth: parse parameter object: %w", err)
	}
	return params, nil
}
