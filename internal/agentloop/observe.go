package agentloop

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/reactquery/agent/internal/executor"
	"github.com/reactquery/agent/internal/hybrid"
	"github.com/reactquery/agent/internal/streamevent"
	"github.com/reactquery/agent/internal/synth"
	"github.com/reactquery/agent/internal/workmem"
)

const defaultTopK = 5

// observeResult carries an action's observation value plus whatever
// selection/synthesis metadata it produced, so the caller can stamp the
// current Iteration without any shared mutable state between runs (§5:
// "each owns an independent Working Memory").
type observeResult struct {
	Observation         interface{}
	SelectionMethod     hybrid.Method
	SelectionConfidence float64
	SynthesisStrategy   synth.Strategy
}

// observe executes action and returns its observation, dispatching on the
// fixed closed set of action types (§4.8).
func (l *Loop) observe(ctx context.Context, wm *workmem.WorkingMemory, runID string, stepNumber int, action workmem.Action) observeResult {
	switch action.Type {
	case workmem.ActionSearchFunctions:
		return l.observeSearchFunctions(ctx, wm)
	case workmem.ActionCallAPIs:
		return l.observeCallAPIs(ctx, wm, runID, stepNumber, action)
	case workmem.ActionAnalyse:
		return observeResult{Observation: l.observeAnalyse(wm)}
	case workmem.ActionDone:
		return observeResult{}
	default:
		return observeResult{}
	}
}

func (l *Loop) observeSearchFunctions(ctx context.Context, wm *workmem.WorkingMemory) observeResult {
	if l.Selector == nil {
		return observeResult{Observation: []interface{}{}}
	}
	history := make([]hybrid.Turn, 0, len(wm.Context.History))
	for _, t := range wm.Context.History {
		history = append(history, hybrid.Turn{Role: t.Role, Content: t.Content})
	}
	result, err := l.Selector.SelectFunctions(ctx, hybrid.Request{
		Query:        wm.Context.Query,
		History:      history,
		Instructions: wm.Context.UserInstructions,
	}, defaultTopK)
	if err != nil || len(result.Records) == 0 {
		return observeResult{Observation: []interface{}{}}
	}

	wm.AddAvailableFunctions(result.Records...)

	ids := make([]interface{}, 0, len(result.Records))
	for _, r := range result.Records {
		ids = append(ids, r.FunctionID)
	}
	return observeResult{Observation: ids, SelectionMethod: result.Method, SelectionConfidence: result.Confidence}
}

// callOutcome is one call_apis fan-out member's result, collected in
// submission order after the errgroup joins (§4.8: "results are collected
// in submission order ... appended to Working Memory").
type callOutcome struct {
	rec         workmem.ExecutionRecord
	observation interface{}
	strategy    synth.Strategy
}

// preparedCall is a call_apis target after the THINK/ACT function choice has
// been resolved to concrete, schema-valid (or failed) parameters, but before
// the HTTP call runs. Splitting prepare from execute lets the action event
// (§6: "action: {step_number, function_name, parameters}") carry the actual
// function and arguments, emitted before the concurrent execution fan-out
// rather than the bare action type.
type preparedCall struct {
	functionID string
	ok         bool
	parameters map[string]interface{}
	errKind    executor.ErrorKind
	errMessage string
	strategy   synth.Strategy
}

func (l *Loop) observeCallAPIs(ctx context.Context, wm *workmem.WorkingMemory, runID string, stepNumber int, action workmem.Action) observeResult {
	decision, ok := action.Input.(actionDecision)
	if !ok || len(decision.FunctionIDs) == 0 {
		return observeResult{Observation: []interface{}{}}
	}

	previous := previousResultsFrom(wm)
	prepared := make([]preparedCall, len(decision.FunctionIDs))
	for i, functionID := range decision.FunctionIDs {
		prepared[i] = l.prepareCall(ctx, wm, functionID, previous)
		l.emit(streamevent.Event{
			Type:         streamevent.EventAction,
			RunID:        runID,
			StepNumber:   stepNumber,
			FunctionName: prepared[i].functionID,
			Parameters:   prepared[i].parameters,
		})
	}

	outcomes := make([]callOutcome, len(prepared))
	group, gctx := errgroup.WithContext(ctx)
	for i, p := range prepared {
		i, p := i, p
		group.Go(func() error {
			outcomes[i] = l.executeCall(gctx, wm, p)
			return nil // individual failures are captured per-outcome, never aborting siblings (§4.8)
		})
	}
	_ = group.Wait()

	var lastStrategy synth.Strategy
	results := make([]interface{}, 0, len(outcomes))
	for i, o := range outcomes {
		wm.AppendCall(o.rec, o.observation)
		l.emit(streamevent.Event{
			Type:            streamevent.EventObservation,
			RunID:           runID,
			StepNumber:      stepNumber,
			Success:         o.rec.Success,
			Result:          o.observation,
			Error:           o.rec.ErrorMessage,
			ExecutionTimeMS: o.rec.DurationMS,
		})
		if o.strategy != "" {
			lastStrategy = o.strategy
		}
		results = append(results, map[string]interface{}{
			"function_id": decision.FunctionIDs[i],
			"success":     o.rec.Success,
		})
	}
	return observeResult{Observation: results, SynthesisStrategy: lastStrategy}
}

// prepareCall resolves functionID to a Function Record and synthesises its
// parameters (C5). It runs sequentially, ahead of the concurrent execution
// fan-out, so only §4.8's HTTP executions — not parameter synthesis — run
// in parallel.
func (l *Loop) prepareCall(ctx context.Context, wm *workmem.WorkingMemory, functionID string, previous []synth.PreviousResult) preparedCall {
	if l.Executor == nil || l.Executor.Store == nil {
		return preparedCall{functionID: functionID, errMessage: "no executor configured"}
	}

	rec, found := l.Executor.Store.GetByID(ctx, functionID)
	if !found {
		return preparedCall{
			functionID: functionID,
			errKind:    executor.ErrorKindNotFound,
			errMessage: fmt.Sprintf("function %q not found", functionID),
		}
	}

	var synthResult synth.Result
	if l.Synthesizer != nil {
		synthResult = l.Synthesizer.Synthesize(ctx, synth.Request{
			FunctionID:      functionID,
			ParameterSchema: rec.ParameterSchema,
			Query:           wm.Context.Query,
			PreviousResults: previous,
		})
	}
	if !synthResult.OK {
		msg := "unable to synthesise parameters"
		if synthResult.Err != nil {
			msg = synthResult.Err.Error()
		}
		return preparedCall{functionID: functionID, errKind: executor.ErrorKindValidation, errMessage: msg, strategy: synthResult.Strategy}
	}

	return preparedCall{functionID: functionID, ok: true, parameters: synthResult.Parameters, strategy: synthResult.Strategy}
}

// executeCall runs the Retry Executor (C6) for an already-prepared call, or
// surfaces its preparation failure as a failed Execution Record.
func (l *Loop) executeCall(ctx context.Context, wm *workmem.WorkingMemory, p preparedCall) callOutcome {
	if !p.ok {
		return callOutcome{
			rec: workmem.ExecutionRecord{
				FunctionID:   p.functionID,
				Success:      false,
				ErrorKind:    p.errKind,
				ErrorMessage: p.errMessage,
			},
			strategy: p.strategy,
		}
	}

	execRec := l.Executor.Execute(ctx, wm.Context.ConversationID, p.functionID, p.parameters)
	return callOutcome{
		rec:         workmem.FromExecutorRecord(execRec),
		observation: execRec.Response,
		strategy:    p.strategy,
	}
}

func previousResultsFrom(wm *workmem.WorkingMemory) []synth.PreviousResult {
	out := make([]synth.PreviousResult, 0, len(wm.APICalls))
	for _, call := range wm.APICalls {
		pr := synth.PreviousResult{FunctionID: call.FunctionID, Parameters: call.Parameters}
		if respMap, ok := call.ResponseData.(map[string]interface{}); ok {
			pr.Response = respMap
		}
		out = append(out, pr)
	}
	return out
}

func (l *Loop) observeAnalyse(wm *workmem.WorkingMemory) interface{} {
	successful := 0
	for _, c := range wm.APICalls {
		if c.Success {
			successful++
		}
	}
	summary := fmt.Sprintf("gathered %d observation(s), %d successful", len(wm.Observations), successful)
	wm.Insights = append(wm.Insights, summary)
	return summary
}
