// Package workmem defines Working Memory (§3): the single per-run mutable
// record the ReAct Loop (C8) owns and appends to, and the Quality Validator
// (C7) reads. Hybrid Selector, Parameter Synthesizer and Retry Executor
// results reach it only through the loop.
package workmem

import (
	"time"

	"github.com/reactquery/agent/internal/agentctx"
	"github.com/reactquery/agent/internal/executor"
	"github.com/reactquery/agent/internal/hybrid"
	"github.com/reactquery/agent/internal/registry"
	"github.com/reactquery/agent/internal/synth"
)

// ActionType is the fixed closed set of actions the ACT phase may choose.
type ActionType string

const (
	ActionSearchFunctions ActionType = "search_functions"
	ActionCallAPIs        ActionType = "call_apis"
	ActionAnalyse         ActionType = "analyse"
	ActionDone            ActionType = "done"
)

// Action is one ACT-phase decision (§3 Iteration: "action").
type Action struct {
	Type  ActionType
	Input interface{}
}

// Decision is the REFLECT-phase outcome (§3 Iteration: "decision").
type Decision string

const (
	DecisionContinue Decision = "continue"
	DecisionDone     Decision = "done"
)

// Iteration is the §3 Iteration entity.
type Iteration struct {
	Index                   int
	Thought                 string
	Action                  Action
	Observation             interface{}
	Reflection              string
	QualityScoreAtIteration float64
	Decision                Decision
	SelectionMethod         hybrid.Method
	SelectionConfidence     float64
	SynthesisStrategy       synth.Strategy
	Timestamp               time.Time
}

// ExecutionRecord is the §3 Execution Record entity, as stored on Working
// Memory (distinct from executor.ExecutionRecord, which is the Retry
// Executor's own richer return value — FromExecutorRecord converts between
// them at the C8/C6 boundary).
type ExecutionRecord struct {
	FunctionID    string
	Parameters    map[string]interface{}
	AttemptCount  int
	Success       bool
	ResponseData  interface{}
	ErrorKind     executor.ErrorKind
	ErrorMessage  string
	DurationMS    int64
	RetriedDueTo  string
}

// FromExecutorRecord adapts the Retry Executor's ExecutionRecord to the
// Working Memory shape named in §3.
func FromExecutorRecord(r executor.ExecutionRecord) ExecutionRecord {
	out := ExecutionRecord{
		FunctionID:   r.FunctionID,
		Parameters:   r.Parameters,
		AttemptCount: r.Attempts,
		Success:      r.Outcome == executor.OutcomeSuccess,
		ResponseData: r.Response,
		ErrorKind:    r.ErrorKind,
		DurationMS:   r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.ErrorMessage = r.Err.Error()
	}
	if r.Attempts > 1 {
		out.RetriedDueTo = string(r.ErrorKind)
		if r.Outcome == executor.OutcomeSuccess {
			out.RetriedDueTo = "retryable"
		}
	}
	return out
}

// Status is the run-level lifecycle (§3: "running, completed, incomplete,
// failed"). Transitions are forward-only: running->completed,
// running->incomplete, running->failed; never backwards.
type Status string

const (
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

// QualityDetails is the four weighted sub-scores from C7 (§4.7).
type QualityDetails struct {
	Completeness float64
	Coverage     float64
	Reliability  float64
	Format       float64
}

// WorkingMemory is the §3 Working Memory entity.
type WorkingMemory struct {
	Context              agentctx.AgentContext
	Iterations           []Iteration
	AvailableFunctions   []*registry.Record
	APICalls             []ExecutionRecord
	Observations         []interface{}
	Insights             []string
	FinalAnswer          string
	Status               Status
	QualityScore         float64
	QualityDetails       QualityDetails
	TotalExecutionTimeMS int64
	StrategyCounts       map[string]int // per-strategy/per-selector counts (§7 observability)

	availableFunctionIDs map[string]struct{}
}

// New creates an empty, running Working Memory for a fresh run.
func New(ctx agentctx.AgentContext) *WorkingMemory {
	return &WorkingMemory{
		Context:              ctx,
		Status:               StatusRunning,
		StrategyCounts:       map[string]int{},
		availableFunctionIDs: map[string]struct{}{},
	}
}

// AddAvailableFunctions merges records into AvailableFunctions, deduplicated
// by function_id (§3 invariant).
func (w *WorkingMemory) AddAvailableFunctions(records ...*registry.Record) {
	if w.availableFunctionIDs == nil {
		w.availableFunctionIDs = map[string]struct{}{}
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, seen := w.availableFunctionIDs[r.FunctionID]; seen {
			continue
		}
		w.availableFunctionIDs[r.FunctionID] = struct{}{}
		w.AvailableFunctions = append(w.AvailableFunctions, r)
	}
}

// AppendCall appends one Execution Record and its observation together,
// preserving the |api_calls| == |observations| invariant (§3).
func (w *WorkingMemory) AppendCall(rec ExecutionRecord, observation interface{}) {
	w.APICalls = append(w.APICalls, rec)
	w.Observations = append(w.Observations, observation)
}

// AppendIteration appends a completed Iteration record.
func (w *WorkingMemory) AppendIteration(it Iteration) {
	w.Iterations = append(w.Iterations, it)
}

// SetStatus transitions status, refusing any transition that is not
// running->{completed,incomplete,failed} (§3 invariant: never backwards).
func (w *WorkingMemory) SetStatus(s Status) {
	if w.Status != StatusRunning {
		return
	}
	w.Status = s
}
