// Package streamevent implements the Streaming Emitter (C10, §4.10): a
// forward-only, single-consumer event sequence per run, grounded on the
// teacher's StreamEvent shape (genai/extension/fluxor/llm/core/stream.go).
package streamevent

// EventType is the fixed closed set of event kinds a run emits (§7).
type EventType string

const (
	EventStart       EventType = "start"
	EventThought     EventType = "thought"
	EventAction      EventType = "action"
	EventObservation EventType = "observation"
	EventFinalAnswer EventType = "final_answer"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one streamed notification. Not every field applies to every
// EventType; the §7 JSON shapes document which fields populate for which
// type:
//   - thought:       {StepNumber, Content}
//   - action:        {StepNumber, FunctionName, Parameters}
//   - observation:    {StepNumber, Success, Result or Error, ExecutionTimeMS}
//   - final_answer:   {Response, QualityScore}
//   - complete:       {Success, TotalSteps, TotalAPICalls, ProcessingTimeMS, QualityScore}
//   - error:          {Error}
type Event struct {
	Type       EventType
	RunID      string
	StepNumber int

	Content      string
	FunctionName string
	Parameters   map[string]interface{}

	Success         bool
	Result          interface{}
	Error           string
	ExecutionTimeMS int64

	Response     string
	QualityScore float64

	TotalSteps       int
	TotalAPICalls    int
	ProcessingTimeMS int64
}
