package llm

// Options carries sampling and tool-calling knobs for a GenerateRequest. The
// field set is intentionally a trimmed version of the teacher's provider
// options: the core only ever drives text or JSON-mode completions.
type Options struct {
	Model       string  `json:"model,omitempty" yaml:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature"`

	// Tools and ToolChoice offer the model a closed set of functions to call.
	// No caller in this module sets them (the ACT phase asks for a JSON action
	// object instead), and langchain.Adapter does not forward them.
	Tools      []Tool     `json:"tools,omitempty" yaml:"tools,omitempty"`
	ToolChoice ToolChoice `json:"tool_choice,omitempty" yaml:"tool_choice,omitempty"`

	// ResponseFormat requests "text" or "json" rendering, matching §6's
	// complete(prompt_parts, max_tokens?, response_format) contract.
	ResponseFormat ResponseFormat `json:"response_format,omitempty" yaml:"response_format,omitempty"`
}
