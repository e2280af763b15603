package llm

// ToolDefinition describes a function that can be called by the model. It
// mirrors a Function Record's callable surface (§3 Function Record) without
// the registry-only bookkeeping fields (endpoint, method, popularity...).
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Required    []string               `json:"required,omitempty"`
}

// Tool wraps a ToolDefinition the way OpenAI-style function-calling APIs expect.
type Tool struct {
	Type       string         `json:"type"`
	Definition ToolDefinition `json:"definition"`
}

// NewFunctionTool wraps a ToolDefinition as a callable function tool.
func NewFunctionTool(def ToolDefinition) Tool {
	return Tool{Type: "function", Definition: def}
}

// ToolChoice expresses which tool (if any) the caller wants the model to use.
type ToolChoice struct {
	Type string `json:"type"` // "none", "auto", "function"
	Name string `json:"name,omitempty"`
}

// NewAutoToolChoice lets the model decide whether to call a tool.
func NewAutoToolChoice() ToolChoice { return ToolChoice{Type: "auto"} }

// NewNoneToolChoice disables tool calling for the request.
func NewNoneToolChoice() ToolChoice { return ToolChoice{Type: "none"} }
