// Package llm defines the abstract Language Model capability consumed by the
// hybrid selector (tier 3), the parameter synthesiser (tier 4) and the ReAct
// loop's final-answer generation. Concrete providers live outside this
// package; callers inject a Model/Finder pair at construction time.
package llm

import "encoding/json"

// MessageRole represents the role of the message sender.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is a single turn in a GenerateRequest's conversation.
type Message struct {
	Role MessageRole `json:"role"`
	// Content is the textual payload for this message. The engine is
	// text-first; multi-modal content items are out of scope for the core.
	Content string `json:"content,omitempty"`
	// Name identifies the tool that produced a RoleTool message.
	Name string `json:"name,omitempty"`
	// ToolCallID links a RoleTool message back to the assistant's ToolCall.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls carries structured function/tool invocations proposed by the
	// assistant in a prior turn.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured function/tool invocation.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ResponseFormat constrains how the model renders its answer.
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json"
)

// GenerateRequest is a request to a chat-based LLM.
type GenerateRequest struct {
	Messages []Message `json:"messages"`
	Options  *Options  `json:"options,omitempty"`
}

// GenerateResponse is a response from a chat-based LLM.
type GenerateResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
	Model   string   `json:"model,omitempty"`
}

// Choice is a single response candidate.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage carries token accounting for a single Generate call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewAssistantMessage creates an assistant-role message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolResultMessage builds a tool-role message carrying a prior ToolCall's
// textual result.
func NewToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Name: call.Name, ToolCallID: call.ID, Content: content}
}

// NewToolCall builds a ToolCall, copying args to avoid aliasing the caller's map.
func NewToolCall(id, name string, args map[string]interface{}) ToolCall {
	copied := make(map[string]interface{}, len(args))
	for k, v := range args {
		copied[k] = v
	}
	return ToolCall{ID: id, Name: name, Arguments: copied}
}

// ArgumentsJSON renders a ToolCall's arguments as a compact JSON string,
// mirroring the legacy FunctionCall.Arguments encoding providers expect.
func (t ToolCall) ArgumentsJSON() string {
	data, _ := json.Marshal(t.Arguments)
	return string(data)
}

// Text returns the first choice's message content, or "" when absent.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
