// Package ai defines the language model abstraction used by the agent. The
// dispatcher never talks to a provider SDK directly; it speaks this interface
// so tests can substitute a scripted model.
package ai

import "context"

// MessageRole values mirror the chat completion wire roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
	// ToolCallID links a tool-role message back to the call it answers.
	ToolCallID string
	// ToolCalls carries the assistant's tool requests when echoing history.
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall holds the tool name and its raw JSON arguments.
type FunctionCall struct {
	Name      string
	Arguments string
}

// ToolDescriptor describes a callable tool to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// ChatResponse is the model's reply: free text, tool calls, or both.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMService is the completion interface the agent depends on.
type LLMService interface {
	// Chat requests a plain completion with no tool access.
	Chat(ctx context.Context, messages []Message) (string, error)
	// ChatWithTools requests a completion with the given tools advertised.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error)
}
