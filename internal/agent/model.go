package agent

import "context"

// Role is the author of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one chat turn
type Message struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall

	// Set on tool results
	ToolCallID string
	ToolName   string
}

// ToolSpec describes a tool to the model
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// Model produces the next assistant message for a conversation
type Model interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (Message, error)
}
