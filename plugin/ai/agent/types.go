// Package agent implements the per-turn dispatcher. A turn walks a fixed
// state machine (context load, intent resolution, tool execution, response
// composition, persistence) and holds no state across requests: every turn
// cold-reads its conversation from the store.
package agent

import (
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
)

// TurnRequest is one inbound user message. A nil ConversationID starts a new
// conversation.
type TurnRequest struct {
	UserID         int32
	ConversationID *int32
	Message        string
}

// TurnResponse is the completed turn: the assistant text plus the structured
// record of every tool call it made.
type TurnResponse struct {
	ConversationID int32
	ResponseText   string
	ToolCalls      []tools.ToolCallResult
}
