package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/plugin/ai"
)

// CallStatus is the outcome of one tool invocation.
type CallStatus string

const (
	CallStatusSuccess CallStatus = "success"
	CallStatusError   CallStatus = "error"
)

// ToolCallResult records one executed call for the model, the response
// payload, and the persisted turn record.
type ToolCallResult struct {
	ToolCallID      string          `json:"tool_call_id"`
	ToolName        string          `json:"tool_name"`
	Status          CallStatus      `json:"status"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ErrorCode       string          `json:"error_code,omitempty"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
}

// Executor runs registry tools and wraps their outcomes.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs one call. Errors are captured in the result rather than
// returned: a failed tool is data for the model, not a turn failure.
func (e *Executor) Execute(ctx context.Context, userID int32, call ai.ToolCall) ToolCallResult {
	start := time.Now()
	result := ToolCallResult{
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
	}

	tool, ok := e.registry.Get(call.Function.Name)
	if !ok {
		result.Status = CallStatusError
		result.Error = "unknown tool " + call.Function.Name
		result.ErrorCode = string(errors.ErrCodeInvalidArguments)
		result.ExecutionTimeMS = time.Since(start).Milliseconds()
		return result
	}

	payload, err := tool.Handler(ctx, userID, json.RawMessage(call.Function.Arguments))
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = CallStatusError
		result.Error = err.Error()
		result.ErrorCode = string(errors.CodeOf(err, errors.ErrCodePersistenceFailure))
		return result
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		result.Status = CallStatusError
		result.Error = "failed to encode tool result"
		result.ErrorCode = string(errors.ErrCodePersistenceFailure)
		return result
	}
	result.Status = CallStatusSuccess
	result.Result = encoded
	return result
}
