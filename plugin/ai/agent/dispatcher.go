package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/observability"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/server/service/conversation"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

// Dispatcher runs one conversational turn end to end.
type Dispatcher struct {
	llm           ai.LLMService
	registry      *tools.Registry
	executor      *tools.Executor
	conversations conversation.Service
	tasks         task.Service
	resolver      *resolver
	profile       *profile.Profile
	logger        *slog.Logger
}

func NewDispatcher(
	llm ai.LLMService,
	registry *tools.Registry,
	conversations conversation.Service,
	tasks task.Service,
	p *profile.Profile,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		llm:           llm,
		registry:      registry,
		executor:      tools.NewExecutor(registry),
		conversations: conversations,
		tasks:         tasks,
		resolver:      &resolver{tasks: tasks},
		profile:       p,
		logger:        logger,
	}
}

// Dispatch executes one turn. ProviderUnavailable and PersistenceFailure
// abort the turn and are returned as errors; everything else, including tool
// failures and clarification questions, produces a normal persisted response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.InvalidArguments("message is empty")
	}

	convID := int32(0)
	if req.ConversationID != nil {
		convID = *req.ConversationID
	}
	rc := observability.NewRequestContext(d.logger, req.UserID, convID)
	ctx = observability.WithRequestContext(ctx, rc)
	rc.Info("turn received")

	conv, err := d.conversations.EnsureConversation(ctx, req.UserID, req.ConversationID, req.Message)
	if err != nil {
		return nil, err
	}
	rc.ConversationID = conv.ID
	history, err := d.conversations.LoadHistory(ctx, req.UserID, conv.ID, d.profile.HistoryWindow)
	if err != nil {
		return nil, err
	}
	rc.Debug("context loaded", slog.Int("history_messages", len(history)))

	messages := buildMessages(history, req.Message)
	allResults := make([]tools.ToolCallResult, 0)
	mutated := make(map[string]bool)
	responseText := ""

rounds:
	for round := 0; round < d.profile.MaxToolRounds; round++ {
		resp, err := d.llm.ChatWithTools(ctx, messages, d.registry.Descriptors())
		if err != nil {
			rc.Error("completion failed", err)
			return nil, err
		}
		if len(resp.ToolCalls) == 0 {
			responseText = resp.Content
			break
		}

		prepared, clarification := d.prepareCalls(ctx, req.UserID, resp.ToolCalls, mutated)
		if clarification != "" {
			responseText = clarification
			break rounds
		}

		results := d.executeCalls(ctx, req.UserID, prepared)
		allResults = append(allResults, results...)

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, r := range results {
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				ToolCallID: r.ToolCallID,
				Content:    toolResultContent(r),
			})
		}

		if round == d.profile.MaxToolRounds-1 {
			rc.Warn("tool round limit reached", slog.Int("rounds", d.profile.MaxToolRounds))
		}
	}

	if responseText == "" {
		responseText = composeFallback(allResults)
	}

	// Both sides of the turn must be durable before the caller sees the
	// response; a failure here fails the whole turn.
	if _, err := d.conversations.AppendMessage(ctx, req.UserID, conv.ID, store.MessageRoleUser, req.Message, ""); err != nil {
		rc.Error("failed to persist user message", err)
		return nil, err
	}
	resultsJSON, _ := json.Marshal(allResults)
	if _, err := d.conversations.AppendMessage(ctx, req.UserID, conv.ID, store.MessageRoleAssistant, responseText, string(resultsJSON)); err != nil {
		rc.Error("failed to persist assistant message", err)
		return nil, err
	}

	rc.Info("turn finished",
		slog.Int("tool_calls", len(allResults)),
		slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return &TurnResponse{
		ConversationID: conv.ID,
		ResponseText:   responseText,
		ToolCalls:      allResults,
	}, nil
}

// preparedCall is a tool call that passed the deterministic guards, or the
// guard failure that replaced it.
type preparedCall struct {
	call     ai.ToolCall
	rejected *tools.ToolCallResult
}

// prepareCalls applies the in-code guards before anything executes: title
// references are resolved, ownership is verified for mutating calls, and a
// second mutating call against the same entity in one turn is rejected. An
// ambiguous reference aborts the round with a clarification question and no
// tool from this round executes.
func (d *Dispatcher) prepareCalls(ctx context.Context, userID int32, calls []ai.ToolCall, mutated map[string]bool) ([]preparedCall, string) {
	prepared := make([]preparedCall, 0, len(calls))
	for _, call := range calls {
		tool, known := d.registry.Get(call.Function.Name)
		if !known {
			prepared = append(prepared, preparedCall{call: call}) // executor reports unknown tool
			continue
		}

		args := json.RawMessage(call.Function.Arguments)
		resolved, candidates, err := d.resolver.resolveArgs(ctx, userID, args)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeAmbiguousReference) {
				var ref titleRef
				_ = json.Unmarshal(args, &ref)
				return nil, clarificationQuestion(ref.TitleQuery, candidates)
			}
			prepared = append(prepared, preparedCall{call: call, rejected: rejectedResult(call, err)})
			continue
		}
		call.Function.Arguments = string(resolved)

		if tool.Mutating {
			if rej := d.guardMutation(ctx, userID, tool, call, mutated); rej != nil {
				prepared = append(prepared, preparedCall{call: call, rejected: rej})
				continue
			}
		}
		prepared = append(prepared, preparedCall{call: call})
	}
	return prepared, ""
}

func (d *Dispatcher) guardMutation(ctx context.Context, userID int32, tool *tools.Tool, call ai.ToolCall, mutated map[string]bool) *tools.ToolCallResult {
	if tool.EntityRef == nil {
		return nil
	}
	entity, ok := tool.EntityRef(json.RawMessage(call.Function.Arguments))
	if !ok {
		return nil
	}
	if mutated[entity] {
		return rejectedResult(call, errors.InvalidArguments("entity %s was already modified in this turn", entity))
	}

	// Ownership pre-check for calls that target an existing task.
	var ref titleRef
	if err := json.Unmarshal(json.RawMessage(call.Function.Arguments), &ref); err == nil && ref.TaskID != nil {
		if _, err := d.tasks.GetTask(ctx, userID, *ref.TaskID); err != nil {
			return rejectedResult(call, err)
		}
	}

	mutated[entity] = true
	return nil
}

// executeCalls runs the surviving calls concurrently. Entity conflicts were
// already rejected, so the remaining calls are independent. A failed call is
// data in its result entry, never an abort of its siblings.
func (d *Dispatcher) executeCalls(ctx context.Context, userID int32, prepared []preparedCall) []tools.ToolCallResult {
	results := make([]tools.ToolCallResult, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range prepared {
		if p.rejected != nil {
			results[i] = *p.rejected
			continue
		}
		g.Go(func() error {
			results[i] = d.executor.Execute(gctx, userID, p.call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func rejectedResult(call ai.ToolCall, err error) *tools.ToolCallResult {
	return &tools.ToolCallResult{
		ToolCallID: call.ID,
		ToolName:   call.Function.Name,
		Status:     tools.CallStatusError,
		Error:      err.Error(),
		ErrorCode:  string(errors.CodeOf(err, errors.ErrCodeInvalidArguments)),
	}
}

func toolResultContent(r tools.ToolCallResult) string {
	if r.Status == tools.CallStatusSuccess {
		return string(r.Result)
	}
	return fmt.Sprintf(`{"error":%q,"code":%q}`, r.Error, r.ErrorCode)
}
