// Package tools defines the closed registry of operations the model may
// invoke. Tools are the only mutation path: the model proposes calls, the
// registry validates and executes them, and tools never call tools.
package tools

import (
	"context"
	"encoding/json"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

// SuggestionService is the ranker read surface the suggest_tasks tool needs.
type SuggestionService interface {
	Suggest(ctx context.Context, userID int32) ([]*store.Suggestion, error)
}

// ReminderService is the scheduling surface the schedule_reminder tool needs.
type ReminderService interface {
	Schedule(ctx context.Context, userID int32, taskID int32, reminderType store.ReminderType, channels []string, scheduledTs *int64) (*store.Reminder, error)
}

// InsightStore backs the read-only analytics and pattern tools.
type InsightStore interface {
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	ListTaskPatterns(ctx context.Context, find *store.FindTaskPattern) ([]*store.TaskPattern, error)
}

// Dependencies carries the services the tools execute against.
type Dependencies struct {
	Tasks       task.Service
	Suggestions SuggestionService
	Reminders   ReminderService
	Insights    InsightStore
	Profile     *profile.Profile
}

// Tool is one registered operation.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON-schema object advertised to the model.
	Parameters map[string]any
	// Mutating marks tools that write; the dispatcher allows at most one
	// mutating call per entity per turn.
	Mutating bool
	// EntityRef extracts the entity key a mutating call targets, before
	// execution, so duplicate mutations can be rejected up front.
	EntityRef func(args json.RawMessage) (string, bool)
	Handler   func(ctx context.Context, userID int32, args json.RawMessage) (any, error)
}

// Registry is the closed tool set. Tools register at construction; nothing
// can be added afterwards.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry builds the registry with the nine tools wired to the given
// services.
func NewRegistry(deps Dependencies) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	r.register(newAddTaskTool(deps))
	r.register(newListTasksTool(deps))
	r.register(newUpdateTaskTool(deps))
	r.register(newCompleteTaskTool(deps))
	r.register(newDeleteTaskTool(deps))
	r.register(newSuggestTasksTool(deps))
	r.register(newScheduleReminderTool(deps))
	r.register(newGetAnalyticsTool(deps))
	r.register(newIdentifyPatternsTool(deps))
	return r
}

func (r *Registry) register(t *Tool) {
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Descriptors renders the registry for the completion request.
func (r *Registry) Descriptors() []ai.ToolDescriptor {
	out := make([]ai.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, ai.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// decodeArgs parses tool arguments into a typed struct. Malformed input
// fails before storage is touched.
func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return errors.InvalidArguments("malformed tool arguments: %v", err)
	}
	return nil
}

// schema helpers keep the tool definitions terse.

func objectSchema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(desc string, enum ...string) map[string]any {
	p := map[string]any{"type": "string", "description": desc}
	if len(enum) > 0 {
		p["enum"] = enum
	}
	return p
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}
