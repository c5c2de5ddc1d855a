package agent

import (
	"context"
	"encoding/json"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

// titleRef is the shape of a tool call referencing a task by description
// instead of id.
type titleRef struct {
	TaskID     *int32 `json:"task_id"`
	TitleQuery string `json:"title_query"`
}

// resolver turns non-unique task descriptions into concrete ids. The rules
// are deterministic and enforced in code, not delegated to the model:
// zero matches is NotFound, one match resolves, two or more short-circuit the
// turn into a clarification question with no tool executed.
type resolver struct {
	tasks task.Service
}

// resolveArgs rewrites title_query references into task_id. It returns the
// rewritten arguments, or the candidate list when the reference is ambiguous.
func (r *resolver) resolveArgs(ctx context.Context, userID int32, args json.RawMessage) (json.RawMessage, []*store.Task, error) {
	var ref titleRef
	if err := json.Unmarshal(args, &ref); err != nil {
		return args, nil, nil // malformed args fail later in validation
	}
	if ref.TaskID != nil || ref.TitleQuery == "" {
		return args, nil, nil
	}

	matches, err := r.tasks.ListTasks(ctx, userID, &store.FindTask{TitleLike: &ref.TitleQuery})
	if err != nil {
		return nil, nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil, errors.NotFound("no task matches %q", ref.TitleQuery)
	case 1:
		return injectTaskID(args, matches[0].ID), nil, nil
	default:
		return nil, matches, errors.AmbiguousReference(ref.TitleQuery)
	}
}

func injectTaskID(args json.RawMessage, taskID int32) json.RawMessage {
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return args
	}
	m["task_id"] = taskID
	delete(m, "title_query")
	rewritten, err := json.Marshal(m)
	if err != nil {
		return args
	}
	return rewritten
}
