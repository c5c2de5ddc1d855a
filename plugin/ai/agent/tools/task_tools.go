package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

// taskPayload is the wire shape of a task inside tool results.
type taskPayload struct {
	ID          int32  `json:"id"`
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	Priority    string `json:"priority"`
	DueTs       *int64 `json:"due_ts,omitempty"`
	CompletedTs *int64 `json:"completed_ts,omitempty"`
	CreatedTs   int64  `json:"created_ts"`
}

func toTaskPayload(t *store.Task) taskPayload {
	return taskPayload{
		ID:          t.ID,
		UID:         t.UID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		DueTs:       t.DueTs,
		CompletedTs: t.CompletedTs,
		CreatedTs:   t.CreatedTs,
	}
}

func taskEntityRef(args json.RawMessage) (string, bool) {
	var ref struct {
		TaskID *int32 `json:"task_id"`
	}
	if err := json.Unmarshal(args, &ref); err != nil || ref.TaskID == nil {
		return "", false
	}
	return fmt.Sprintf("task:%d", *ref.TaskID), true
}

func newAddTaskTool(deps Dependencies) *Tool {
	type addTaskArgs struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		DueTs       *int64 `json:"due_ts"`
	}
	return &Tool{
		Name:        "add_task",
		Description: "Create a new task for the user. Not idempotent: calling twice creates two tasks.",
		Parameters: objectSchema([]string{"title"}, map[string]any{
			"title":       stringProp("Short task title"),
			"description": stringProp("Optional longer description"),
			"priority":    stringProp("Task priority", "low", "medium", "high"),
			"due_ts":      intProp("Due date as a Unix timestamp in seconds"),
		}),
		Mutating: true,
		EntityRef: func(args json.RawMessage) (string, bool) {
			var a addTaskArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return "", false
			}
			return "task:new:" + strings.ToLower(strings.TrimSpace(a.Title)), true
		},
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a addTaskArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			created, err := deps.Tasks.CreateTask(ctx, userID, &task.CreateTaskRequest{
				Title:       a.Title,
				Description: a.Description,
				Priority:    store.TaskPriority(a.Priority),
				DueTs:       a.DueTs,
			})
			if err != nil {
				return nil, err
			}
			return toTaskPayload(created), nil
		},
	}
}

func newListTasksTool(deps Dependencies) *Tool {
	type listTasksArgs struct {
		Completed     *bool  `json:"completed"`
		Priority      string `json:"priority"`
		DueBefore     *int64 `json:"due_before"`
		TitleContains string `json:"title_contains"`
		Limit         *int   `json:"limit"`
	}
	return &Tool{
		Name:        "list_tasks",
		Description: "List the user's tasks, optionally filtered by completion, priority, due date, or a title substring.",
		Parameters: objectSchema(nil, map[string]any{
			"completed":      boolProp("Filter by completion state"),
			"priority":       stringProp("Filter by priority", "low", "medium", "high"),
			"due_before":     intProp("Only tasks due at or before this Unix timestamp"),
			"title_contains": stringProp("Case-insensitive title substring"),
			"limit":          intProp("Maximum number of tasks to return"),
		}),
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a listTasksArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			find := &store.FindTask{
				Completed: a.Completed,
				DueBefore: a.DueBefore,
				Limit:     a.Limit,
			}
			if a.Priority != "" {
				p := store.TaskPriority(a.Priority)
				find.Priority = &p
			}
			if a.TitleContains != "" {
				find.TitleLike = &a.TitleContains
			}
			tasks, err := deps.Tasks.ListTasks(ctx, userID, find)
			if err != nil {
				return nil, err
			}
			out := make([]taskPayload, 0, len(tasks))
			for _, t := range tasks {
				out = append(out, toTaskPayload(t))
			}
			return map[string]any{"tasks": out, "count": len(out)}, nil
		},
	}
}

func newUpdateTaskTool(deps Dependencies) *Tool {
	type updateTaskArgs struct {
		TaskID      *int32  `json:"task_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Priority    *string `json:"priority"`
		DueTs       *int64  `json:"due_ts"`
	}
	return &Tool{
		Name:        "update_task",
		Description: "Update fields of an existing task owned by the user.",
		Parameters: objectSchema(nil, map[string]any{
			"task_id":     intProp("ID of the task to update"),
			"title_query": stringProp("Words from the task's title, when its id is unknown"),
			"title":       stringProp("New title"),
			"description": stringProp("New description"),
			"priority":    stringProp("New priority", "low", "medium", "high"),
			"due_ts":      intProp("New due date as a Unix timestamp in seconds"),
		}),
		Mutating:  true,
		EntityRef: taskEntityRef,
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a updateTaskArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			if a.TaskID == nil {
				return nil, invalidMissing("task_id")
			}
			update := &store.UpdateTask{
				ID:          *a.TaskID,
				Title:       a.Title,
				Description: a.Description,
				DueTs:       a.DueTs,
			}
			if a.Priority != nil {
				p := store.TaskPriority(*a.Priority)
				update.Priority = &p
			}
			updated, err := deps.Tasks.UpdateTask(ctx, userID, update)
			if err != nil {
				return nil, err
			}
			return toTaskPayload(updated), nil
		},
	}
}

func newCompleteTaskTool(deps Dependencies) *Tool {
	type completeTaskArgs struct {
		TaskID *int32 `json:"task_id"`
	}
	return &Tool{
		Name:        "complete_task",
		Description: "Mark a task as completed. Completing an already-completed task succeeds without changing anything.",
		Parameters: objectSchema(nil, map[string]any{
			"task_id":     intProp("ID of the task to complete"),
			"title_query": stringProp("Words from the task's title, when its id is unknown"),
		}),
		Mutating:  true,
		EntityRef: taskEntityRef,
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a completeTaskArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			if a.TaskID == nil {
				return nil, invalidMissing("task_id")
			}
			completed, err := deps.Tasks.CompleteTask(ctx, userID, *a.TaskID)
			if err != nil {
				return nil, err
			}
			return toTaskPayload(completed), nil
		},
	}
}

func newDeleteTaskTool(deps Dependencies) *Tool {
	type deleteTaskArgs struct {
		TaskID *int32 `json:"task_id"`
	}
	return &Tool{
		Name:        "delete_task",
		Description: "Permanently delete a task owned by the user.",
		Parameters: objectSchema(nil, map[string]any{
			"task_id":     intProp("ID of the task to delete"),
			"title_query": stringProp("Words from the task's title, when its id is unknown"),
		}),
		Mutating:  true,
		EntityRef: taskEntityRef,
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a deleteTaskArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			if a.TaskID == nil {
				return nil, invalidMissing("task_id")
			}
			if err := deps.Tasks.DeleteTask(ctx, userID, *a.TaskID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "task_id": *a.TaskID, "deleted_at": time.Now().Unix()}, nil
		},
	}
}
