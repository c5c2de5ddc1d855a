// Package task implements the task domain service. All operations are scoped
// to the acting user; ownership is verified before any mutation.
package task

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/store"
)

// Store is the slice of the store the task service needs.
type Store interface {
	CreateTask(ctx context.Context, create *store.Task) (*store.Task, error)
	GetTask(ctx context.Context, find *store.FindTask) (*store.Task, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error)
	DeleteTask(ctx context.Context, delete *store.DeleteTask) error
}

// Service exposes user-scoped task operations to the tool layer and the API.
type Service interface {
	CreateTask(ctx context.Context, userID int32, create *CreateTaskRequest) (*store.Task, error)
	GetTask(ctx context.Context, userID int32, taskID int32) (*store.Task, error)
	ListTasks(ctx context.Context, userID int32, find *store.FindTask) ([]*store.Task, error)
	UpdateTask(ctx context.Context, userID int32, update *store.UpdateTask) (*store.Task, error)
	CompleteTask(ctx context.Context, userID int32, taskID int32) (*store.Task, error)
	DeleteTask(ctx context.Context, userID int32, taskID int32) error
}

// CreateTaskRequest carries the caller-settable fields of a new task.
type CreateTaskRequest struct {
	Title       string
	Description string
	Priority    store.TaskPriority
	DueTs       *int64
}

type service struct {
	store Store
}

// NewService creates a store-backed task service.
func NewService(st Store) Service {
	return &service{store: st}
}

func (s *service) CreateTask(ctx context.Context, userID int32, create *CreateTaskRequest) (*store.Task, error) {
	title := strings.TrimSpace(create.Title)
	if title == "" {
		return nil, errors.InvalidArguments("task title is required")
	}
	priority := create.Priority
	if priority == "" {
		priority = store.TaskPriorityMedium
	}
	switch priority {
	case store.TaskPriorityLow, store.TaskPriorityMedium, store.TaskPriorityHigh:
	default:
		return nil, errors.InvalidArguments("invalid priority %q", priority)
	}

	task, err := s.store.CreateTask(ctx, &store.Task{
		UID:         shortuuid.New(),
		CreatorID:   userID,
		Title:       title,
		Description: create.Description,
		Priority:    priority,
		DueTs:       create.DueTs,
	})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to create task", err)
	}
	return task, nil
}

func (s *service) GetTask(ctx context.Context, userID int32, taskID int32) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, &store.FindTask{ID: &taskID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to get task", err)
	}
	if task == nil {
		return nil, errors.NotFound("task %d not found", taskID)
	}
	if task.CreatorID != userID {
		return nil, errors.NotOwned("task %d belongs to another user", taskID)
	}
	return task, nil
}

func (s *service) ListTasks(ctx context.Context, userID int32, find *store.FindTask) ([]*store.Task, error) {
	if find == nil {
		find = &store.FindTask{}
	}
	// The creator filter is forced here so no caller can widen the scope.
	find.CreatorID = &userID
	tasks, err := s.store.ListTasks(ctx, find)
	if err != nil {
		return nil, errors.PersistenceFailure("failed to list tasks", err)
	}
	return tasks, nil
}

func (s *service) UpdateTask(ctx context.Context, userID int32, update *store.UpdateTask) (*store.Task, error) {
	if _, err := s.GetTask(ctx, userID, update.ID); err != nil {
		return nil, err
	}
	if v := update.Priority; v != nil {
		switch *v {
		case store.TaskPriorityLow, store.TaskPriorityMedium, store.TaskPriorityHigh:
		default:
			return nil, errors.InvalidArguments("invalid priority %q", *v)
		}
	}
	task, err := s.store.UpdateTask(ctx, update)
	if err != nil {
		return nil, errors.PersistenceFailure("failed to update task", err)
	}
	return task, nil
}

// CompleteTask marks a task done. Completing an already-completed task is a
// no-op that returns the current row unchanged.
func (s *service) CompleteTask(ctx context.Context, userID int32, taskID int32) (*store.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}

	completed := true
	now := time.Now().Unix()
	updated, err := s.store.UpdateTask(ctx, &store.UpdateTask{
		ID:          taskID,
		Completed:   &completed,
		CompletedTs: &now,
	})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to complete task", err)
	}
	return updated, nil
}

func (s *service) DeleteTask(ctx context.Context, userID int32, taskID int32) error {
	if _, err := s.GetTask(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, &store.DeleteTask{ID: taskID}); err != nil {
		return errors.PersistenceFailure("failed to delete task", err)
	}
	return nil
}
