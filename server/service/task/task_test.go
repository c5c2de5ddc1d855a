package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/store"
)

// memoryStore is an in-memory Store for tests.
type memoryStore struct {
	tasks  map[int32]*store.Task
	nextID int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tasks: make(map[int32]*store.Task), nextID: 1}
}

func (m *memoryStore) CreateTask(_ context.Context, create *store.Task) (*store.Task, error) {
	create.ID = m.nextID
	m.nextID++
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now
	copied := *create
	m.tasks[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) GetTask(_ context.Context, find *store.FindTask) (*store.Task, error) {
	if find.ID != nil {
		if t, ok := m.tasks[*find.ID]; ok {
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
	list := make([]*store.Task, 0)
	for _, t := range m.tasks {
		if find.CreatorID != nil && t.CreatorID != *find.CreatorID {
			continue
		}
		if find.Completed != nil && t.Completed != *find.Completed {
			continue
		}
		copied := *t
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryStore) UpdateTask(_ context.Context, update *store.UpdateTask) (*store.Task, error) {
	t, ok := m.tasks[update.ID]
	if !ok {
		return nil, errors.NotFound("task %d not found", update.ID)
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Completed != nil {
		t.Completed = *update.Completed
	}
	if update.Priority != nil {
		t.Priority = *update.Priority
	}
	if update.CompletedTs != nil {
		t.CompletedTs = update.CompletedTs
	}
	t.UpdatedTs = time.Now().Unix()
	copied := *t
	return &copied, nil
}

func (m *memoryStore) DeleteTask(_ context.Context, del *store.DeleteTask) error {
	if _, ok := m.tasks[del.ID]; !ok {
		return errors.NotFound("task %d not found", del.ID)
	}
	delete(m.tasks, del.ID)
	return nil
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "  buy groceries  "})
	require.NoError(t, err)
	assert.Equal(t, "buy groceries", created.Title)
	assert.Equal(t, store.TaskPriorityMedium, created.Priority)
	assert.Equal(t, int32(1), created.CreatorID)

	_, err = svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "   "})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	_, err = svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "x", Priority: "urgent"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestGetTaskOwnership(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "mine"})
	require.NoError(t, err)

	// Owner reads it back.
	got, err := svc.GetTask(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Another user gets NotOwned, not NotFound.
	_, err = svc.GetTask(ctx, 2, created.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotOwned))

	// A missing id is NotFound.
	_, err = svc.GetTask(ctx, 1, 999)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestCompleteTaskIdempotent(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "water plants"})
	require.NoError(t, err)

	first, err := svc.CompleteTask(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, first.Completed)
	require.NotNil(t, first.CompletedTs)

	// A second completion succeeds and changes nothing.
	second, err := svc.CompleteTask(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, second.Completed)
	assert.Equal(t, *first.CompletedTs, *second.CompletedTs)
	assert.Equal(t, first.UpdatedTs, second.UpdatedTs)
}

func TestDeleteTaskNotOwnedLeavesTask(t *testing.T) {
	st := newMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "secret"})
	require.NoError(t, err)

	err = svc.DeleteTask(ctx, 2, created.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotOwned))

	still, err := svc.GetTask(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", still.Title)
}

func TestUpdateTaskValidatesPriority(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, 1, &CreateTaskRequest{Title: "report"})
	require.NoError(t, err)

	bad := store.TaskPriority("asap")
	_, err = svc.UpdateTask(ctx, 1, &store.UpdateTask{ID: created.ID, Priority: &bad})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))

	high := store.TaskPriorityHigh
	updated, err := svc.UpdateTask(ctx, 1, &store.UpdateTask{ID: created.ID, Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, store.TaskPriorityHigh, updated.Priority)
}
