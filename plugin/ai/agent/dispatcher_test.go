package agent

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

// scriptedLLM replays a fixed sequence of completions.
type scriptedLLM struct {
	responses []*ai.ChatResponse
	calls     int
}

func (s *scriptedLLM) Chat(context.Context, []ai.Message) (string, error) {
	return "", nil
}

func (s *scriptedLLM) ChatWithTools(context.Context, []ai.Message, []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	if s.calls >= len(s.responses) {
		return &ai.ChatResponse{Content: "All done."}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

type failingLLM struct{}

func (failingLLM) Chat(context.Context, []ai.Message) (string, error) {
	return "", errors.ProviderUnavailable("model is down", nil)
}

func (failingLLM) ChatWithTools(context.Context, []ai.Message, []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	return nil, errors.ProviderUnavailable("model is down", nil)
}

// fakeTasks is an in-memory task.Service.
type fakeTasks struct {
	tasks  map[int32]*store.Task
	nextID int32
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[int32]*store.Task), nextID: 1}
}

func (f *fakeTasks) seed(userID int32, title string) *store.Task {
	t := &store.Task{ID: f.nextID, CreatorID: userID, Title: title, Priority: store.TaskPriorityMedium}
	f.nextID++
	f.tasks[t.ID] = t
	return t
}

func (f *fakeTasks) CreateTask(_ context.Context, userID int32, create *task.CreateTaskRequest) (*store.Task, error) {
	title := strings.TrimSpace(create.Title)
	if title == "" {
		return nil, errors.InvalidArguments("task title is required")
	}
	return f.seed(userID, title), nil
}

func (f *fakeTasks) GetTask(_ context.Context, userID int32, taskID int32) (*store.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, errors.NotFound("task %d not found", taskID)
	}
	if t.CreatorID != userID {
		return nil, errors.NotOwned("task %d belongs to another user", taskID)
	}
	return t, nil
}

func (f *fakeTasks) ListTasks(_ context.Context, userID int32, find *store.FindTask) ([]*store.Task, error) {
	list := make([]*store.Task, 0)
	for _, t := range f.tasks {
		if t.CreatorID != userID {
			continue
		}
		if find != nil && find.TitleLike != nil &&
			!strings.Contains(strings.ToLower(t.Title), strings.ToLower(*find.TitleLike)) {
			continue
		}
		list = append(list, t)
	}
	return list, nil
}

func (f *fakeTasks) UpdateTask(_ context.Context, userID int32, update *store.UpdateTask) (*store.Task, error) {
	t, err := f.GetTask(context.Background(), userID, update.ID)
	if err != nil {
		return nil, err
	}
	if update.Title != nil {
		t.Title = *update.Title
	}
	return t, nil
}

func (f *fakeTasks) CompleteTask(_ context.Context, userID int32, taskID int32) (*store.Task, error) {
	t, err := f.GetTask(context.Background(), userID, taskID)
	if err != nil {
		return nil, err
	}
	if !t.Completed {
		t.Completed = true
		now := time.Now().Unix()
		t.CompletedTs = &now
	}
	return t, nil
}

func (f *fakeTasks) DeleteTask(_ context.Context, userID int32, taskID int32) error {
	if _, err := f.GetTask(context.Background(), userID, taskID); err != nil {
		return err
	}
	delete(f.tasks, taskID)
	return nil
}

// fakeConversations is an in-memory conversation.Service.
type fakeConversations struct {
	conversations map[int32]*store.Conversation
	messages      map[int32][]*store.Message
	nextID        int32
	failAppend    bool
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		conversations: make(map[int32]*store.Conversation),
		messages:      make(map[int32][]*store.Message),
		nextID:        1,
	}
}

func (f *fakeConversations) EnsureConversation(_ context.Context, userID int32, conversationID *int32, firstMessage string) (*store.Conversation, error) {
	if conversationID != nil {
		c, ok := f.conversations[*conversationID]
		if !ok {
			return nil, errors.NotFound("conversation %d not found", *conversationID)
		}
		if c.CreatorID != userID {
			return nil, errors.NotOwned("conversation %d belongs to another user", *conversationID)
		}
		return c, nil
	}
	c := &store.Conversation{ID: f.nextID, CreatorID: userID, Title: firstMessage}
	f.nextID++
	f.conversations[c.ID] = c
	return c, nil
}

func (f *fakeConversations) GetConversation(ctx context.Context, userID int32, conversationID int32) (*store.Conversation, error) {
	return f.EnsureConversation(ctx, userID, &conversationID, "")
}

func (f *fakeConversations) ListConversations(_ context.Context, userID int32) ([]*store.Conversation, error) {
	list := make([]*store.Conversation, 0)
	for _, c := range f.conversations {
		if c.CreatorID == userID {
			list = append(list, c)
		}
	}
	return list, nil
}

func (f *fakeConversations) LoadHistory(_ context.Context, _ int32, conversationID int32, _ int) ([]*store.Message, error) {
	return f.messages[conversationID], nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, _ int32, conversationID int32, role store.MessageRole, content string, toolCallResults string) (*store.Message, error) {
	if f.failAppend {
		return nil, errors.PersistenceFailure("message insert failed", nil)
	}
	m := &store.Message{ConversationID: conversationID, Role: role, Content: content, ToolCallResults: toolCallResults}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	return m, nil
}

type stubSuggestions struct{}

func (stubSuggestions) Suggest(context.Context, int32) ([]*store.Suggestion, error) {
	return nil, nil
}

type stubReminders struct{}

func (stubReminders) Schedule(_ context.Context, userID int32, taskID int32, reminderType store.ReminderType, _ []string, _ *int64) (*store.Reminder, error) {
	return &store.Reminder{CreatorID: userID, TaskID: taskID, Type: reminderType}, nil
}

type stubInsights struct{}

func (stubInsights) ListTasks(context.Context, *store.FindTask) ([]*store.Task, error) {
	return nil, nil
}

func (stubInsights) ListTaskPatterns(context.Context, *store.FindTaskPattern) ([]*store.TaskPattern, error) {
	return nil, nil
}

func testProfile() *profile.Profile {
	p := &profile.Profile{Driver: "sqlite", DSN: "test.db"}
	_ = p.Validate()
	return p
}

func newTestDispatcher(llm ai.LLMService, tasks task.Service, conversations *fakeConversations) *Dispatcher {
	p := testProfile()
	registry := tools.NewRegistry(tools.Dependencies{
		Tasks:       tasks,
		Suggestions: stubSuggestions{},
		Reminders:   stubReminders{},
		Insights:    stubInsights{},
		Profile:     p,
	})
	return NewDispatcher(llm, registry, conversations, tasks, p, slog.Default())
}

func toolCall(id, name, args string) ai.ToolCall {
	return ai.ToolCall{ID: id, Type: "function", Function: ai.FunctionCall{Name: name, Arguments: args}}
}

func TestDispatchAddTask(t *testing.T) {
	tasks := newFakeTasks()
	conversations := newFakeConversations()
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{toolCall("c1", "add_task", `{"title":"buy groceries"}`)}},
		{Content: "I've added \"buy groceries\" to your list."},
	}}
	d := newTestDispatcher(llm, tasks, conversations)

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Add a task to buy groceries"})
	require.NoError(t, err)

	assert.Equal(t, "I've added \"buy groceries\" to your list.", resp.ResponseText)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tools.CallStatusSuccess, resp.ToolCalls[0].Status)
	require.Len(t, tasks.tasks, 1)

	// Both sides of the turn are persisted.
	persisted := conversations.messages[resp.ConversationID]
	require.Len(t, persisted, 2)
	assert.Equal(t, store.MessageRoleUser, persisted[0].Role)
	assert.Equal(t, "Add a task to buy groceries", persisted[0].Content)
	assert.Equal(t, store.MessageRoleAssistant, persisted[1].Role)
	assert.NotEmpty(t, persisted[1].ToolCallResults)
}

func TestDispatchEmptyMessage(t *testing.T) {
	d := newTestDispatcher(&scriptedLLM{}, newFakeTasks(), newFakeConversations())

	_, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "   "})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArguments))
}

func TestDispatchProviderFailureAbortsTurn(t *testing.T) {
	conversations := newFakeConversations()
	d := newTestDispatcher(failingLLM{}, newFakeTasks(), conversations)

	_, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "hello"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeProviderUnavailable))
	// Nothing is persisted for an aborted turn.
	assert.Empty(t, conversations.messages)
}

func TestDispatchForeignTaskRejected(t *testing.T) {
	tasks := newFakeTasks()
	other := tasks.seed(2, "their secret")
	conversations := newFakeConversations()
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{toolCall("c1", "delete_task", `{"task_id":1}`)}},
		{Content: ""},
	}}
	d := newTestDispatcher(llm, tasks, conversations)

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Delete task 1"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tools.CallStatusError, resp.ToolCalls[0].Status)
	assert.Equal(t, string(errors.ErrCodeNotOwned), resp.ToolCalls[0].ErrorCode)
	// The task is untouched and the user never sees a raw error code.
	assert.Contains(t, tasks.tasks, other.ID)
	assert.Contains(t, resp.ResponseText, "belongs to someone else")
	assert.NotContains(t, resp.ResponseText, "NOT_OWNED")
}

func TestDispatchResolvesUniqueTitleQuery(t *testing.T) {
	tasks := newFakeTasks()
	target := tasks.seed(1, "water the plants")
	tasks.seed(1, "file taxes")
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{toolCall("c1", "complete_task", `{"title_query":"plants"}`)}},
		{Content: "Done, the plants are watered."},
	}}
	d := newTestDispatcher(llm, tasks, newFakeConversations())

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "I watered the plants"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, tools.CallStatusSuccess, resp.ToolCalls[0].Status)
	assert.True(t, tasks.tasks[target.ID].Completed)
}

func TestDispatchAmbiguousTitleAsksForClarification(t *testing.T) {
	tasks := newFakeTasks()
	tasks.seed(1, "weekly report")
	tasks.seed(1, "monthly report")
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{toolCall("c1", "complete_task", `{"title_query":"report"}`)}},
	}}
	d := newTestDispatcher(llm, tasks, newFakeConversations())

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Finish the report"})
	require.NoError(t, err)

	// No tool executes; the whole round collapses into a question.
	assert.Empty(t, resp.ToolCalls)
	assert.Contains(t, resp.ResponseText, "2 tasks matching \"report\"")
	assert.Contains(t, resp.ResponseText, "Which one did you mean?")
	for _, tsk := range tasks.tasks {
		assert.False(t, tsk.Completed)
	}
	assert.Equal(t, 1, llm.calls, "no further round after the short-circuit")
}

func TestDispatchUnmatchedTitleReportsNotFound(t *testing.T) {
	tasks := newFakeTasks()
	tasks.seed(1, "water the plants")
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{toolCall("c1", "complete_task", `{"title_query":"yoga class"}`)}},
		{Content: ""},
	}}
	d := newTestDispatcher(llm, tasks, newFakeConversations())

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Done with yoga"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, string(errors.ErrCodeNotFound), resp.ToolCalls[0].ErrorCode)
	assert.Contains(t, resp.ResponseText, "couldn't find that task")
}

func TestDispatchRejectsSecondMutationOfSameEntity(t *testing.T) {
	tasks := newFakeTasks()
	tasks.seed(1, "pay rent")
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{
			toolCall("c1", "complete_task", `{"task_id":1}`),
			toolCall("c2", "delete_task", `{"task_id":1}`),
		}},
		{Content: "Handled."},
	}}
	d := newTestDispatcher(llm, tasks, newFakeConversations())

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Complete and delete pay rent"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, tools.CallStatusSuccess, resp.ToolCalls[0].Status)
	assert.Equal(t, tools.CallStatusError, resp.ToolCalls[1].Status)
	assert.Contains(t, resp.ToolCalls[1].Error, "already modified in this turn")
	// The first mutation stands; the second never ran.
	assert.True(t, tasks.tasks[1].Completed)
	assert.Contains(t, tasks.tasks, int32(1))
}

func TestDispatchPartialFailureKeepsSiblings(t *testing.T) {
	tasks := newFakeTasks()
	tasks.seed(1, "pay rent")
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{
			toolCall("c1", "complete_task", `{"task_id":1}`),
			toolCall("c2", "delete_task", `{"task_id":99}`),
		}},
		{Content: "Partly done."},
	}}
	d := newTestDispatcher(llm, tasks, newFakeConversations())

	resp, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "Complete rent, delete old task"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, tools.CallStatusSuccess, resp.ToolCalls[0].Status)
	assert.Equal(t, tools.CallStatusError, resp.ToolCalls[1].Status)
	assert.Equal(t, string(errors.ErrCodeNotFound), resp.ToolCalls[1].ErrorCode)
	assert.True(t, tasks.tasks[1].Completed)
}

func TestDispatchPersistenceFailureFailsTurn(t *testing.T) {
	conversations := newFakeConversations()
	conversations.failAppend = true
	llm := &scriptedLLM{responses: []*ai.ChatResponse{{Content: "hello"}}}
	d := newTestDispatcher(llm, newFakeTasks(), conversations)

	_, err := d.Dispatch(context.Background(), &TurnRequest{UserID: 1, Message: "hi"})
	assert.True(t, errors.IsCode(err, errors.ErrCodePersistenceFailure))
}

func TestDispatchContinuesExistingConversation(t *testing.T) {
	tasks := newFakeTasks()
	conversations := newFakeConversations()
	llm := &scriptedLLM{responses: []*ai.ChatResponse{
		{Content: "Hello!"},
		{Content: "Hello again!"},
	}}
	d := newTestDispatcher(llm, tasks, conversations)
	ctx := context.Background()

	first, err := d.Dispatch(ctx, &TurnRequest{UserID: 1, Message: "hi"})
	require.NoError(t, err)
	second, err := d.Dispatch(ctx, &TurnRequest{UserID: 1, ConversationID: &first.ConversationID, Message: "hi again"})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, conversations.messages[first.ConversationID], 4)
}
