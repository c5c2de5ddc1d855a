package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/store"
)

type memoryStore struct {
	conversations map[int32]*store.Conversation
	messages      []*store.Message
	nextConvID    int32
	nextMsgID     int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		conversations: make(map[int32]*store.Conversation),
		nextConvID:    1,
		nextMsgID:     1,
	}
}

func (m *memoryStore) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	create.ID = m.nextConvID
	m.nextConvID++
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now
	copied := *create
	m.conversations[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) GetConversation(_ context.Context, find *store.FindConversation) (*store.Conversation, error) {
	if find.ID != nil {
		if c, ok := m.conversations[*find.ID]; ok {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	list := make([]*store.Conversation, 0)
	for _, c := range m.conversations {
		if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
			continue
		}
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		copied := *c
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryStore) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	c, ok := m.conversations[update.ID]
	if !ok {
		return nil, errors.NotFound("conversation %d not found", update.ID)
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.UpdatedTs != nil {
		c.UpdatedTs = *update.UpdatedTs
	}
	copied := *c
	return &copied, nil
}

func (m *memoryStore) CreateMessage(_ context.Context, create *store.Message) (*store.Message, error) {
	create.ID = m.nextMsgID
	m.nextMsgID++
	create.CreatedTs = time.Now().Unix()
	copied := *create
	m.messages = append(m.messages, &copied)
	return create, nil
}

func (m *memoryStore) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	list := make([]*store.Message, 0)
	for _, msg := range m.messages {
		if find.ConversationID != nil && msg.ConversationID != *find.ConversationID {
			continue
		}
		copied := *msg
		list = append(list, &copied)
	}
	return list, nil
}

func TestEnsureConversationLazyCreate(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	conv, err := svc.EnsureConversation(ctx, 1, nil, "Add a task to buy groceries")
	require.NoError(t, err)
	assert.Equal(t, "Add a task to buy groceries", conv.Title)
	assert.Equal(t, int32(1), conv.CreatorID)

	// Passing the id back resolves the same conversation.
	same, err := svc.EnsureConversation(ctx, 1, &conv.ID, "anything")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, same.ID)
}

func TestEnsureConversationTruncatesLongTitle(t *testing.T) {
	svc := NewService(newMemoryStore())

	long := strings.Repeat("a", 200)
	conv, err := svc.EnsureConversation(context.Background(), 1, nil, long)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 64)+"...", conv.Title)
}

func TestConversationOwnership(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	conv, err := svc.EnsureConversation(ctx, 1, nil, "hello")
	require.NoError(t, err)

	_, err = svc.GetConversation(ctx, 2, conv.ID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotOwned))

	missing := int32(999)
	_, err = svc.EnsureConversation(ctx, 1, &missing, "hello")
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestLoadHistoryReadIdempotence(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	conv, err := svc.EnsureConversation(ctx, 1, nil, "hi")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three"} {
		_, err := svc.AppendMessage(ctx, 1, conv.ID, store.MessageRoleUser, content, "")
		require.NoError(t, err)
	}

	first, err := svc.LoadHistory(ctx, 1, conv.ID, 10)
	require.NoError(t, err)
	second, err := svc.LoadHistory(ctx, 1, conv.ID, 10)
	require.NoError(t, err)

	require.Len(t, first, 3)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestLoadHistoryWindow(t *testing.T) {
	svc := NewService(newMemoryStore())
	ctx := context.Background()

	conv, err := svc.EnsureConversation(ctx, 1, nil, "hi")
	require.NoError(t, err)
	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := svc.AppendMessage(ctx, 1, conv.ID, store.MessageRoleUser, content, "")
		require.NoError(t, err)
	}

	window, err := svc.LoadHistory(ctx, 1, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	// The window keeps the most recent messages, in order.
	assert.Equal(t, "three", window[0].Content)
	assert.Equal(t, "four", window[1].Content)
}
