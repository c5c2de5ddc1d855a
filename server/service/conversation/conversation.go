// Package conversation implements the conversation store adapter. State lives
// entirely in the database: every turn cold-reads its history window and
// appends its messages, so any server instance can handle any turn.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/store"
)

const titleMaxLen = 64

// Store is the slice of the store the adapter needs.
type Store interface {
	CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error)
	GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error)
	ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error)
	UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error)
	CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error)
}

// Service exposes user-scoped conversation and message operations.
type Service interface {
	// EnsureConversation resolves an existing conversation or lazily creates
	// one when conversationID is nil. The title of a new conversation is
	// derived from the first message.
	EnsureConversation(ctx context.Context, userID int32, conversationID *int32, firstMessage string) (*store.Conversation, error)
	GetConversation(ctx context.Context, userID int32, conversationID int32) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID int32) ([]*store.Conversation, error)
	// LoadHistory returns the most recent maxTurns messages in chronological
	// order. Reading never mutates stored state.
	LoadHistory(ctx context.Context, userID int32, conversationID int32, maxTurns int) ([]*store.Message, error)
	AppendMessage(ctx context.Context, userID int32, conversationID int32, role store.MessageRole, content string, toolCallResults string) (*store.Message, error)
}

type service struct {
	store Store
}

// NewService creates a store-backed conversation service.
func NewService(st Store) Service {
	return &service{store: st}
}

func (s *service) EnsureConversation(ctx context.Context, userID int32, conversationID *int32, firstMessage string) (*store.Conversation, error) {
	if conversationID != nil {
		return s.GetConversation(ctx, userID, *conversationID)
	}

	conversation, err := s.store.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: userID,
		Title:     deriveTitle(firstMessage),
	})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to create conversation", err)
	}
	return conversation, nil
}

func (s *service) GetConversation(ctx context.Context, userID int32, conversationID int32) (*store.Conversation, error) {
	conversation, err := s.store.GetConversation(ctx, &store.FindConversation{ID: &conversationID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to get conversation", err)
	}
	if conversation == nil {
		return nil, errors.NotFound("conversation %d not found", conversationID)
	}
	if conversation.CreatorID != userID {
		return nil, errors.NotOwned("conversation %d belongs to another user", conversationID)
	}
	return conversation, nil
}

func (s *service) ListConversations(ctx context.Context, userID int32) ([]*store.Conversation, error) {
	conversations, err := s.store.ListConversations(ctx, &store.FindConversation{CreatorID: &userID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to list conversations", err)
	}
	return conversations, nil
}

func (s *service) LoadHistory(ctx context.Context, userID int32, conversationID int32, maxTurns int) ([]*store.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.store.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load history", err)
	}
	if maxTurns > 0 && len(messages) > maxTurns {
		messages = messages[len(messages)-maxTurns:]
	}
	return messages, nil
}

func (s *service) AppendMessage(ctx context.Context, userID int32, conversationID int32, role store.MessageRole, content string, toolCallResults string) (*store.Message, error) {
	message, err := s.store.CreateMessage(ctx, &store.Message{
		UID:             shortuuid.New(),
		ConversationID:  conversationID,
		CreatorID:       userID,
		Role:            role,
		Content:         content,
		ToolCallResults: toolCallResults,
	})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to append message", err)
	}

	now := time.Now().Unix()
	if _, err := s.store.UpdateConversation(ctx, &store.UpdateConversation{ID: conversationID, UpdatedTs: &now}); err != nil {
		return nil, errors.PersistenceFailure("failed to touch conversation", err)
	}
	return message, nil
}

func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "New conversation"
	}
	runes := []rune(title)
	if len(runes) > titleMaxLen {
		title = string(runes[:titleMaxLen]) + "..."
	}
	return title
}
