package store

import (
	"context"
	"fmt"
	"time"

	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Conversation rows are read on every chat turn; a short TTL cache keeps
	// the cold-read-per-request design cheap without holding mutable state.
	conversationCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
	}

	return &Store{
		driver:            driver,
		profile:           profile,
		conversationCache: cache.New(cacheConfig),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.conversationCache.Close()
	return s.driver.Close()
}

// Task model.

func (s *Store) CreateTask(ctx context.Context, create *Task) (*Task, error) {
	return s.driver.CreateTask(ctx, create)
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	return s.driver.ListTasks(ctx, find)
}

func (s *Store) GetTask(ctx context.Context, find *FindTask) (*Task, error) {
	tasks, err := s.driver.ListTasks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return tasks[0], nil
}

func (s *Store) UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error) {
	return s.driver.UpdateTask(ctx, update)
}

func (s *Store) DeleteTask(ctx context.Context, delete *DeleteTask) error {
	return s.driver.DeleteTask(ctx, delete)
}

// Conversation model.

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	conversation, err := s.driver.CreateConversation(ctx, create)
	if err != nil {
		return nil, err
	}
	s.conversationCache.Set(conversationCacheKey(conversation.ID), conversation)
	return conversation, nil
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	if find.ID != nil && find.UID == nil && find.CreatorID == nil && find.Pinned == nil {
		if v, ok := s.conversationCache.Get(conversationCacheKey(*find.ID)); ok {
			return v.(*Conversation), nil
		}
	}
	conversations, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(conversations) == 0 {
		return nil, nil
	}
	conversation := conversations[0]
	s.conversationCache.Set(conversationCacheKey(conversation.ID), conversation)
	return conversation, nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	conversation, err := s.driver.UpdateConversation(ctx, update)
	if err != nil {
		return nil, err
	}
	s.conversationCache.Set(conversationCacheKey(conversation.ID), conversation)
	return conversation, nil
}

// Message model. Append-only.

func (s *Store) CreateMessage(ctx context.Context, create *Message) (*Message, error) {
	return s.driver.CreateMessage(ctx, create)
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

// TaskPattern model.

func (s *Store) CreateTaskPattern(ctx context.Context, create *TaskPattern) (*TaskPattern, error) {
	return s.driver.CreateTaskPattern(ctx, create)
}

func (s *Store) ListTaskPatterns(ctx context.Context, find *FindTaskPattern) ([]*TaskPattern, error) {
	return s.driver.ListTaskPatterns(ctx, find)
}

func (s *Store) DeleteTaskPatterns(ctx context.Context, delete *DeleteTaskPattern) error {
	return s.driver.DeleteTaskPatterns(ctx, delete)
}

// Suggestion model.

func (s *Store) CreateSuggestion(ctx context.Context, create *Suggestion) (*Suggestion, error) {
	return s.driver.CreateSuggestion(ctx, create)
}

func (s *Store) ListSuggestions(ctx context.Context, find *FindSuggestion) ([]*Suggestion, error) {
	return s.driver.ListSuggestions(ctx, find)
}

func (s *Store) UpdateSuggestion(ctx context.Context, update *UpdateSuggestion) (*Suggestion, error) {
	return s.driver.UpdateSuggestion(ctx, update)
}

// Reminder model.

func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	return s.driver.CreateReminder(ctx, create)
}

func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

func (s *Store) UpdateReminder(ctx context.Context, update *UpdateReminder) (*Reminder, error) {
	return s.driver.UpdateReminder(ctx, update)
}

func (s *Store) DeleteReminder(ctx context.Context, delete *DeleteReminder) error {
	return s.driver.DeleteReminder(ctx, delete)
}

func conversationCacheKey(id int32) string {
	return fmt.Sprintf("conversation:%d", id)
}
