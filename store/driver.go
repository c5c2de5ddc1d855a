package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Task model related methods.
	CreateTask(ctx context.Context, create *Task) (*Task, error)
	ListTasks(ctx context.Context, find *FindTask) ([]*Task, error)
	UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error)
	DeleteTask(ctx context.Context, delete *DeleteTask) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)

	// Message model related methods. Messages are append-only: there is no
	// update method by design.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)

	// TaskPattern model related methods.
	CreateTaskPattern(ctx context.Context, create *TaskPattern) (*TaskPattern, error)
	ListTaskPatterns(ctx context.Context, find *FindTaskPattern) ([]*TaskPattern, error)
	DeleteTaskPatterns(ctx context.Context, delete *DeleteTaskPattern) error

	// Suggestion model related methods.
	CreateSuggestion(ctx context.Context, create *Suggestion) (*Suggestion, error)
	ListSuggestions(ctx context.Context, find *FindSuggestion) ([]*Suggestion, error)
	UpdateSuggestion(ctx context.Context, update *UpdateSuggestion) (*Suggestion, error)

	// Reminder model related methods.
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error)
	UpdateReminder(ctx context.Context, update *UpdateReminder) (*Reminder, error)
	DeleteReminder(ctx context.Context, delete *DeleteReminder) error
}
