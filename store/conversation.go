package store

// Conversation groups an ordered message log for one user. Conversations are
// created lazily on the first message and never deleted by the core.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	Pinned    bool
	CreatedTs int64
	UpdatedTs int64
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	Pinned    *bool
}

type UpdateConversation struct {
	ID        int32
	Title     *string
	Pinned    *bool
	UpdatedTs *int64
}

// MessageRole is the author role of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one entry of the append-only conversation log. Messages are
// immutable once written; ToolCallResults is the JSON audit record of every
// tool invocation triggered by the turn that produced this message.
type Message struct {
	ID              int32
	UID             string
	ConversationID  int32
	CreatorID       int32
	Role            MessageRole
	Content         string
	ToolCallResults string
	CreatedTs       int64
}

type FindMessage struct {
	ID             *int32
	UID            *string
	ConversationID *int32
	CreatorID      *int32
	Limit          *int
}
