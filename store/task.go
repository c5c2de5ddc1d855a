package store

// TaskPriority is the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Task is a user-owned todo item. Rows are only ever written through the
// tool boundary; every query is scoped by CreatorID.
type Task struct {
	ID          int32
	UID         string
	CreatorID   int32
	Title       string
	Description string
	Completed   bool
	Priority    TaskPriority
	DueTs       *int64
	CompletedTs *int64
	CreatedTs   int64
	UpdatedTs   int64
}

type FindTask struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	Completed *bool
	Priority  *TaskPriority
	DueBefore *int64
	// TitleLike filters by case-insensitive substring match on title.
	TitleLike *string
	Limit     *int
	Offset    *int
}

type UpdateTask struct {
	ID          int32
	Title       *string
	Description *string
	Completed   *bool
	Priority    *TaskPriority
	DueTs       *int64
	CompletedTs *int64
	UpdatedTs   *int64
}

type DeleteTask struct {
	ID int32
}
