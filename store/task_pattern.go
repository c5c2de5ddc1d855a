package store

// PatternType classifies a recurring behavior signal.
type PatternType string

const (
	PatternTypeRecurring PatternType = "recurring"
	PatternTypeDeadline  PatternType = "deadline"
	PatternTypeBehavior  PatternType = "behavior"
	PatternTypeSeasonal  PatternType = "seasonal"
	PatternTypeTemporal  PatternType = "temporal"
)

// TaskPattern is a statistically recurring behavior derived from a user's
// task history. Patterns are written only by the batch recognizer, never
// inline during a chat turn.
type TaskPattern struct {
	ID               int32
	CreatorID        int32
	Type             PatternType
	NormalizedTitle  string
	Frequency        string
	Confidence       float64
	Attributes       string // JSON
	IsActive         bool
	LastOccurrenceTs *int64
	NextExpectedTs   *int64
	CreatedTs        int64
	UpdatedTs        int64
}

type FindTaskPattern struct {
	ID        *int32
	CreatorID *int32
	Type      *PatternType
	IsActive  *bool
}

// DeleteTaskPattern removes all patterns for a user. The recognizer rewrites
// a user's pattern set wholesale on each recompute, which keeps the sweep
// safely re-executable after a crash.
type DeleteTaskPattern struct {
	CreatorID int32
}
