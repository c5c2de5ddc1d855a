package store

// Suggestion is a ranked task proposal surfaced to the user. The terminal
// states accepted and dismissed are mutually exclusive and immutable once set.
type Suggestion struct {
	ID          int32
	CreatorID   int32
	Title       string
	Description string
	Confidence  float64
	PatternID   *int32
	Reason      string
	IsAccepted  bool
	IsDismissed bool
	CreatedTs   int64
}

type FindSuggestion struct {
	ID           *int32
	CreatorID    *int32
	PatternID    *int32
	IsAccepted   *bool
	IsDismissed  *bool
	CreatedAfter *int64
}

type UpdateSuggestion struct {
	ID          int32
	IsAccepted  *bool
	IsDismissed *bool
}
