package store

// ReminderType keys the lead-time policy used to compute the delivery time.
type ReminderType string

const (
	ReminderTypeDeadline ReminderType = "deadline"
	ReminderTypePriority ReminderType = "priority"
	ReminderTypeFollowup ReminderType = "followup"
	ReminderTypePattern  ReminderType = "pattern"
)

// DeliveryStatus is the lifecycle state of a reminder.
// pending -> sent -> delivered | failed; failed retries up to a bounded
// attempt count, after which it is terminal.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// Reminder is a scheduled delivery for a task.
type Reminder struct {
	ID               int32
	UID              string
	CreatorID        int32
	TaskID           int32
	ScheduledTs      int64
	Type             ReminderType
	DeliveryStatus   DeliveryStatus
	DeliveryAttempts int
	EscalationLevel  int
	Channels         string // JSON array, priority order
	LastAttemptTs    *int64
	CreatedTs        int64
	UpdatedTs        int64
}

type FindReminder struct {
	ID              *int32
	UID             *string
	CreatorID       *int32
	TaskID          *int32
	DeliveryStatus  *DeliveryStatus
	ScheduledBefore *int64
	// LastAttemptBefore matches reminders whose last delivery attempt started
	// at or before the given time. Rows that never attempted do not match.
	LastAttemptBefore *int64
	Limit             *int
}

type UpdateReminder struct {
	ID               int32
	ScheduledTs      *int64
	DeliveryStatus   *DeliveryStatus
	DeliveryAttempts *int
	EscalationLevel  *int
	Channels         *string
	LastAttemptTs    *int64
	UpdatedTs        *int64
}

type DeleteReminder struct {
	ID int32
}
