// Package reminder computes delivery times for task reminders and runs the
// background sweep that delivers, retries, and escalates them.
package reminder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

// Store is the slice of the store the reminder layer needs.
type Store interface {
	CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error)
	ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error)
	UpdateReminder(ctx context.Context, update *store.UpdateReminder) (*store.Reminder, error)
	DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
}

// Service schedules reminders against tasks.
type Service struct {
	store   Store
	profile *profile.Profile

	now func() time.Time
}

func NewService(st Store, p *profile.Profile) *Service {
	return &Service{store: st, profile: p, now: time.Now}
}

// DefaultChannels is the delivery priority order used when the caller does
// not pick channels explicitly.
var DefaultChannels = []string{"app", "email", "webhook"}

// leadTime returns the offset from the reference time (due date or expected
// occurrence) at which delivery is scheduled. Followup reminders fire after
// the reference time, the rest before it.
func leadTime(t store.ReminderType) time.Duration {
	switch t {
	case store.ReminderTypeDeadline:
		return -24 * time.Hour
	case store.ReminderTypePriority:
		return -48 * time.Hour
	case store.ReminderTypeFollowup:
		return 24 * time.Hour
	case store.ReminderTypePattern:
		return -12 * time.Hour
	default:
		return -24 * time.Hour
	}
}

// Schedule creates a pending reminder for a task. When scheduledTs is nil the
// delivery time is derived from the task's due date via the lead-time policy.
func (s *Service) Schedule(ctx context.Context, userID int32, taskID int32, reminderType store.ReminderType, channels []string, scheduledTs *int64) (*store.Reminder, error) {
	switch reminderType {
	case store.ReminderTypeDeadline, store.ReminderTypePriority, store.ReminderTypeFollowup, store.ReminderTypePattern:
	default:
		return nil, errors.InvalidArguments("invalid reminder type %q", reminderType)
	}

	task, err := s.getOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	var when int64
	if scheduledTs != nil {
		when = *scheduledTs
	} else {
		if task.DueTs == nil {
			return nil, errors.InvalidArguments("task %d has no due date; an explicit time is required", taskID)
		}
		when = time.Unix(*task.DueTs, 0).Add(leadTime(reminderType)).Unix()
	}
	// A lead time that lands in the past collapses to immediate delivery.
	if now := s.now().Unix(); when < now {
		when = now
	}

	if len(channels) == 0 {
		channels = DefaultChannels
	}
	channelsJSON, err := json.Marshal(channels)
	if err != nil {
		return nil, errors.InvalidArguments("invalid channels: %v", err)
	}

	reminder, err := s.store.CreateReminder(ctx, &store.Reminder{
		UID:            shortuuid.New(),
		CreatorID:      userID,
		TaskID:         taskID,
		ScheduledTs:    when,
		Type:           reminderType,
		DeliveryStatus: store.DeliveryStatusPending,
		Channels:       string(channelsJSON),
	})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to create reminder", err)
	}
	return reminder, nil
}

// ListForUser returns the user's reminders, newest schedule first is not
// needed here; the store orders by scheduled time ascending.
func (s *Service) ListForUser(ctx context.Context, userID int32) ([]*store.Reminder, error) {
	reminders, err := s.store.ListReminders(ctx, &store.FindReminder{CreatorID: &userID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to list reminders", err)
	}
	return reminders, nil
}

func (s *Service) Cancel(ctx context.Context, userID int32, reminderID int32) error {
	reminders, err := s.store.ListReminders(ctx, &store.FindReminder{ID: &reminderID})
	if err != nil {
		return errors.PersistenceFailure("failed to load reminder", err)
	}
	if len(reminders) == 0 {
		return errors.NotFound("reminder %d not found", reminderID)
	}
	if reminders[0].CreatorID != userID {
		return errors.NotOwned("reminder %d belongs to another user", reminderID)
	}
	if err := s.store.DeleteReminder(ctx, &store.DeleteReminder{ID: reminderID}); err != nil {
		return errors.PersistenceFailure("failed to delete reminder", err)
	}
	return nil
}

func (s *Service) getOwnedTask(ctx context.Context, userID int32, taskID int32) (*store.Task, error) {
	tasks, err := s.store.ListTasks(ctx, &store.FindTask{ID: &taskID})
	if err != nil {
		return nil, errors.PersistenceFailure("failed to load task", err)
	}
	if len(tasks) == 0 {
		return nil, errors.NotFound("task %d not found", taskID)
	}
	if tasks[0].CreatorID != userID {
		return nil, errors.NotOwned("task %d belongs to another user", taskID)
	}
	return tasks[0], nil
}
