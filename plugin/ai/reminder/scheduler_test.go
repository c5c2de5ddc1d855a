package reminder

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

type memoryStore struct {
	reminders map[int32]*store.Reminder
	tasks     map[int32]*store.Task
	nextID    int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reminders: make(map[int32]*store.Reminder),
		tasks:     make(map[int32]*store.Task),
		nextID:    1,
	}
}

func (m *memoryStore) CreateReminder(_ context.Context, create *store.Reminder) (*store.Reminder, error) {
	create.ID = m.nextID
	m.nextID++
	copied := *create
	m.reminders[create.ID] = &copied
	return create, nil
}

func (m *memoryStore) ListReminders(_ context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	list := make([]*store.Reminder, 0)
	for _, r := range m.reminders {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && r.CreatorID != *find.CreatorID {
			continue
		}
		if find.DeliveryStatus != nil && r.DeliveryStatus != *find.DeliveryStatus {
			continue
		}
		if find.ScheduledBefore != nil && r.ScheduledTs > *find.ScheduledBefore {
			continue
		}
		if find.LastAttemptBefore != nil && (r.LastAttemptTs == nil || *r.LastAttemptTs > *find.LastAttemptBefore) {
			continue
		}
		copied := *r
		list = append(list, &copied)
	}
	return list, nil
}

func (m *memoryStore) UpdateReminder(_ context.Context, update *store.UpdateReminder) (*store.Reminder, error) {
	r, ok := m.reminders[update.ID]
	if !ok {
		return nil, errors.Errorf("reminder %d not found", update.ID)
	}
	if update.ScheduledTs != nil {
		r.ScheduledTs = *update.ScheduledTs
	}
	if update.DeliveryStatus != nil {
		r.DeliveryStatus = *update.DeliveryStatus
	}
	if update.DeliveryAttempts != nil {
		r.DeliveryAttempts = *update.DeliveryAttempts
	}
	if update.EscalationLevel != nil {
		r.EscalationLevel = *update.EscalationLevel
	}
	if update.LastAttemptTs != nil {
		r.LastAttemptTs = update.LastAttemptTs
	}
	copied := *r
	return &copied, nil
}

func (m *memoryStore) DeleteReminder(_ context.Context, del *store.DeleteReminder) error {
	delete(m.reminders, del.ID)
	return nil
}

func (m *memoryStore) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
	list := make([]*store.Task, 0)
	for _, t := range m.tasks {
		if find.ID != nil && t.ID != *find.ID {
			continue
		}
		copied := *t
		list = append(list, &copied)
	}
	return list, nil
}

// flakySender fails a fixed number of sends before succeeding.
type flakySender struct {
	name      string
	failures  int
	sendCount int
}

func (s *flakySender) Name() string { return s.name }

func (s *flakySender) Send(context.Context, *store.Reminder, *store.Task) error {
	s.sendCount++
	if s.sendCount <= s.failures {
		return errors.New("delivery refused")
	}
	return nil
}

func testProfile() *profile.Profile {
	p := &profile.Profile{Driver: "sqlite", DSN: "test.db"}
	_ = p.Validate()
	return p
}

func newTestScheduler(st *memoryStore, sender Sender) *Scheduler {
	dispatcher := &Dispatcher{
		senders: map[string]Sender{sender.Name(): sender},
		logger:  slog.Default(),
		fired:   make(map[int32]map[string]bool),
	}
	return NewScheduler(st, dispatcher, testProfile(), slog.Default())
}

func seedReminder(st *memoryStore, scheduledTs int64) *store.Reminder {
	st.tasks[1] = &store.Task{ID: 1, CreatorID: 1, Title: "pay rent"}
	r := &store.Reminder{
		UID:            "rem-1",
		CreatorID:      1,
		TaskID:         1,
		ScheduledTs:    scheduledTs,
		Type:           store.ReminderTypeDeadline,
		DeliveryStatus: store.DeliveryStatusPending,
		Channels:       `["app"]`,
	}
	created, _ := st.CreateReminder(context.Background(), r)
	return created
}

func TestSweepDeliversDueReminder(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	s := newTestScheduler(st, &flakySender{name: "app"})

	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, store.DeliveryStatusDelivered, st.reminders[1].DeliveryStatus)
	assert.Equal(t, 1, st.reminders[1].DeliveryAttempts)
}

func TestSweepIgnoresFutureReminders(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(time.Hour).Unix())
	s := newTestScheduler(st, &flakySender{name: "app"})

	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, store.DeliveryStatusPending, st.reminders[1].DeliveryStatus)
	assert.Equal(t, 0, st.reminders[1].DeliveryAttempts)
}

func TestSweepEscalatesAfterRepeatedFailures(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	sender := &flakySender{name: "app", failures: 10}
	s := newTestScheduler(st, sender)

	// Two failing sweeps. The reminder is rescheduled into the future after
	// each, so reset the schedule between sweeps to simulate elapsed time.
	for i := 0; i < 2; i++ {
		_, err := s.Sweep(context.Background())
		require.NoError(t, err)
		st.reminders[1].ScheduledTs = time.Now().Add(-time.Minute).Unix()
	}

	r := st.reminders[1]
	assert.Equal(t, 2, r.DeliveryAttempts)
	assert.Equal(t, 1, r.EscalationLevel, "second attempt crosses the escalation threshold")
	assert.Equal(t, store.DeliveryStatusPending, r.DeliveryStatus, "below max attempts stays retryable")
}

func TestSweepMarksFailedAtMaxAttempts(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	sender := &flakySender{name: "app", failures: 100}
	s := newTestScheduler(st, sender)

	for i := 0; i < 5; i++ {
		_, err := s.Sweep(context.Background())
		require.NoError(t, err)
		st.reminders[1].ScheduledTs = time.Now().Add(-time.Minute).Unix()
	}

	r := st.reminders[1]
	assert.Equal(t, 5, r.DeliveryAttempts)
	assert.Equal(t, store.DeliveryStatusFailed, r.DeliveryStatus)

	// A terminal reminder is not retried.
	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, 5, sender.sendCount)
}

func TestSweepRecoversCrashedDeliveryAttempt(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Hour).Unix())
	// The process died after claiming the attempt but before any channel
	// resolved, leaving the claim without an outcome.
	stale := time.Now().Add(-10 * time.Minute).Unix()
	st.reminders[1].DeliveryStatus = store.DeliveryStatusSent
	st.reminders[1].DeliveryAttempts = 1
	st.reminders[1].LastAttemptTs = &stale

	s := newTestScheduler(st, &flakySender{name: "app"})

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)

	r := st.reminders[1]
	assert.Equal(t, store.DeliveryStatusPending, r.DeliveryStatus, "lost attempt becomes retryable")
	assert.Equal(t, 1, r.DeliveryAttempts, "the lost attempt counts against the budget")
	assert.Greater(t, r.ScheduledTs, time.Now().Unix())

	// Once the retry comes due, delivery proceeds normally.
	st.reminders[1].ScheduledTs = time.Now().Add(-time.Minute).Unix()
	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, store.DeliveryStatusDelivered, st.reminders[1].DeliveryStatus)
}

func TestSweepLeavesFreshClaimAlone(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Hour).Unix())
	recent := time.Now().Add(-time.Second).Unix()
	st.reminders[1].DeliveryStatus = store.DeliveryStatusSent
	st.reminders[1].DeliveryAttempts = 1
	st.reminders[1].LastAttemptTs = &recent

	sender := &flakySender{name: "app"}
	s := newTestScheduler(st, sender)

	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Equal(t, store.DeliveryStatusSent, st.reminders[1].DeliveryStatus, "an in-flight claim is not touched")
	assert.Equal(t, 0, sender.sendCount)
}

func TestSweepFailsCrashedAttemptAtMaxAttempts(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Hour).Unix())
	stale := time.Now().Add(-10 * time.Minute).Unix()
	st.reminders[1].DeliveryStatus = store.DeliveryStatusSent
	st.reminders[1].DeliveryAttempts = 5
	st.reminders[1].LastAttemptTs = &stale

	sender := &flakySender{name: "app"}
	s := newTestScheduler(st, sender)

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.DeliveryStatusFailed, st.reminders[1].DeliveryStatus)
	assert.Equal(t, 0, sender.sendCount, "the retry budget is spent")
}

func TestDeliverDoesNotDoubleFirePerAttempt(t *testing.T) {
	st := newMemoryStore()
	r := seedReminder(st, time.Now().Unix())
	sender := &flakySender{name: "app", failures: 1}
	dispatcher := &Dispatcher{
		senders: map[string]Sender{"app": sender},
		logger:  slog.Default(),
		fired:   make(map[int32]map[string]bool),
	}

	task := st.tasks[1]
	_, err := dispatcher.Deliver(context.Background(), r, task, 1)
	require.Error(t, err)
	// Replaying the same attempt sequence must not re-fire the channel.
	_, err = dispatcher.Deliver(context.Background(), r, task, 1)
	require.Error(t, err)
	assert.Equal(t, 1, sender.sendCount)

	// The next attempt sequence fires again.
	_, err = dispatcher.Deliver(context.Background(), r, task, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sender.sendCount)
}

func TestDeliveredReminderReleasesFiringRecord(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	dispatcher := &Dispatcher{
		senders: map[string]Sender{"app": &flakySender{name: "app"}},
		logger:  slog.Default(),
		fired:   make(map[int32]map[string]bool),
	}
	s := NewScheduler(st, dispatcher, testProfile(), slog.Default())

	_, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, store.DeliveryStatusDelivered, st.reminders[1].DeliveryStatus)
	assert.Empty(t, dispatcher.fired, "terminal reminders leave no firing record behind")
}

func TestFailedReminderReleasesFiringRecord(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	dispatcher := &Dispatcher{
		senders: map[string]Sender{"app": &flakySender{name: "app", failures: 100}},
		logger:  slog.Default(),
		fired:   make(map[int32]map[string]bool),
	}
	s := NewScheduler(st, dispatcher, testProfile(), slog.Default())

	for i := 0; i < 5; i++ {
		_, err := s.Sweep(context.Background())
		require.NoError(t, err)
		st.reminders[1].ScheduledTs = time.Now().Add(-time.Minute).Unix()
	}
	require.Equal(t, store.DeliveryStatusFailed, st.reminders[1].DeliveryStatus)
	assert.Empty(t, dispatcher.fired)
}

func TestSweepDropsOrphanedReminder(t *testing.T) {
	st := newMemoryStore()
	seedReminder(st, time.Now().Add(-time.Minute).Unix())
	delete(st.tasks, 1)
	s := newTestScheduler(st, &flakySender{name: "app"})

	delivered, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Empty(t, st.reminders)
}

func TestScheduleLeadTimePolicy(t *testing.T) {
	st := newMemoryStore()
	due := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	dueTs := due.Unix()
	st.tasks[1] = &store.Task{ID: 1, CreatorID: 1, Title: "pay rent", DueTs: &dueTs}

	svc := NewService(st, testProfile())
	svc.now = func() time.Time { return due.AddDate(0, 0, -7) }
	ctx := context.Background()

	cases := []struct {
		reminderType store.ReminderType
		want         time.Time
	}{
		{store.ReminderTypeDeadline, due.Add(-24 * time.Hour)},
		{store.ReminderTypePriority, due.Add(-48 * time.Hour)},
		{store.ReminderTypeFollowup, due.Add(24 * time.Hour)},
		{store.ReminderTypePattern, due.Add(-12 * time.Hour)},
	}
	for _, c := range cases {
		r, err := svc.Schedule(ctx, 1, 1, c.reminderType, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, c.want.Unix(), r.ScheduledTs, "type %s", c.reminderType)
	}
}

func TestScheduleOwnershipAndValidation(t *testing.T) {
	st := newMemoryStore()
	st.tasks[1] = &store.Task{ID: 1, CreatorID: 1, Title: "pay rent"}
	svc := NewService(st, testProfile())
	ctx := context.Background()

	_, err := svc.Schedule(ctx, 2, 1, store.ReminderTypeDeadline, nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotOwned))

	_, err = svc.Schedule(ctx, 1, 99, store.ReminderTypeDeadline, nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = svc.Schedule(ctx, 1, 1, "nudge", nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArguments))

	// No due date and no explicit time cannot be scheduled.
	_, err = svc.Schedule(ctx, 1, 1, store.ReminderTypeDeadline, nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArguments))
}
