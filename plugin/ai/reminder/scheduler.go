package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

// Scheduler runs the background sweep over due reminders. It is safe to stop
// and restart mid-sweep: each delivery attempt claims its sequence number in
// the store before any channel fires.
type Scheduler struct {
	store      Store
	dispatcher *Dispatcher
	profile    *profile.Profile
	logger     *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewScheduler(st Store, dispatcher *Dispatcher, p *profile.Profile, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:      st,
		dispatcher: dispatcher,
		profile:    p,
		logger:     logger,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the periodic sweep.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.profile.ReminderSweepInterval)
		defer ticker.Stop()

		s.logger.Info("reminder scheduler started", "interval", s.profile.ReminderSweepInterval)
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("reminder sweep failed", "error", err)
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// Sweep processes one batch of due pending reminders and returns how many
// were delivered. It also recovers attempts that were claimed but whose
// outcome was never recorded, which happens when a process dies between the
// claim and the channel result.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.now().Unix()
	pending := store.DeliveryStatusPending
	due, err := s.store.ListReminders(ctx, &store.FindReminder{
		DeliveryStatus:  &pending,
		ScheduledBefore: &now,
		Limit:           &s.profile.ReminderBatchSize,
	})
	if err != nil {
		return 0, errors.PersistenceFailure("failed to list due reminders", err)
	}

	delivered := 0
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := s.process(ctx, r)
		if err != nil {
			s.logger.Error("reminder processing failed", "reminderUID", r.UID, "error", err)
			continue
		}
		if ok {
			delivered++
		}
	}
	reclaimed, err := s.reclaimStale(ctx, now)
	if err != nil {
		return delivered, err
	}

	if len(due) > 0 || reclaimed > 0 {
		s.logger.Info("reminder sweep finished", "due", len(due), "delivered", delivered, "reclaimed", reclaimed)
	}
	return delivered, nil
}

// reclaimStale routes claims older than the claim timeout back through the
// failure path, so a crash mid-delivery never strands a reminder in the sent
// state. The persisted attempt counter makes the lost attempt count against
// the retry budget.
func (s *Scheduler) reclaimStale(ctx context.Context, now int64) (int, error) {
	sent := store.DeliveryStatusSent
	cutoff := now - int64(s.profile.ReminderClaimTimeout.Seconds())
	stale, err := s.store.ListReminders(ctx, &store.FindReminder{
		DeliveryStatus:    &sent,
		LastAttemptBefore: &cutoff,
		Limit:             &s.profile.ReminderBatchSize,
	})
	if err != nil {
		return 0, errors.PersistenceFailure("failed to list stale delivery claims", err)
	}

	reclaimed := 0
	for _, r := range stale {
		if err := ctx.Err(); err != nil {
			return reclaimed, err
		}
		s.logger.Warn("reclaiming stale delivery claim",
			"reminderUID", r.UID, "attempt", r.DeliveryAttempts)
		if err := s.handleFailure(ctx, r, r.DeliveryAttempts, now); err != nil {
			s.logger.Error("failed to reclaim stale delivery claim", "reminderUID", r.UID, "error", err)
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

func (s *Scheduler) process(ctx context.Context, r *store.Reminder) (bool, error) {
	tasks, err := s.store.ListTasks(ctx, &store.FindTask{ID: &r.TaskID})
	if err != nil {
		return false, errors.PersistenceFailure("failed to load reminder task", err)
	}
	if len(tasks) == 0 {
		// The task was deleted; the reminder has nothing to announce.
		if err := s.store.DeleteReminder(ctx, &store.DeleteReminder{ID: r.ID}); err != nil {
			return false, errors.PersistenceFailure("failed to drop orphaned reminder", err)
		}
		s.dispatcher.Forget(r.ID)
		return false, nil
	}
	task := tasks[0]

	// Claim the attempt sequence before firing any channel so a crash during
	// delivery is never replayed as the same attempt.
	attemptSeq := r.DeliveryAttempts + 1
	now := s.now().Unix()
	sent := store.DeliveryStatusSent
	claimed, err := s.store.UpdateReminder(ctx, &store.UpdateReminder{
		ID:               r.ID,
		DeliveryStatus:   &sent,
		DeliveryAttempts: &attemptSeq,
		LastAttemptTs:    &now,
		UpdatedTs:        &now,
	})
	if err != nil {
		return false, errors.PersistenceFailure("failed to claim delivery attempt", err)
	}

	channel, deliverErr := s.dispatcher.Deliver(ctx, claimed, task, attemptSeq)
	if deliverErr == nil {
		delivered := store.DeliveryStatusDelivered
		if _, err := s.store.UpdateReminder(ctx, &store.UpdateReminder{
			ID:             r.ID,
			DeliveryStatus: &delivered,
			UpdatedTs:      &now,
		}); err != nil {
			return false, errors.PersistenceFailure("failed to mark reminder delivered", err)
		}
		s.dispatcher.Forget(r.ID)
		s.logger.Info("reminder delivered", "reminderUID", r.UID, "channel", channel, "attempt", attemptSeq)
		return true, nil
	}

	return false, s.handleFailure(ctx, claimed, attemptSeq, now)
}

func (s *Scheduler) handleFailure(ctx context.Context, r *store.Reminder, attemptSeq int, now int64) error {
	if attemptSeq >= s.profile.ReminderMaxAttempts {
		failed := store.DeliveryStatusFailed
		if _, err := s.store.UpdateReminder(ctx, &store.UpdateReminder{
			ID:             r.ID,
			DeliveryStatus: &failed,
			UpdatedTs:      &now,
		}); err != nil {
			return errors.PersistenceFailure("failed to mark reminder failed", err)
		}
		s.dispatcher.Forget(r.ID)
		s.logger.Warn("reminder failed terminally", "reminderUID", r.UID, "attempts", attemptSeq)
		return nil
	}

	update := &store.UpdateReminder{ID: r.ID, UpdatedTs: &now}
	pending := store.DeliveryStatusPending
	update.DeliveryStatus = &pending

	escalation := r.EscalationLevel
	if attemptSeq >= s.profile.ReminderEscalationThreshold {
		escalation++
		update.EscalationLevel = &escalation
	}

	// Escalation shortens the retry interval.
	retryIn := s.profile.ReminderRetryInterval / time.Duration(escalation+1)
	next := now + int64(retryIn.Seconds())
	update.ScheduledTs = &next

	if _, err := s.store.UpdateReminder(ctx, update); err != nil {
		return errors.PersistenceFailure("failed to reschedule reminder", err)
	}
	s.logger.Info("reminder rescheduled",
		"reminderUID", r.UID, "attempt", attemptSeq, "escalation", escalation, "retryIn", retryIn)
	return nil
}
