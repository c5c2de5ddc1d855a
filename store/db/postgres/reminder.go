package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/todoflow/todoflow/store"
)

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	fields := []string{"uid", "creator_id", "task_id", "scheduled_ts", "type", "delivery_status", "delivery_attempts", "escalation_level", "channels", "last_attempt_ts"}
	args := []any{create.UID, create.CreatorID, create.TaskID, create.ScheduledTs, string(create.Type), string(create.DeliveryStatus), create.DeliveryAttempts, create.EscalationLevel, create.Channels, create.LastAttemptTs}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TaskID; v != nil {
		where, args = append(where, "task_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DeliveryStatus; v != nil {
		where, args = append(where, "delivery_status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := find.ScheduledBefore; v != nil {
		where, args = append(where, "scheduled_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.LastAttemptBefore; v != nil {
		where, args = append(where, "last_attempt_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, uid, creator_id, task_id, scheduled_ts, type, delivery_status,
			delivery_attempts, escalation_level, channels, last_attempt_ts, created_ts, updated_ts
		FROM reminder WHERE ` + strings.Join(where, " AND ") + ` ORDER BY scheduled_ts ASC, id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		r := &store.Reminder{}
		var reminderType, status string
		if err := rows.Scan(
			&r.ID, &r.UID, &r.CreatorID, &r.TaskID, &r.ScheduledTs, &reminderType, &status,
			&r.DeliveryAttempts, &r.EscalationLevel, &r.Channels, &r.LastAttemptTs, &r.CreatedTs, &r.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		r.Type = store.ReminderType(reminderType)
		r.DeliveryStatus = store.DeliveryStatus(status)
		list = append(list, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateReminder(ctx context.Context, update *store.UpdateReminder) (*store.Reminder, error) {
	set, args := []string{}, []any{}

	if v := update.ScheduledTs; v != nil {
		set, args = append(set, "scheduled_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DeliveryStatus; v != nil {
		set, args = append(set, "delivery_status = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.DeliveryAttempts; v != nil {
		set, args = append(set, "delivery_attempts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.EscalationLevel; v != nil {
		set, args = append(set, "escalation_level = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Channels; v != nil {
		set, args = append(set, "channels = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.LastAttemptTs; v != nil {
		set, args = append(set, "last_attempt_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE reminder SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, creator_id, task_id, scheduled_ts, type, delivery_status,
			delivery_attempts, escalation_level, channels, last_attempt_ts, created_ts, updated_ts`

	r := &store.Reminder{}
	var reminderType, status string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&r.ID, &r.UID, &r.CreatorID, &r.TaskID, &r.ScheduledTs, &reminderType, &status,
		&r.DeliveryAttempts, &r.EscalationLevel, &r.Channels, &r.LastAttemptTs, &r.CreatedTs, &r.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("reminder %d not found", update.ID)
		}
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	r.Type = store.ReminderType(reminderType)
	r.DeliveryStatus = store.DeliveryStatus(status)

	return r, nil
}

func (d *DB) DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM reminder WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reminder %d not found", delete.ID)
	}

	return nil
}
