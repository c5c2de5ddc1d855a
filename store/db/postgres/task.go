package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/todoflow/todoflow/store"
)

func (d *DB) CreateTask(ctx context.Context, create *store.Task) (*store.Task, error) {
	fields := []string{"uid", "creator_id", "title", "description", "completed", "priority", "due_ts", "completed_ts"}
	args := []any{create.UID, create.CreatorID, create.Title, create.Description, create.Completed, string(create.Priority), create.DueTs, create.CompletedTs}

	stmt := `INSERT INTO task (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return create, nil
}

func (d *DB) ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "task.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "task.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "task.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Completed; v != nil {
		where, args = append(where, "task.completed = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Priority; v != nil {
		where, args = append(where, "task.priority = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "task.due_ts IS NOT NULL AND task.due_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TitleLike; v != nil {
		where, args = append(where, "LOWER(task.title) LIKE "+placeholder(len(args)+1)), append(args, "%"+strings.ToLower(*v)+"%")
	}

	query := `
		SELECT
			id, uid, creator_id, title, description, completed, priority,
			due_ts, completed_ts, created_ts, updated_ts
		FROM task
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY task.created_ts DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Task, 0)
	for rows.Next() {
		task := &store.Task{}
		var priority string
		if err := rows.Scan(
			&task.ID, &task.UID, &task.CreatorID, &task.Title, &task.Description,
			&task.Completed, &priority, &task.DueTs, &task.CompletedTs,
			&task.CreatedTs, &task.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Priority = store.TaskPriority(priority)
		list = append(list, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error) {
	set, args := []string{}, []any{}

	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Completed; v != nil {
		set, args = append(set, "completed = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Priority; v != nil {
		set, args = append(set, "priority = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.DueTs; v != nil {
		set, args = append(set, "due_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.CompletedTs; v != nil {
		set, args = append(set, "completed_ts = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)

	args = append(args, update.ID)
	stmt := `UPDATE task SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, creator_id, title, description, completed, priority, due_ts, completed_ts, created_ts, updated_ts`

	task := &store.Task{}
	var priority string
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&task.ID, &task.UID, &task.CreatorID, &task.Title, &task.Description,
		&task.Completed, &priority, &task.DueTs, &task.CompletedTs,
		&task.CreatedTs, &task.UpdatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %d not found", update.ID)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	task.Priority = store.TaskPriority(priority)

	return task, nil
}

func (d *DB) DeleteTask(ctx context.Context, delete *store.DeleteTask) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM task WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task %d not found", delete.ID)
	}

	return nil
}
