package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/todoflow/todoflow/store"
)

func (d *DB) CreateTaskPattern(ctx context.Context, create *store.TaskPattern) (*store.TaskPattern, error) {
	fields := []string{"creator_id", "type", "normalized_title", "frequency", "confidence", "attributes", "is_active", "last_occurrence_ts", "next_expected_ts"}
	args := []any{create.CreatorID, string(create.Type), create.NormalizedTitle, create.Frequency, create.Confidence, create.Attributes, create.IsActive, create.LastOccurrenceTs, create.NextExpectedTs}

	stmt := `INSERT INTO task_pattern (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts, updated_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, fmt.Errorf("failed to create task_pattern: %w", err)
	}

	return create, nil
}

func (d *DB) ListTaskPatterns(ctx context.Context, find *store.FindTaskPattern) ([]*store.TaskPattern, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Type; v != nil {
		where, args = append(where, "type = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := find.IsActive; v != nil {
		where, args = append(where, "is_active = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, creator_id, type, normalized_title, frequency, confidence, attributes,
			is_active, last_occurrence_ts, next_expected_ts, created_ts, updated_ts
		FROM task_pattern WHERE ` + strings.Join(where, " AND ") + ` ORDER BY confidence DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task_patterns: %w", err)
	}
	defer rows.Close()

	list := make([]*store.TaskPattern, 0)
	for rows.Next() {
		p := &store.TaskPattern{}
		var patternType string
		if err := rows.Scan(
			&p.ID, &p.CreatorID, &patternType, &p.NormalizedTitle, &p.Frequency, &p.Confidence,
			&p.Attributes, &p.IsActive, &p.LastOccurrenceTs, &p.NextExpectedTs, &p.CreatedTs, &p.UpdatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task_pattern: %w", err)
		}
		p.Type = store.PatternType(patternType)
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task_patterns: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteTaskPatterns(ctx context.Context, delete *store.DeleteTaskPattern) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM task_pattern WHERE creator_id = `+placeholder(1), delete.CreatorID); err != nil {
		return fmt.Errorf("failed to delete task_patterns: %w", err)
	}
	return nil
}
