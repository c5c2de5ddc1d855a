package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/todoflow/todoflow/store"
)

func (d *DB) CreateSuggestion(ctx context.Context, create *store.Suggestion) (*store.Suggestion, error) {
	fields := []string{"creator_id", "title", "description", "confidence", "pattern_id", "reason", "is_accepted", "is_dismissed"}
	args := []any{create.CreatorID, create.Title, create.Description, create.Confidence, create.PatternID, create.Reason, create.IsAccepted, create.IsDismissed}

	stmt := `INSERT INTO suggestion (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID, &create.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to create suggestion: %w", err)
	}

	return create, nil
}

func (d *DB) ListSuggestions(ctx context.Context, find *store.FindSuggestion) ([]*store.Suggestion, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.PatternID; v != nil {
		where, args = append(where, "pattern_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IsAccepted; v != nil {
		where, args = append(where, "is_accepted = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IsDismissed; v != nil {
		where, args = append(where, "is_dismissed = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedAfter; v != nil {
		where, args = append(where, "created_ts > "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `SELECT id, creator_id, title, description, confidence, pattern_id, reason,
			is_accepted, is_dismissed, created_ts
		FROM suggestion WHERE ` + strings.Join(where, " AND ") + ` ORDER BY confidence DESC, created_ts DESC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Suggestion, 0)
	for rows.Next() {
		s := &store.Suggestion{}
		if err := rows.Scan(
			&s.ID, &s.CreatorID, &s.Title, &s.Description, &s.Confidence, &s.PatternID,
			&s.Reason, &s.IsAccepted, &s.IsDismissed, &s.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate suggestions: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateSuggestion(ctx context.Context, update *store.UpdateSuggestion) (*store.Suggestion, error) {
	set, args := []string{}, []any{}

	if v := update.IsAccepted; v != nil {
		set, args = append(set, "is_accepted = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.IsDismissed; v != nil {
		set, args = append(set, "is_dismissed = "+placeholder(len(args)+1)), append(args, *v)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE suggestion SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, creator_id, title, description, confidence, pattern_id, reason, is_accepted, is_dismissed, created_ts`

	s := &store.Suggestion{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&s.ID, &s.CreatorID, &s.Title, &s.Description, &s.Confidence, &s.PatternID,
		&s.Reason, &s.IsAccepted, &s.IsDismissed, &s.CreatedTs,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("suggestion %d not found", update.ID)
		}
		return nil, fmt.Errorf("failed to update suggestion: %w", err)
	}

	return s, nil
}
