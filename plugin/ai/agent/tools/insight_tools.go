package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/store"
)

func invalidMissing(field string) error {
	return errors.InvalidArguments("missing required argument %q", field)
}

func newSuggestTasksTool(deps Dependencies) *Tool {
	return &Tool{
		Name:        "suggest_tasks",
		Description: "Suggest tasks the user may want to do next, ranked from their recurring patterns and upcoming deadlines.",
		Parameters:  objectSchema(nil, map[string]any{}),
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			suggestions, err := deps.Suggestions.Suggest(ctx, userID)
			if err != nil {
				return nil, err
			}
			type suggestionPayload struct {
				ID         int32   `json:"id"`
				Title      string  `json:"title"`
				Confidence float64 `json:"confidence"`
				Reason     string  `json:"reason"`
			}
			out := make([]suggestionPayload, 0, len(suggestions))
			for _, s := range suggestions {
				out = append(out, suggestionPayload{ID: s.ID, Title: s.Title, Confidence: s.Confidence, Reason: s.Reason})
			}
			return map[string]any{"suggestions": out, "count": len(out)}, nil
		},
	}
}

func newGetAnalyticsTool(deps Dependencies) *Tool {
	type analyticsArgs struct {
		WindowDays *int `json:"window_days"`
	}
	return &Tool{
		Name:        "get_analytics",
		Description: "Report task counts and completion rate over a recent window.",
		Parameters: objectSchema(nil, map[string]any{
			"window_days": intProp("Window size in days, default 30"),
		}),
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a analyticsArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			windowDays := 30
			if a.WindowDays != nil {
				if *a.WindowDays <= 0 {
					return nil, errors.InvalidArguments("window_days must be positive")
				}
				windowDays = *a.WindowDays
			}
			cutoff := time.Now().AddDate(0, 0, -windowDays).Unix()

			tasks, err := deps.Insights.ListTasks(ctx, &store.FindTask{CreatorID: &userID})
			if err != nil {
				return nil, errors.PersistenceFailure("failed to load tasks", err)
			}

			var created, completed, overdue int
			now := time.Now().Unix()
			for _, t := range tasks {
				if t.CreatedTs >= cutoff {
					created++
				}
				if t.Completed && t.CompletedTs != nil && *t.CompletedTs >= cutoff {
					completed++
				}
				if !t.Completed && t.DueTs != nil && *t.DueTs < now {
					overdue++
				}
			}
			rate := 0.0
			if created > 0 {
				rate = float64(completed) / float64(created)
			}
			return map[string]any{
				"window_days":     windowDays,
				"tasks_created":   created,
				"tasks_completed": completed,
				"tasks_overdue":   overdue,
				"completion_rate": rate,
			}, nil
		},
	}
}

func newIdentifyPatternsTool(deps Dependencies) *Tool {
	return &Tool{
		Name:        "identify_patterns",
		Description: "Read the user's recognized recurring task patterns. Reads the latest batch results; never recomputes inline.",
		Parameters:  objectSchema(nil, map[string]any{}),
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			active := true
			patterns, err := deps.Insights.ListTaskPatterns(ctx, &store.FindTaskPattern{CreatorID: &userID, IsActive: &active})
			if err != nil {
				return nil, errors.PersistenceFailure("failed to load patterns", err)
			}
			type patternPayload struct {
				ID             int32   `json:"id"`
				Type           string  `json:"type"`
				Title          string  `json:"title"`
				Frequency      string  `json:"frequency"`
				Confidence     float64 `json:"confidence"`
				NextExpectedTs *int64  `json:"next_expected_ts,omitempty"`
			}
			out := make([]patternPayload, 0, len(patterns))
			for _, p := range patterns {
				out = append(out, patternPayload{
					ID:             p.ID,
					Type:           string(p.Type),
					Title:          p.NormalizedTitle,
					Frequency:      p.Frequency,
					Confidence:     p.Confidence,
					NextExpectedTs: p.NextExpectedTs,
				})
			}
			return map[string]any{"patterns": out, "count": len(out)}, nil
		},
	}
}
