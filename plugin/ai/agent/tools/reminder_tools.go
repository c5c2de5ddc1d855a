package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/todoflow/todoflow/store"
)

func newScheduleReminderTool(deps Dependencies) *Tool {
	type scheduleReminderArgs struct {
		TaskID      *int32   `json:"task_id"`
		Type        string   `json:"type"`
		Channels    []string `json:"channels"`
		ScheduledTs *int64   `json:"scheduled_ts"`
	}
	return &Tool{
		Name:        "schedule_reminder",
		Description: "Schedule a reminder for a task. Without an explicit time, the delivery time is derived from the task's due date and the reminder type.",
		Parameters: objectSchema([]string{"type"}, map[string]any{
			"task_id":     intProp("ID of the task to remind about"),
			"title_query": stringProp("Words from the task's title, when its id is unknown"),
			"type":        stringProp("Reminder type", "deadline", "priority", "followup", "pattern"),
			"channels": map[string]any{
				"type":        "array",
				"description": "Delivery channels in priority order",
				"items":       stringProp("Channel name", "app", "email", "webhook"),
			},
			"scheduled_ts": intProp("Explicit delivery time as a Unix timestamp in seconds"),
		}),
		Mutating: true,
		EntityRef: func(args json.RawMessage) (string, bool) {
			var a scheduleReminderArgs
			if err := json.Unmarshal(args, &a); err != nil || a.TaskID == nil {
				return "", false
			}
			return fmt.Sprintf("reminder:task:%d", *a.TaskID), true
		},
		Handler: func(ctx context.Context, userID int32, args json.RawMessage) (any, error) {
			var a scheduleReminderArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			if a.TaskID == nil {
				return nil, invalidMissing("task_id")
			}
			if a.Type == "" {
				return nil, invalidMissing("type")
			}
			reminder, err := deps.Reminders.Schedule(ctx, userID, *a.TaskID, store.ReminderType(a.Type), a.Channels, a.ScheduledTs)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"reminder_uid": reminder.UID,
				"task_id":      reminder.TaskID,
				"type":         string(reminder.Type),
				"scheduled_ts": reminder.ScheduledTs,
				"status":       string(reminder.DeliveryStatus),
			}, nil
		},
	}
}
