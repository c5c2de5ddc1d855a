package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/todoflow/todoflow/store"
)

type suggestionPayload struct {
	ID          int32   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	IsAccepted  bool    `json:"is_accepted"`
	IsDismissed bool    `json:"is_dismissed"`
	CreatedTs   int64   `json:"created_ts"`
}

func toSuggestionPayload(s *store.Suggestion) suggestionPayload {
	return suggestionPayload{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Confidence:  s.Confidence,
		Reason:      s.Reason,
		IsAccepted:  s.IsAccepted,
		IsDismissed: s.IsDismissed,
		CreatedTs:   s.CreatedTs,
	}
}

func (s *APIV1Service) listSuggestions(c echo.Context) error {
	suggestions, err := s.ranker.Suggest(c.Request().Context(), userID(c))
	if err != nil {
		return httpError(err)
	}
	out := make([]suggestionPayload, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, toSuggestionPayload(sg))
	}
	return c.JSON(http.StatusOK, map[string]any{"suggestions": out})
}

func (s *APIV1Service) acceptSuggestion(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	updated, err := s.ranker.Accept(c.Request().Context(), userID(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toSuggestionPayload(updated))
}

func (s *APIV1Service) dismissSuggestion(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	updated, err := s.ranker.Dismiss(c.Request().Context(), userID(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toSuggestionPayload(updated))
}

type reminderPayload struct {
	ID               int32  `json:"id"`
	UID              string `json:"uid"`
	TaskID           int32  `json:"task_id"`
	ScheduledTs      int64  `json:"scheduled_ts"`
	Type             string `json:"type"`
	DeliveryStatus   string `json:"delivery_status"`
	DeliveryAttempts int    `json:"delivery_attempts"`
	EscalationLevel  int    `json:"escalation_level"`
	Channels         string `json:"channels"`
}

func (s *APIV1Service) listReminders(c echo.Context) error {
	reminders, err := s.reminders.ListForUser(c.Request().Context(), userID(c))
	if err != nil {
		return httpError(err)
	}
	out := make([]reminderPayload, 0, len(reminders))
	for _, r := range reminders {
		out = append(out, reminderPayload{
			ID:               r.ID,
			UID:              r.UID,
			TaskID:           r.TaskID,
			ScheduledTs:      r.ScheduledTs,
			Type:             string(r.Type),
			DeliveryStatus:   string(r.DeliveryStatus),
			DeliveryAttempts: r.DeliveryAttempts,
			EscalationLevel:  r.EscalationLevel,
			Channels:         r.Channels,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"reminders": out})
}

func (s *APIV1Service) drainNotifications(c echo.Context) error {
	notifications := s.appSender.Drain(userID(c))
	return c.JSON(http.StatusOK, map[string]any{"notifications": notifications})
}
