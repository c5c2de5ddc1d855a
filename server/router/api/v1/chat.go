package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/todoflow/todoflow/plugin/ai/agent"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
)

type chatRequest struct {
	ConversationID *int32 `json:"conversation_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID int32                  `json:"conversation_id"`
	ResponseText   string                 `json:"response_text"`
	ToolCalls      []tools.ToolCallResult `json:"tool_calls"`
}

func (s *APIV1Service) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	resp, err := s.dispatcher.Dispatch(c.Request().Context(), &agent.TurnRequest{
		UserID:         userID(c),
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, chatResponse{
		ConversationID: resp.ConversationID,
		ResponseText:   resp.ResponseText,
		ToolCalls:      resp.ToolCalls,
	})
}

type conversationPayload struct {
	ID        int32  `json:"id"`
	UID       string `json:"uid"`
	Title     string `json:"title"`
	Pinned    bool   `json:"pinned"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

func (s *APIV1Service) listConversations(c echo.Context) error {
	conversations, err := s.conversations.ListConversations(c.Request().Context(), userID(c))
	if err != nil {
		return httpError(err)
	}
	out := make([]conversationPayload, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, conversationPayload{
			ID:        conv.ID,
			UID:       conv.UID,
			Title:     conv.Title,
			Pinned:    conv.Pinned,
			CreatedTs: conv.CreatedTs,
			UpdatedTs: conv.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": out})
}

type messagePayload struct {
	ID              int32  `json:"id"`
	UID             string `json:"uid"`
	Role            string `json:"role"`
	Content         string `json:"content"`
	ToolCallResults string `json:"tool_call_results,omitempty"`
	CreatedTs       int64  `json:"created_ts"`
}

func (s *APIV1Service) listMessages(c echo.Context) error {
	conversationID, err := pathID(c)
	if err != nil {
		return err
	}
	messages, err := s.conversations.LoadHistory(c.Request().Context(), userID(c), conversationID, 0)
	if err != nil {
		return httpError(err)
	}
	out := make([]messagePayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, messagePayload{
			ID:              m.ID,
			UID:             m.UID,
			Role:            string(m.Role),
			Content:         m.Content,
			ToolCallResults: m.ToolCallResults,
			CreatedTs:       m.CreatedTs,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": out})
}
