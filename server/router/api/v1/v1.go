// Package v1 exposes the HTTP contract: the chat turn endpoint plus read and
// resolution endpoints for conversations, suggestions, and reminders.
// Authentication is handled upstream; this layer trusts the X-User-ID header
// injected by it.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/plugin/ai/agent"
	"github.com/todoflow/todoflow/plugin/ai/reminder"
	"github.com/todoflow/todoflow/plugin/ai/suggest"
	"github.com/todoflow/todoflow/server/service/conversation"
)

// APIV1Service wires the v1 routes to the agent core.
type APIV1Service struct {
	dispatcher    *agent.Dispatcher
	conversations conversation.Service
	ranker        *suggest.Ranker
	reminders     *reminder.Service
	appSender     *reminder.AppSender
	logger        *slog.Logger
}

func NewAPIV1Service(
	dispatcher *agent.Dispatcher,
	conversations conversation.Service,
	ranker *suggest.Ranker,
	reminders *reminder.Service,
	appSender *reminder.AppSender,
	logger *slog.Logger,
) *APIV1Service {
	return &APIV1Service{
		dispatcher:    dispatcher,
		conversations: conversations,
		ranker:        ranker,
		reminders:     reminders,
		appSender:     appSender,
		logger:        logger,
	}
}

// RegisterRoutes mounts the v1 API on the echo group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.Use(s.userIdentity)
	g.POST("/chat", s.chat)
	g.GET("/conversations", s.listConversations)
	g.GET("/conversations/:id/messages", s.listMessages)
	g.GET("/suggestions", s.listSuggestions)
	g.POST("/suggestions/:id/accept", s.acceptSuggestion)
	g.POST("/suggestions/:id/dismiss", s.dismissSuggestion)
	g.GET("/reminders", s.listReminders)
	g.GET("/notifications", s.drainNotifications)
}

const userIDContextKey = "todoflow.userID"

// userIdentity reads the user id injected by the upstream auth layer.
func (s *APIV1Service) userIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("X-User-ID")
		if header == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing user identity")
		}
		userID, err := strconv.ParseInt(header, 10, 32)
		if err != nil || userID <= 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid user identity")
		}
		c.Set(userIDContextKey, int32(userID))
		return next(c)
	}
}

func userID(c echo.Context) int32 {
	return c.Get(userIDContextKey).(int32)
}

// httpError maps a taxonomy error onto the response status.
func httpError(err error) error {
	code := errors.CodeOf(err, errors.ErrCodePersistenceFailure)
	return echo.NewHTTPError(errors.HTTPStatus(code), err.Error())
}

func pathID(c echo.Context) (int32, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return int32(id), nil
}
