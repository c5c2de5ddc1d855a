// Package server assembles the HTTP server and its in-process background
// workers from the profile.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/plugin/ai/agent"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/plugin/ai/reminder"
	"github.com/todoflow/todoflow/plugin/ai/suggest"
	apiv1 "github.com/todoflow/todoflow/server/router/api/v1"
	"github.com/todoflow/todoflow/server/service/conversation"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
)

type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	store   *store.Store
	logger  *slog.Logger

	scheduler *reminder.Scheduler
}

// NewServer wires the agent core, the tool registry, and the reminder sweep
// behind the HTTP boundary.
func NewServer(p *profile.Profile, st *store.Store, logger *slog.Logger) (*Server, error) {
	llm, err := ai.NewLLMService(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create llm service")
	}

	taskService := task.NewService(st)
	conversationService := conversation.NewService(st)
	ranker := suggest.NewRanker(st, p, logger)
	reminderService := reminder.NewService(st, p)
	appSender := reminder.NewAppSender()
	channelDispatcher := reminder.NewDispatcher(p, logger, appSender)
	scheduler := reminder.NewScheduler(st, channelDispatcher, p, logger)

	registry := tools.NewRegistry(tools.Dependencies{
		Tasks:       taskService,
		Suggestions: ranker,
		Reminders:   reminderService,
		Insights:    st,
		Profile:     p,
	})
	dispatcher := agent.NewDispatcher(llm, registry, conversationService, taskService, p, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	api := apiv1.NewAPIV1Service(dispatcher, conversationService, ranker, reminderService, appSender, logger)
	api.RegisterRoutes(e.Group("/api/v1"))

	return &Server{
		e:         e,
		profile:   p,
		store:     st,
		logger:    logger,
		scheduler: scheduler,
	}, nil
}

// Start launches the reminder sweep and the HTTP listener. It blocks until
// the listener stops.
func (s *Server) Start(ctx context.Context) error {
	s.scheduler.Start(ctx)
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	s.logger.Info("server started", "addr", addr, "version", s.profile.Version)
	if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown stops the sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.scheduler.Stop()
	if err := s.e.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close store", "error", err)
	}
	s.logger.Info("server shut down")
}
