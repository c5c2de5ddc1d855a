package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/plugin/ai/pattern"
	"github.com/todoflow/todoflow/plugin/ai/reminder"
	"github.com/todoflow/todoflow/plugin/ai/suggest"
	"github.com/todoflow/todoflow/server"
	mcpserver "github.com/todoflow/todoflow/server/mcp"
	"github.com/todoflow/todoflow/server/service/task"
	"github.com/todoflow/todoflow/store"
	"github.com/todoflow/todoflow/store/db"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "todoflow",
	Short: "Conversational todo assistant",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server with the in-process reminder sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), p)
		if err != nil {
			return err
		}

		srv, err := server.NewServer(p, st, logger)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(ctx)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			srv.Shutdown(context.Background())
			return nil
		}
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tool registry over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer st.Close()

		registry := tools.NewRegistry(tools.Dependencies{
			Tasks:       task.NewService(st),
			Suggestions: suggest.NewRanker(st, p, logger),
			Reminders:   reminder.NewService(st, p),
			Insights:    st,
			Profile:     p,
		})
		srv, err := mcpserver.NewServer(registry, p)
		if err != nil {
			return err
		}
		return srv.ServeStdio()
	},
}

var sweepOnce bool

var sweepRemindersCmd = &cobra.Command{
	Use:   "sweep-reminders",
	Short: "Run the reminder delivery sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := setup()
		if err != nil {
			return err
		}
		st, err := openStore(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer st.Close()

		appSender := reminder.NewAppSender()
		dispatcher := reminder.NewDispatcher(p, logger, appSender)
		scheduler := reminder.NewScheduler(st, dispatcher, p, logger)

		if sweepOnce {
			delivered, err := scheduler.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("sweep complete", "delivered", delivered)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		scheduler.Start(ctx)
		<-ctx.Done()
		scheduler.Stop()
		return nil
	},
}

var recognizeUserID int32

var recognizePatternsCmd = &cobra.Command{
	Use:   "recognize-patterns",
	Short: "Recompute task patterns for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, logger, err := setup()
		if err != nil {
			return err
		}
		if recognizeUserID <= 0 {
			return fmt.Errorf("--user is required")
		}
		st, err := openStore(cmd.Context(), p)
		if err != nil {
			return err
		}
		defer st.Close()

		recognizer := pattern.NewRecognizer(st, p, logger)
		patterns, err := recognizer.RecomputeUser(cmd.Context(), recognizeUserID)
		if err != nil {
			return err
		}
		logger.Info("recompute complete", "userID", recognizeUserID, "patterns", len(patterns))
		return nil
	},
}

func setup() (*profile.Profile, *slog.Logger, error) {
	p := &profile.Profile{
		Mode:               viper.GetString("mode"),
		Addr:               viper.GetString("addr"),
		Port:               viper.GetInt("port"),
		Data:               viper.GetString("data"),
		DSN:                viper.GetString("dsn"),
		Driver:             viper.GetString("driver"),
		Version:            version,
		LLMProvider:        viper.GetString("llm-provider"),
		LLMModel:           viper.GetString("llm-model"),
		LLMAPIKey:          viper.GetString("llm-api-key"),
		LLMBaseURL:         viper.GetString("llm-base-url"),
		LLMTimeout:         viper.GetDuration("llm-timeout"),
		LLMRateLimit:       viper.GetFloat64("llm-rate-limit"),
		MCPUserID:          int32(viper.GetInt("mcp-user")),
		ReminderWebhookURL: viper.GetString("reminder-webhook-url"),
		SMTPAddr:           viper.GetString("smtp-addr"),
		SMTPFrom:           viper.GetString("smtp-from"),
	}
	if err := p.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return p, logger, nil
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	st := store.New(driver, p)

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := st.Migrate(migrateCtx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server: "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8081, "binding port for the server")
	rootCmd.PersistentFlags().String("data", ".", "data directory")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver: "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("llm-provider", "openai", `llm provider: "openai", "deepseek" or "ollama"`)
	rootCmd.PersistentFlags().String("llm-model", "", "llm model name")
	rootCmd.PersistentFlags().String("llm-api-key", "", "llm api key")
	rootCmd.PersistentFlags().String("llm-base-url", "", "llm base url override")
	rootCmd.PersistentFlags().Duration("llm-timeout", 30*time.Second, "per-call llm timeout")
	rootCmd.PersistentFlags().Float64("llm-rate-limit", 5, "llm requests per second")
	rootCmd.PersistentFlags().Int("mcp-user", 0, "user id the mcp bridge acts for")
	rootCmd.PersistentFlags().String("reminder-webhook-url", "", "webhook channel endpoint")
	rootCmd.PersistentFlags().String("smtp-addr", "", "smtp host:port for the email channel")
	rootCmd.PersistentFlags().String("smtp-from", "", "smtp sender address")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("todoflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	sweepRemindersCmd.Flags().BoolVar(&sweepOnce, "once", false, "run a single sweep and exit")
	recognizePatternsCmd.Flags().Int32Var(&recognizeUserID, "user", 0, "user id to recompute patterns for")

	rootCmd.AddCommand(serveCmd, mcpCmd, sweepRemindersCmd, recognizePatternsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
