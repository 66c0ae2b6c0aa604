package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dannyude/medication-reminder-api/internal/config"
	"github.com/dannyude/medication-reminder-api/internal/domain/adherence"
	"github.com/dannyude/medication-reminder-api/internal/domain/medication"
	"github.com/dannyude/medication-reminder-api/internal/domain/medlog"
	"github.com/dannyude/medication-reminder-api/internal/domain/reminder"
	"github.com/dannyude/medication-reminder-api/internal/domain/user"
	"github.com/dannyude/medication-reminder-api/internal/platform/auth"
	"github.com/dannyude/medication-reminder-api/internal/platform/db"
	"github.com/dannyude/medication-reminder-api/internal/platform/middleware"
	"github.com/dannyude/medication-reminder-api/internal/platform/notify"
	"github.com/dannyude/medication-reminder-api/internal/platform/scheduling"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medtrack-server",
		Short: "Medication reminder API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the reminder engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Reminder engine maintenance",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Run one reminder generation pass over all active medications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			gen := reminder.NewGenerator(
				reminder.NewRepoPG(pool),
				medication.NewRepoPG(pool),
				cfg.GenerationHorizonDays,
				logger,
			)
			created, err := gen.GenerateAll(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d reminder(s).\n", created)
			return nil
		},
	}
	cmd.AddCommand(generateCmd)

	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware([]byte(cfg.AuthSecret)))
	}

	e.GET("/health", db.HealthHandler(pool))

	// Repositories
	medRepo := medication.NewRepoPG(pool)
	userRepo := user.NewRepoPG(pool)
	remRepo := reminder.NewRepoPG(pool)
	logRepo := medlog.NewRepoPG(pool)
	streakRepo := adherence.NewRepoPG(pool)

	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.RunInTx(ctx, pool, fn)
	}

	// Notification gateway, push first with SMS fallback
	var channels []notify.Channel
	if cfg.PushoverAppToken != "" {
		channels = append(channels, notify.NewPushChannel(cfg.PushoverAppToken))
	}
	if cfg.SMSAPIKey != "" {
		channels = append(channels, notify.NewSMSChannel(notify.SMSConfig{
			APIKey:   cfg.SMSAPIKey,
			Username: cfg.SMSUsername,
			SenderID: cfg.SMSSenderID,
			Env:      cfg.SMSEnv,
		}))
	}
	if len(channels) == 0 {
		logger.Warn().Msg("no notification channels configured, reminders will not be delivered")
	}
	gateway := notify.NewGateway(logger, cfg.ChannelTimeout, channels...)

	lowStock := func(ctx context.Context, userID uuid.UUID, medicationName string, remaining int) {
		contact, err := userRepo.GetContact(ctx, userID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID.String()).Msg("low-stock lookup failed")
			return
		}
		_, err = gateway.Deliver(ctx, notify.Message{
			Recipient: notify.Recipient{PushKey: contact.PushKey, Phone: contact.Phone},
			Title:     "Low Medication Stock",
			Body:      fmt.Sprintf("Only %d dose(s) of %s left. Time to refill.", remaining, medicationName),
		})
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID.String()).Msg("low-stock notification failed")
		}
	}

	// Engine components
	ledger := adherence.NewLedger(streakRepo, medRepo, lowStock,
		cfg.OnTimeTolerance, cfg.SkippedBreaksStreak, logger)
	generator := reminder.NewGenerator(remRepo, medRepo, cfg.GenerationHorizonDays, logger)
	dispatcher := reminder.NewDispatcher(remRepo, gateway, cfg.DispatchBatchSize,
		cfg.RetryHorizon, cfg.DispatchClaimLease, logger)
	sweeper := reminder.NewSweeper(remRepo, ledger, runTx,
		cfg.PendingStaleness, cfg.SentStaleness, 500, logger)

	// Services and handlers
	medSvc := medication.NewService(medRepo, generator, cfg.LowStockDefault, logger)
	remSvc := reminder.NewService(remRepo, medRepo, logRepo, ledger, generator, runTx, logger)
	logSvc := medlog.NewService(logRepo, medRepo, ledger, runTx, logger)

	api := e.Group("/api/v1")
	medication.NewHandler(medSvc).RegisterRoutes(api)
	reminder.NewHandler(remSvc).RegisterRoutes(api)
	medlog.NewHandler(logSvc).RegisterRoutes(api)
	adherence.NewHandler(streakRepo).RegisterRoutes(api)

	// Background jobs
	runner := scheduling.NewRunner(logger)
	if err := runner.AddCron(cfg.GenerationCron, "reminder_generation", func(ctx context.Context) error {
		_, err := generator.GenerateAll(ctx, time.Now().UTC())
		return err
	}); err != nil {
		logger.Fatal().Err(err).Msg("invalid generation cron spec")
	}
	runner.AddEvery(cfg.DispatchInterval, "dispatch", func(ctx context.Context) error {
		return dispatcher.Tick(ctx, time.Now().UTC())
	})
	runner.AddEvery(cfg.SweepInterval, "reconciliation_sweep", func(ctx context.Context) error {
		return sweeper.Tick(ctx, time.Now().UTC())
	})
	runner.Start()

	// Serve until signalled
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			logger.Info().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("job runner shutdown timed out")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	return nil
}
