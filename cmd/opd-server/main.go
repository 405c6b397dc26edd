package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opd/opd/internal/config"
	"github.com/opd/opd/internal/domain/appointment"
	"github.com/opd/opd/internal/domain/identity"
	"github.com/opd/opd/internal/domain/queue"
	"github.com/opd/opd/internal/domain/triage"
	"github.com/opd/opd/internal/platform/auth"
	"github.com/opd/opd/internal/platform/db"
	"github.com/opd/opd/internal/platform/middleware"
	"github.com/opd/opd/internal/platform/notify"
	"github.com/opd/opd/internal/platform/websocket"
)

// hubPublisher adapts the websocket Hub to the queue event publisher,
// avoiding an import from the platform layer into the queue domain.
type hubPublisher struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

func (p *hubPublisher) PublishQueue(_ context.Context, eventType string, entry *queue.Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		p.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal queue event")
		return
	}
	p.hub.Broadcast(websocket.TopicQueue, websocket.Event{
		Type:      eventType,
		Topic:     websocket.TopicQueue,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "opd-server",
		Short: "OPD triage queue API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(triageCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the OPD API server",
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

	// migrate up
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

	// migrate status
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

// triageCmd runs one triage batch from the command line, outside the cron
// schedule. Useful for backfills and for operators who want an immediate run.
func triageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triage",
		Short: "Run one triage batch immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			triageSvc := buildTriageService(cfg, logger, pool, queue.NewService(queue.NewRepoPG(pool), nil))
			report, err := triageSvc.RunBatch(ctx)
			if err != nil {
				return fmt.Errorf("triage batch failed: %w", err)
			}

			fmt.Printf("Triage batch complete: %d cases, %d approved, %d rebooked, %d queued, %d notified.\n",
				report.Cases, report.Approved, report.Rebooked, report.Queued, report.Notified)
			return nil
		},
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// buildTriageService wires the triage batch pipeline. The ranker is the
// external sorting API when TRIAGE_API_URL is set, otherwise the local
// simulator.
func buildTriageService(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, queueSvc *queue.Service) *triage.Service {
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool))
	identitySvc := identity.NewService(identity.NewPatientRepoPG(pool))

	var ranker triage.Ranker
	if cfg.TriageAPIURL != "" {
		ranker = triage.NewClient(cfg.TriageAPIURL, 0)
	} else {
		ranker = triage.NewSimulator(cfg.TriageCapacity)
	}

	notifier := notify.NewLogNotifier(logger)
	return triage.NewService(apptSvc, queueSvc, identitySvc, ranker, notifier, logger)
}

func runServer() error {
	logger := newLogger()

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

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// WebSocket hub for queue events
	hub := websocket.NewHub(logger)
	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(apiV1)

	events := &hubPublisher{hub: hub, logger: logger}

	// Domain services
	identitySvc := identity.NewService(identity.NewPatientRepoPG(pool))
	apptSvc := appointment.NewService(appointment.NewRepoPG(pool))
	queueSvc := queue.NewService(queue.NewRepoPG(pool), events)

	var ranker triage.Ranker
	if cfg.TriageAPIURL != "" {
		ranker = triage.NewClient(cfg.TriageAPIURL, 0)
		logger.Info().Str("url", cfg.TriageAPIURL).Msg("using external triage ranking API")
	} else {
		ranker = triage.NewSimulator(cfg.TriageCapacity)
		logger.Info().Int("capacity", cfg.TriageCapacity).Msg("using local triage simulator")
	}

	notifier := notify.NewLogNotifier(logger)
	triageSvc := triage.NewService(apptSvc, queueSvc, identitySvc, ranker, notifier, logger)

	// Handlers
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)
	triage.NewHandler(triageSvc).RegisterRoutes(apiV1)

	// Scheduled triage batch. An empty TRIAGE_CRON disables the schedule;
	// batches can still be triggered via POST /triage/run or the triage
	// subcommand.
	var scheduler *cron.Cron
	if cfg.TriageCron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.TriageCron, func() {
			runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			report, err := triageSvc.RunBatch(runCtx)
			if err != nil {
				logger.Error().Err(err).Msg("scheduled triage batch failed")
				return
			}
			logger.Info().
				Int("cases", report.Cases).
				Int("approved", report.Approved).
				Int("rebooked", report.Rebooked).
				Int("queued", report.Queued).
				Int("notified", report.Notified).
				Msg("scheduled triage batch complete")
		})
		if err != nil {
			logger.Fatal().Err(err).Str("spec", cfg.TriageCron).Msg("invalid triage cron spec")
		}
		scheduler.Start()
		logger.Info().Str("spec", cfg.TriageCron).Msg("triage batch scheduled")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
