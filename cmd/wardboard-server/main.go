package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wardboard/wardboard/internal/config"
	"github.com/wardboard/wardboard/internal/domain/alerts"
	"github.com/wardboard/wardboard/internal/domain/board"
	"github.com/wardboard/wardboard/internal/domain/discharge"
	"github.com/wardboard/wardboard/internal/domain/patient"
	"github.com/wardboard/wardboard/internal/domain/progress"
	"github.com/wardboard/wardboard/internal/platform/auth"
	"github.com/wardboard/wardboard/internal/platform/db"
	"github.com/wardboard/wardboard/internal/platform/docstore"
	"github.com/wardboard/wardboard/internal/platform/middleware"
	"github.com/wardboard/wardboard/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wardboard-server",
		Short: "Ward dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the ward dashboard server",
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

// -- Websocket notifier adapters --
//
// Domain services publish through narrow interfaces; these adapters turn
// each commit into hub events on both the board topic and the patient's own
// topic.

type alertNotifier struct {
	hub *websocket.Hub
}

func (n *alertNotifier) SnapshotChanged(s *alerts.AlertSnapshot) {
	ev := websocket.NewEvent("alerts.changed", websocket.TopicPatient(s.PatientID), s.PatientID, s)
	n.hub.Broadcast(ev.Topic, ev)
	ev.Topic = websocket.TopicBoard
	n.hub.Broadcast(websocket.TopicBoard, ev)
}

type patientNotifier struct {
	hub *websocket.Hub
}

func (n *patientNotifier) PatientChanged(p *patient.Patient) {
	ev := websocket.NewEvent("patient.changed", websocket.TopicPatient(p.ID), p.ID, p)
	n.hub.Broadcast(ev.Topic, ev)
	ev.Topic = websocket.TopicBoard
	n.hub.Broadcast(websocket.TopicBoard, ev)
}

type progressNotifier struct {
	hub *websocket.Hub
}

func (n *progressNotifier) ProgressChanged(s *progress.ProgressStatus) {
	ev := websocket.NewEvent("progress.changed", websocket.TopicPatient(s.PatientID), s.PatientID, s)
	n.hub.Broadcast(ev.Topic, ev)
	ev.Topic = websocket.TopicBoard
	n.hub.Broadcast(websocket.TopicBoard, ev)
}

type planNotifier struct {
	hub *websocket.Hub
}

func (n *planNotifier) PlanChanged(p *discharge.DischargePlan) {
	ev := websocket.NewEvent("discharge.changed", websocket.TopicPatient(p.PatientID), p.PatientID, p)
	n.hub.Broadcast(ev.Topic, ev)
	ev.Topic = websocket.TopicBoard
	n.hub.Broadcast(websocket.TopicBoard, ev)
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
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	apiV1 := e.Group("/api/v1")

	// Live fan-out hub
	hub := websocket.NewHub()
	websocket.NewHandler(hub).RegisterRoutes(apiV1)

	// Document store for snapshot-style state
	store := docstore.NewPGStore(pool)

	// Patient registry
	patientSvc := patient.NewService(patient.NewRepo(pool))
	patientSvc.SetNotifier(&patientNotifier{hub: hub})
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)

	// Alert snapshots
	alertSvc := alerts.NewService(alerts.NewSnapshotRepo(store))
	alertSvc.SetNotifier(&alertNotifier{hub: hub})
	alerts.NewHandler(alertSvc).RegisterRoutes(apiV1)

	// Therapy milestones
	progressSvc := progress.NewService(progress.NewRepo(pool), progress.Thresholds{
		Sitting:    cfg.SittingOverdueHours,
		Standing:   cfg.StandingOverdueHours,
		Ambulation: cfg.AmbulationOverdueHours,
	})
	progressSvc.SetNotifier(&progressNotifier{hub: hub})
	progress.NewHandler(progressSvc).RegisterRoutes(apiV1)

	// Discharge planning
	dischargeSvc := discharge.NewService(discharge.NewRepo(store), patientSvc)
	dischargeSvc.SetNotifier(&planNotifier{hub: hub})
	discharge.NewHandler(dischargeSvc).RegisterRoutes(apiV1)

	// Ward board read models
	boardSvc := board.NewService(patientSvc, alertSvc, progressSvc, dischargeSvc)
	board.NewHandler(boardSvc).RegisterRoutes(apiV1)

	// Health endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
