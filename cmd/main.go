package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-engine/internal/api"
	"loan-engine/internal/batch"
	"loan-engine/internal/config"
	"loan-engine/internal/domain/borrower"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/event"
	"loan-engine/internal/infrastructure/database/postgres"
	"loan-engine/internal/infrastructure/database/sqlite"
	"loan-engine/internal/infrastructure/logging"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title Loan Engine API
// @version 1.0
// @description Loan figures, schedules and penalties for the loan engine service.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, logger := initializeApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := openRepositories(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer repos.close()

	publisher, closePublisher, err := initializePublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	loanService, borrowerService := initializeServices(repos, publisher, logger)

	refreshJob := batch.NewRefreshFiguresJob(loanService, cfg.Batch.RefreshConcurrency, logger)
	cronScheduler := startBatchJobs(cfg, logger, refreshJob)
	router := api.SetupRouter(ctx, loanService, borrowerService, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed(), "database_driver", cfg.Database.Driver)

	return cfg, logger
}

type repositories struct {
	loans     loan.Repository
	borrowers borrower.Repository
	close     func()
}

func openRepositories(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*repositories, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		logger.Info("Opening SQLite database...", "dsn", cfg.URL)
		store, err := sqlite.New(cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		return &repositories{
			loans:     store,
			borrowers: store,
			close: func() {
				logger.Info("Closing SQLite database...")
				if err := store.Close(); err != nil {
					logger.Warn("Failed to close SQLite database", "error", err)
				}
			},
		}, nil
	case config.DriverPostgres:
		logger.Info("Initializing database connection pool...")
		dbPool, err := postgres.NewConnectionPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &repositories{
			loans:     postgres.NewLoanRepository(dbPool, logger),
			borrowers: postgres.NewBorrowerRepository(dbPool, logger),
			close: func() {
				logger.Info("Closing database connection pool...")
				dbPool.Close()
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func initializePublisher(cfg config.RabbitMQConfig, logger *slog.Logger) (event.EventPublisher, func(), error) {
	if !cfg.Enabled {
		logger.Info("RabbitMQ disabled, loan events will only be logged")
		return event.NewNoopEventPublisher(logger), func() {}, nil
	}

	logger.Info("Connecting to RabbitMQ...")
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.ExchangeName, logger)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return publisher, func() {
		logger.Info("Closing RabbitMQ connection...")
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			logger.Warn("Failed to close RabbitMQ connection", "error", err)
		}
	}, nil
}

func initializeServices(repos *repositories, publisher event.EventPublisher, logger *slog.Logger) (loan.LoanService, borrower.BorrowerService) {
	logger.Info("Initializing application components...")
	borrowerService := borrower.NewBorrowerService(repos.borrowers, logger)
	return loan.NewLoanService(repos.loans, borrowerService, publisher, logger), borrowerService
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil {
			logger.Error("Server exited unexpectedly before signal", "error", err)
		}
		triggerReason = "server exited"
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	if triggerReason != "server exited" {
		select {
		case err := <-serverErrors:
			if err != nil {
				logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
			}
		case <-time.After(5 * time.Second):
			logger.Warn("Timed out waiting for server goroutine confirmation.")
		}
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, refreshJob *batch.RefreshFiguresJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.RefreshSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 3 * * *"
		logger.Warn("Figures refresh schedule not configured, using default", "schedule", scheduleSpec)
	}

	jobID, err := refreshJob.Schedule(c, scheduleSpec, cfg.Batch.RefreshTimeout)
	if err != nil {
		logger.Error("Failed to schedule figures refresh job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled figures refresh job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
