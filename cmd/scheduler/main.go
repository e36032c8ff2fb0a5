package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/skuld/internal"
	"github.com/dukerupert/skuld/internal/events"
	"github.com/dukerupert/skuld/internal/postgres"
	"github.com/dukerupert/skuld/internal/scheduler"
	"github.com/dukerupert/skuld/internal/service"
)

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	templateStore := postgres.NewTemplateStore(pool, cfg.Scheduler.ClaimTTL)
	ledgerStore := postgres.NewLedgerStore(pool)

	// Event publisher. Without a NATS URL the scheduler still runs,
	// invoices are just not announced.
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NatsUrl != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS publisher connected", "url", cfg.NatsUrl)
	}

	generator := service.NewGenerator(ledgerStore)

	sched := scheduler.New(templateStore, generator, publisher, scheduler.Config{
		WorkerID:       cfg.Scheduler.WorkerID,
		PollInterval:   cfg.Scheduler.PollInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
	}, logger)

	logger.Info("Scheduler starting",
		"worker_id", cfg.Scheduler.WorkerID,
		"poll_interval", cfg.Scheduler.PollInterval,
		"batch_size", cfg.Scheduler.BatchSize,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler stopped with error: %w", err)
	}

	logger.Info("Scheduler stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
