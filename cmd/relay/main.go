package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chatvault-backend/internal/config"
	"chatvault-backend/internal/search"
	"chatvault-backend/internal/store/postgres"
	"chatvault-backend/internal/worker"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log.Println("Starting ChatVault Outbox Relay...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// Cancelled on SIGINT/SIGTERM so the poll loop can stop between steps.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	pgStore := postgres.NewPostgresStore(dbpool)

	// 3. Initialize Search Index Client
	searchClient, err := search.NewClient(search.ClientConfig{
		Addresses: cfg.SearchAddresses,
		Username:  cfg.SearchUsername,
		Password:  cfg.SearchPassword,
		Index:     cfg.SearchIndex,
		Timeout:   cfg.SearchTimeout,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to create search client: %v", err)
	}
	if err := searchClient.EnsureIndex(dbCtx); err != nil {
		log.Fatalf("FATAL: Failed to ensure search index: %v", err)
	}
	log.Println("Search index client initialized.")

	// 4. Initialize Relay Worker
	health := worker.NewHealth(cfg.RelayPollInterval)
	relay, err := worker.NewRelay(pgStore, searchClient, worker.Config{
		ShardIndex:  cfg.ShardIndex,
		ShardTotal:  cfg.ShardTotal,
		BatchSize:   cfg.RelayBatchSize,
		LockTTL:     cfg.RelayLockTTL,
		StepTimeout: cfg.RelayStepTimeout,
	}, health)
	if err != nil {
		log.Fatalf("FATAL: Failed to create relay worker: %v", err)
	}

	// 5. Start Health Server
	healthServer := &http.Server{
		Addr:    ":" + cfg.WorkerHealthPort,
		Handler: worker.HealthRouter(health, pgStore, searchClient),
	}
	go func() {
		log.Printf("Worker health server listening on port %s", cfg.WorkerHealthPort)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.WorkerHealthPort, err)
		}
	}()

	// 6. Run the Poll Loop (blocks until signal)
	relay.Run(ctx, cfg.RelayPollInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Health server graceful shutdown failed: %v", err)
	}

	log.Println("Relay shutdown complete.")
}
