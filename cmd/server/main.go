package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatvault-backend/internal/api"
	"chatvault-backend/internal/config"
	"chatvault-backend/internal/handlers"
	"chatvault-backend/internal/search"
	"chatvault-backend/internal/services"
	"chatvault-backend/internal/storage"
	"chatvault-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	log.Println("Starting ChatVault Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
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

	// 3. Initialize Dependencies (Store, Index, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

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

	// Media URL signing is optional; without a bucket results carry raw keys.
	var mediaResolver services.MediaResolver
	if cfg.MediaBucket != "" {
		resolver, err := storage.NewMediaResolver(dbCtx, cfg.MediaBucket, cfg.MediaURLTTL)
		if err != nil {
			log.Fatalf("FATAL: Failed to create media resolver: %v", err)
		}
		mediaResolver = resolver
		log.Println("Media resolver initialized.")
	} else {
		log.Println("MEDIA_BUCKET not set, media URL signing disabled.")
	}

	conversationService := services.NewConversationService(pgStore)
	log.Println("ConversationService initialized.")
	searchService := services.NewSearchService(searchClient, mediaResolver)
	log.Println("SearchService initialized.")

	conversationHandler := handlers.NewConversationHandlers(conversationService)
	searchHandler := handlers.NewSearchHandlers(searchService)
	log.Println("Handlers initialized.")

	// 4. Setup Router & Inject Dependencies
	routerDeps := api.RouterDependencies{
		ConversationHandler: conversationHandler,
		SearchHandler:       searchHandler,
		Config:              cfg,
	}
	router := api.NewRouter(routerDeps)
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Production hardening: Set timeouts to avoid Slowloris attacks
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	log.Println("Server shutdown complete.")
}
