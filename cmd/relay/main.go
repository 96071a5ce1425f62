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

	"github.com/joho/godotenv"

	"github.com/marcAnfuso/api-casinos/internal/api"
	"github.com/marcAnfuso/api-casinos/internal/biz/usecase"
	"github.com/marcAnfuso/api-casinos/internal/conf"
	"github.com/marcAnfuso/api-casinos/internal/data"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Load and resolve the tenant table. Secrets resolve here, once.
	tenants, err := conf.LoadTenants(cfg.TenantsPath)
	if err != nil {
		log.Fatalf("Failed to load tenants: %v", err)
	}
	log.Printf("[Relay] Loaded %d tenant entries from %s", len(tenants), cfg.TenantsPath)

	// Initialize repository layer
	repos, err := data.NewRepositories(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.Model, cfg.JournalPath)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}
	if cfg.Classifier.APIKey == "" {
		log.Println("[Relay] No classifier credential configured, attachments will be accepted unverified")
	}

	// Initialize usecase layer
	resolver := usecase.NewTenantResolver(tenants, repos.Leads)
	provisionUC := usecase.NewProvisionUsecase(repos.Provision, repos.Leads)
	proofUC := usecase.NewProofUsecase(repos.Leads, repos.Classifier, repos.Attribution, provisionUC)

	srv := api.NewServer(resolver, proofUC, repos.Journal, cfg.Port, cfg.Debug)

	go func() {
		log.Printf("[Relay] Listening on port %d", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Relay] Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Printf("[Relay] Shutdown error: %v", err)
	}
	if err := repos.Journal.Close(); err != nil {
		log.Printf("[Relay] Journal close error: %v", err)
	}
	log.Println("[Relay] Stopped")
}
