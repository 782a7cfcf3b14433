package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/anthropics/session-webhook-bridge/internal/api"
	"github.com/anthropics/session-webhook-bridge/internal/conf"
	"github.com/anthropics/session-webhook-bridge/internal/domain"
	"github.com/anthropics/session-webhook-bridge/internal/forwarder"
	"github.com/anthropics/session-webhook-bridge/internal/identity"
	"github.com/anthropics/session-webhook-bridge/internal/messenger"
)

// Startup order is load-bearing: config → store → daemon ready → identity
// restore → event wiring → poller → HTTP listener. The listener must never
// come up before the session client is initialized.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "session-bridge",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	store, err := identity.Open(cfg.StorageFile)
	if err != nil {
		logger.Error("failed to open identity store", "path", cfg.StorageFile, "error", err)
		os.Exit(1)
	}
	logger.Info("identity store open", "path", cfg.StorageFile)

	client := messenger.New(cfg, store, logger.Named("messenger"))

	ctx := context.Background()
	if err := client.WaitReady(ctx); err != nil {
		logger.Error("session daemon not reachable", "url", cfg.RPCURL, "error", err)
		os.Exit(1)
	}
	if err := client.Restore(ctx); err != nil {
		logger.Error("failed to restore session identity", "error", err)
		os.Exit(1)
	}
	logger.Info("session identity restored", "sessionId", client.SessionID())

	// Wire every event kind to the forwarder. The forwarder itself is
	// event-agnostic; this loop is the enumeration.
	fwd := forwarder.New(cfg.WebhookURL, logger.Named("forwarder"))
	for _, kind := range domain.AllEventKinds {
		client.Subscribe(kind, func(k domain.EventKind, payload json.RawMessage) {
			fwd.Forward(k, payload)
		})
	}

	client.StartPolling(ctx)

	srv := api.NewServer(client, cfg, logger.Named("api"))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		client.Stop()
		srv.Stop()
		store.Close()
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
