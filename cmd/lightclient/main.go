// Package main runs the Lumino light client: it wires the payment engine,
// watchtower, onboarding, notifier and polling services to a hub and serves
// the local HTTP API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumino-network/light-client/internal/app"
	"github.com/lumino-network/light-client/internal/app/httpapi"
	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/app/storage/postgres"
	"github.com/lumino-network/light-client/internal/config"
	"github.com/lumino-network/light-client/internal/hub"
	"github.com/lumino-network/light-client/internal/signing"
	"github.com/lumino-network/light-client/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()
	if v := os.Getenv("LIGHTCLIENT_CONFIG"); v != "" {
		*configPath = v
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logger.New("main", os.Stderr, level)

	client := hub.New(hub.Config{
		BaseURL:           cfg.Hub.URL,
		APIKey:            cfg.Hub.APIKey,
		Timeout:           cfg.Hub.Timeout,
		RequestsPerSecond: cfg.Hub.RequestsPerSecond,
	}, logger.New("hub", os.Stderr, level))

	signer, err := signing.LoadEd25519Signer(cfg.Client.KeyFile)
	if err != nil {
		log.WithError(err).Error("load signing key")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snapshots storage.Snapshotter = storage.NewMemorySink()
	if cfg.Storage.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.WithError(err).Error("open snapshot store")
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Init(ctx); err != nil {
			log.WithError(err).Error("initialise snapshot store")
			os.Exit(1)
		}
		snapshots = store
	}

	application, err := app.New(app.Options{
		Hub:               client,
		Signer:            signer,
		Snapshots:         snapshots,
		PollInterval:      cfg.Polling.Interval,
		WatchtowerRetries: cfg.Watchtower.ResubmitSchedule,
		Log:               logger.New("app", os.Stderr, level),
	})
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if err := application.Restore(ctx, client); err != nil {
		log.WithError(err).Error("restore state")
		os.Exit(1)
	}
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	server := &http.Server{
		Addr: cfg.API.ListenAddress,
		Handler: httpapi.NewHandler(httpapi.Services{
			Payments:   application.Payments,
			Watchtower: application.Watchtower,
			Onboarding: application.Onboarding,
			Notifiers:  application.Notifiers,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("API listening on %s", cfg.API.ListenAddress)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("API server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("API shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("service shutdown")
	}
	log.Info("light client stopped")
}
