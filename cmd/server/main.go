package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/raywall/docstore-toolkit/mongodb"
	"github.com/raywall/docstore-toolkit/pkg/analysis"
	"github.com/raywall/docstore-toolkit/pkg/backup"
	"github.com/raywall/docstore-toolkit/pkg/cache"
	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/raywall/docstore-toolkit/pkg/logger"
	"github.com/raywall/docstore-toolkit/pkg/metrics"
	"github.com/raywall/docstore-toolkit/pkg/observability"
	"github.com/raywall/docstore-toolkit/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Configure(cfg.Log)
	for _, warning := range cfg.Warnings() {
		log.Warn().Msg(warning)
	}

	provider, err := observability.SetupMetrics(cfg.Metrics)
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}
	recorder := metrics.NewRecorder(provider, log)

	client := mongodb.NewClient(mongodb.ClientConfig{
		URI:                    cfg.Mongo.MongoURI(),
		Database:               cfg.Mongo.Database,
		Collection:             cfg.Mongo.Collection,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		ConnectTimeout:         cfg.Mongo.ConnectTimeout,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
		RetryWrites:            cfg.Mongo.RetryWrites,
		RetryReads:             cfg.Mongo.RetryReads,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("uri", cfg.Mongo.RedactedURI()).Msg("connecting to mongodb")
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("disconnect failed")
		}
	}()

	if err := client.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("index bootstrap failed, continuing")
	}

	store := mongodb.WithMetrics(mongodb.NewStore(client, log), recorder)

	docCache := cache.New(cfg.Redis, log)
	defer docCache.Close()

	srv := transport.NewServer(transport.Options{
		Config:   cfg,
		Store:    store,
		Admin:    client,
		Runner:   analysis.NewRunner(store, analysis.NewRegistry(), log),
		Backups:  backup.NewManager(store, cfg.Backup.Dir, log),
		Cache:    docCache,
		Recorder: recorder,
		Logger:   log,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
