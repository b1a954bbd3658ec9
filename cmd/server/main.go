package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neexbeast/tourshop/internal/api"
	"github.com/neexbeast/tourshop/internal/basket"
	"github.com/neexbeast/tourshop/internal/catalog"
	"github.com/neexbeast/tourshop/internal/config"
	"github.com/neexbeast/tourshop/internal/imagecache"
	"github.com/neexbeast/tourshop/internal/storage"
	"github.com/neexbeast/tourshop/internal/tour"
	"github.com/neexbeast/tourshop/internal/upstream"
	"github.com/neexbeast/tourshop/migrations"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $STOREFRONT_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the basket storage backend.
	kv, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.StorageBackend,
		StatePath:   cfg.StatePath,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() { _ = kv.Close() }()
	log.Info("storage ready", "backend", cfg.StorageBackend)

	// Wire dependencies.
	client := upstream.NewClient(cfg.UpstreamURL)
	index := catalog.NewIndex()
	engine := catalog.NewEngine(cfg.Locale)
	images := imagecache.New(
		imagecache.NewHTTPLoader(cfg.AssetBaseURL, cfg.ImageHosts...),
		imagecache.WithTTL(cfg.ImageTTL),
		imagecache.WithAssetRoot(cfg.AssetRoot),
		imagecache.WithConcurrency(cfg.PreloadConcurrency),
		imagecache.WithLogger(log),
	)
	store := basket.New(ctx, kv, cfg.BasketKey, log)
	store.Subscribe(func(tours []tour.Tour) {
		log.Debug("basket changed", "count", len(tours))
	})

	// The catalog can be refreshed later through the API; an unreachable
	// upstream at startup is not fatal.
	if n, err := index.Refresh(ctx, client); err != nil {
		log.Warn("initial catalog refresh failed", "err", err)
	} else {
		log.Info("catalog loaded", "count", n)
	}

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		images.Run(ctx)
	}()

	handlers := api.NewHandlers(api.Deps{
		Index:     index,
		Engine:    engine,
		Fetcher:   client,
		Images:    images,
		Basket:    store,
		Submitter: client,
		PageSize:  cfg.PageSize,
	}, log)
	router := api.NewRouter(handlers, cfg.BearerToken, kv, client, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		<-sweeperDone
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	<-sweeperDone

	log.Info("server shut down cleanly")
	return nil
}
