package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/marco/myflix/internal/config"
	"github.com/marco/myflix/internal/connectivity"
	"github.com/marco/myflix/internal/coordinator"
	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/metadata/cache"
	"github.com/marco/myflix/internal/translate"
)

// app holds the wired collaborators for one command run
type app struct {
	cfg    *config.Config
	client *metadata.Client
	store  *cache.SQLiteStore
	coord  *coordinator.Coordinator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	client := metadata.NewClientWithConfig(metadata.ClientConfig{
		APIKey:           cfg.TMDB.APIKey,
		Language:         cfg.TMDB.Language,
		RequestTimeout:   cfg.RequestTimeout(),
		MaxAttempts:      cfg.TMDB.MaxAttempts,
		InitialBackoffMs: cfg.TMDB.InitialBackoffMs,
		RetryLogFunc: func(attempt, maxAttempts int, backoff time.Duration, err error) {
			slog.Warn("retrying TMDB request",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"backoff_ms", backoff.Milliseconds(),
				"error", err,
			)
		},
	})

	store, err := openStore(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	coord, err := coordinator.New(coordinator.Deps{
		API:     client,
		Store:   store,
		Engine:  engine,
		Network: newNetworkChecker(cfg),
	}, coordinator.Options{
		SmoothingInterval:   cfg.SmoothingInterval(),
		WatchdogTimeout:     cfg.WatchdogTimeout(),
		TranslatorCacheSize: cfg.Translation.TranslatorCacheSize,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, client: client, store: store, coord: coord}, nil
}

func (a *app) Close() {
	if err := a.coord.Close(); err != nil {
		slog.Warn("failed to release translation resources", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close cache", "error", err)
	}
}

func openStore(path string) (*cache.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	store, err := cache.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	slog.Debug("cache opened", "path", path)
	return store, nil
}

func newEngine(ctx context.Context, cfg *config.Config) (translate.Engine, error) {
	switch cfg.Translation.Engine {
	case config.EngineLibre:
		engine, err := translate.NewLibreEngine(ctx, translate.LibreConfig{
			BaseURL:          cfg.Translation.ServerURL,
			APIKey:           cfg.Translation.APIKey,
			MaxAttempts:      cfg.TMDB.MaxAttempts,
			InitialBackoffMs: cfg.TMDB.InitialBackoffMs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to translation server: %w", err)
		}
		return engine, nil
	default:
		return translate.NewStubEngine(translate.DefaultStubEngineConfig()), nil
	}
}

func newNetworkChecker(cfg *config.Config) connectivity.Checker {
	if cfg.Network.ForceOnline != nil {
		slog.Debug("connectivity overridden", "online", *cfg.Network.ForceOnline)
		return connectivity.Static(*cfg.Network.ForceOnline)
	}
	return connectivity.NewInterfaceChecker()
}

// waitIdle blocks until no model download or translation is in flight.
func waitIdle(ctx context.Context, coord *coordinator.Coordinator) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for coord.ModelDownloading().Value() || coord.Translating() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// awaitTranslation waits for the next published result targeting code.
func awaitTranslation(ctx context.Context, coord *coordinator.Coordinator, code string, trigger func() error) (translate.ResultOrError, error) {
	results := make(chan translate.ResultOrError, 1)
	// Observe replays the current value; only results after the trigger count.
	var armed atomic.Bool
	cancel := coord.TranslatedText().Observe(func(r translate.ResultOrError) {
		if !armed.Load() || r.Target.Code != code {
			return
		}
		select {
		case results <- r:
		default:
		}
	})
	defer cancel()
	armed.Store(true)

	if err := trigger(); err != nil {
		return translate.ResultOrError{}, err
	}
	select {
	case r := <-results:
		return r, nil
	case <-ctx.Done():
		return translate.ResultOrError{}, ctx.Err()
	}
}
