package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olastephen/video-audio-downloader/config"
	"github.com/olastephen/video-audio-downloader/internal/pipeline"
	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/scheduler"
	"github.com/olastephen/video-audio-downloader/internal/server"
	"github.com/olastephen/video-audio-downloader/internal/storage"
	"github.com/olastephen/video-audio-downloader/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := loadConfig(*configPath)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	objStore, err := storage.NewMinIO(ctx, storage.Options{
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Secure:    cfg.Storage.Secure,
	})
	if err != nil {
		slog.Error("could not initialize object storage", "error", err)
		os.Exit(1)
	}

	var durable store.Store
	if cfg.Database.Path != "" {
		db, err := store.NewSQLite(ctx, cfg.Database.Path)
		if err != nil {
			slog.Warn("running without durable task store", "error", err)
		} else {
			durable = db
			defer db.Close()
		}
	}

	primary := provider.NewYtDLP()
	providers := []provider.Provider{
		primary,
		provider.NewNativeYouTube(),
		provider.NewYoutubeDL(),
		provider.NewDirect(),
	}

	pipe := pipeline.New(objStore, pipeline.Config{
		ProviderTimeout:  cfg.Downloads.ProviderTimeout.Std(),
		UploadTimeout:    cfg.Downloads.UploadTimeout.Std(),
		MinArtifactBytes: cfg.Downloads.MinArtifactBytes,
		WorkDir:          cfg.Downloads.WorkDir,
		URLExpiry:        cfg.Storage.URLExpiry.Std(),
	})

	sched := scheduler.New(pipe, providers, store.NewMemory(), durable, scheduler.Config{
		MaxConcurrent:   cfg.Downloads.MaxConcurrent,
		Retention:       cfg.Downloads.Retention.Std(),
		CleanupInterval: cfg.Downloads.CleanupInterval.Std(),
	})

	srv := server.New(cfg, sched, objStore, primary)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		slog.Info("server listening", "port", cfg.Server.Port, "bucket", cfg.Storage.Bucket)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "error", err)
	}

	sched.Shutdown()
	slog.Info("shutdown complete")
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("could not load config", "path", path, "error", err)
		os.Exit(1)
	}
	return cfg
}
