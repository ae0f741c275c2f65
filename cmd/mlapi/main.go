package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/mlapi/internal/config"
	"github.com/YuminosukeSato/mlapi/internal/handler"
	"github.com/YuminosukeSato/mlapi/internal/middleware"
	"github.com/YuminosukeSato/mlapi/internal/router"
	"github.com/YuminosukeSato/mlapi/internal/service/dataset"
	"github.com/YuminosukeSato/mlapi/internal/service/ml"
	"github.com/YuminosukeSato/mlapi/internal/store"
	"github.com/YuminosukeSato/mlapi/internal/telemetry"
	"github.com/YuminosukeSato/mlapi/pkg/errors"
	"github.com/YuminosukeSato/mlapi/pkg/log"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", log.ErrAttr(err))
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := log.SetupLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()
	datasets := dataset.NewService(store.NewMemory[*dataset.Dataset]("Dataset", store.DatasetIDs), metrics)
	registry := ml.NewRegistry(store.NewMemory[*ml.Record]("Model", store.ModelIDs), cfg.ML.ModelsDir, cfg.ML.Persist, metrics)
	if _, err := registry.Restore(ctx); err != nil {
		return errors.Wrap(err, "failed to restore models")
	}
	trainer := ml.NewTrainer(
		ml.WithNEstimators(cfg.ML.NEstimators),
		ml.WithRandomState(cfg.ML.RandomState),
		ml.WithMaxDepth(cfg.ML.MaxDepth),
	)
	models := ml.NewService(datasets, trainer, registry, metrics)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log.GetLoggerWithName("http"))
		limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)
	}

	handlers := handler.NewHandlers(cfg.App.Version, cfg.Server.MaxUploadBytes(), datasets, models)
	r := router.SetupRouter(handlers, metrics, cfg.CORS, limiter)

	readTimeout, writeTimeout, shutdownTimeout := cfg.Server.Timeouts()
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", srv.Addr, "version", cfg.App.Version, "environment", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	slog.Info("Server exited")
	return nil
}
