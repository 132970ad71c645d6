// Mock сервис обнаружения аномалий для локальных прогонов генератора и smoke тестов.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"anomaly-loadtest/internal/analytics"
	"anomaly-loadtest/internal/config"
	"anomaly-loadtest/internal/handlers"
	"anomaly-loadtest/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.LoadServer()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting mock anomaly detection service")

	// Инициализация детектора
	scorer := analytics.NewScorer(cfg.WindowSize, cfg.AnomalyThreshold)
	logger.Info("scorer configured",
		zap.Int("window_size", cfg.WindowSize),
		zap.Float64("threshold", cfg.AnomalyThreshold),
		zap.Int("known_series", len(cfg.KnownSeries)),
	)

	handler := handlers.NewHandler(scorer, cfg.KnownSeries, logger)

	mux := http.NewServeMux()
	handler.Register(mux)

	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		return
	}

	logger.Info("server stopped gracefully")
}
