// Smoke тесты API обнаружения аномалий: четыре последовательных запроса с проверками.
//
//	go run ./cmd/smoketest -host http://localhost:8000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/config"
	"anomaly-loadtest/internal/logging"
	"anomaly-loadtest/internal/smoke"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.LoadSmoke()

	flag.StringVar(&cfg.BaseURL, "host", cfg.BaseURL, "Base URL of the anomaly detection API")
	flag.StringVar(&cfg.KnownSeries, "known", cfg.KnownSeries, "Series id with a registered model")
	flag.StringVar(&cfg.UnknownSeries, "unknown", cfg.UnknownSeries, "Series id without a model")
	flag.StringVar(&cfg.Version, "version", cfg.Version, "Model version requested in step 3")
	flag.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP client timeout")
	flag.Parse()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("running smoke tests", zap.String("base_url", cfg.BaseURL))
	runner := smoke.New(client.New(cfg.BaseURL, cfg.HTTPTimeout, 1), os.Stdout, smoke.Options{
		KnownSeries:   cfg.KnownSeries,
		UnknownSeries: cfg.UnknownSeries,
		Version:       cfg.Version,
	})

	if err := runner.Run(ctx); err != nil {
		reason := err.Error()
		var aerr *smoke.AssertionError
		if errors.As(err, &aerr) {
			reason = aerr.Reason
		}
		banner := strings.Repeat("=", 60)
		fmt.Printf("\n%s\nTEST FAILED: %s\n%s\n", banner, reason, banner)
		logger.Error("smoke tests failed", zap.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1)
	}
}
