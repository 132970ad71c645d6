// Генератор нагрузки для API обнаружения аномалий.
//
//	go run ./cmd/loadgen -class mixed -users 50 -spawn-rate 5 -duration 2m
//	go run ./cmd/loadgen -class stress -host http://localhost:8000 -metrics-addr :9100
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"anomaly-loadtest/internal/cache"
	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/config"
	"anomaly-loadtest/internal/harness"
	"anomaly-loadtest/internal/logging"
	"anomaly-loadtest/internal/metrics"
	"anomaly-loadtest/internal/profile"
	"anomaly-loadtest/internal/stats"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := config.LoadLoadgen()

	flag.StringVar(&cfg.BaseURL, "host", cfg.BaseURL, "Base URL of the anomaly detection API")
	flag.StringVar(&cfg.Class, "class", cfg.Class, "User class: "+strings.Join(profile.Names(), ", "))
	flag.IntVar(&cfg.Users, "users", cfg.Users, "Number of virtual users")
	flag.Float64Var(&cfg.SpawnRate, "spawn-rate", cfg.SpawnRate, "Users started per second")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "Run duration, 0 runs until interrupted")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed, 0 picks one from the clock")
	flag.StringVar(&cfg.PacingMode, "pacing-mode", cfg.PacingMode, "constant-pacing or constant")
	flag.StringVar(&cfg.ProfileFile, "profile", cfg.ProfileFile, "YAML file with profile overrides")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address for the Prometheus /metrics listener")
	flag.StringVar(&cfg.Redis.Addr, "redis", cfg.Redis.Addr, "Redis address for storing results")
	flag.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP client timeout")
	flag.Parse()

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("load run failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.LoadgenConfig, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	var settings profile.Settings
	if cfg.ProfileFile != "" {
		s, err := profile.LoadSettings(cfg.ProfileFile)
		if err != nil {
			return err
		}
		settings = s
	}
	class, err := profile.Build(cfg.Class, settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	aggregator := stats.NewAggregator(0)
	aggregator.Start(2)
	recorders := []harness.Recorder{aggregator, metrics.NewRecorder()}

	var sink *cache.RedisSink
	if cfg.Redis.Enabled() {
		sink, err = cache.NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.Retention, runID, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		recorders = append(recorders, sink)
		logger.Info("storing results in Redis", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	info := cache.RunInfo{
		ID:        runID,
		Class:     class.Name,
		Users:     cfg.Users,
		BaseURL:   cfg.BaseURL,
		StartedAt: time.Now().UTC(),
	}
	if sink != nil {
		if err := sink.StoreRun(ctx, info); err != nil {
			logger.Warn("failed to store run", zap.Error(err))
		}
	}

	api := client.New(cfg.BaseURL, cfg.HTTPTimeout, cfg.Users)
	defer api.Close()

	runner := harness.New(harness.Config{
		Users:      cfg.Users,
		SpawnRate:  cfg.SpawnRate,
		Duration:   cfg.Duration,
		Seed:       cfg.Seed,
		PacingMode: cfg.PacingMode,
	}, class, api, logger, recorders...)

	runErr := runner.Run(ctx)
	aggregator.Stop()

	report := aggregator.Snapshot()
	if err := stats.WriteReport(os.Stdout, report); err != nil {
		return err
	}

	if sink != nil {
		info.EndedAt = time.Now().UTC()
		info.Requests = report.Total.Requests
		info.Failures = report.Total.Failures
		if err := sink.StoreRun(context.WithoutCancel(ctx), info); err != nil {
			logger.Warn("failed to store run", zap.Error(err))
		} else if err := sink.LogSummary(context.WithoutCancel(ctx), 10); err != nil {
			logger.Warn("failed to read back run results", zap.Error(err))
		}
	}
	return runErr
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics listener started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()
	return srv
}
