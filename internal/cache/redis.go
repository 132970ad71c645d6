package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"anomaly-loadtest/internal/metrics"
	"anomaly-loadtest/internal/profile"
)

// RedisSink сохраняет результаты прогона в Redis
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
	runID  string
	logger *zap.Logger
}

// FailureRecord запись об отказе
type FailureRecord struct {
	RunID      string        `json:"run_id"`
	Name       string        `json:"name"`
	UserID     int           `json:"user_id"`
	Time       time.Time     `json:"time"`
	StatusCode int           `json:"status_code"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Message    string        `json:"message"`
}

// RunInfo метаданные прогона
type RunInfo struct {
	ID        string    `json:"id"`
	Class     string    `json:"class"`
	Users     int       `json:"users"`
	BaseURL   string    `json:"base_url"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Requests  int64     `json:"requests"`
	Failures  int64     `json:"failures"`
}

// NewRedisSink создает sink и проверяет подключение
func NewRedisSink(ctx context.Context, addr, password string, db int, ttl time.Duration, runID string, logger *zap.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if logger == nil {
		logger = zap.NewNop()
	}
	sink := &RedisSink{
		client: client,
		ttl:    ttl,
		runID:  runID,
		logger: logger,
	}

	// Проверяем подключение
	if err := sink.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return sink, nil
}

func (r *RedisSink) countsKey() string {
	return fmt.Sprintf("loadgen:%s:counts", r.runID)
}

func (r *RedisSink) failuresKey() string {
	return fmt.Sprintf("loadgen:%s:failures", r.runID)
}

func (r *RedisSink) runKey(runID string) string {
	return fmt.Sprintf("loadgen:run:%s", runID)
}

const runsKey = "loadgen:runs"

// Record сохраняет результат. Ошибки Redis только логируются.
func (r *RedisSink) Record(ctx context.Context, o profile.Outcome) {
	if err := r.StoreOutcome(ctx, o); err != nil {
		metrics.SinkOperations.WithLabelValues("store_outcome", "error").Inc()
		r.logger.Warn("failed to store outcome", zap.String("name", o.Name), zap.Error(err))
		return
	}
	metrics.SinkOperations.WithLabelValues("store_outcome", "success").Inc()
}

// StoreOutcome увеличивает счетчик name|verdict, отказ дополнительно сохраняется целиком
func (r *RedisSink) StoreOutcome(ctx context.Context, o profile.Outcome) error {
	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, r.countsKey(), o.Name+"|"+string(o.Verdict), 1)
	pipe.Expire(ctx, r.countsKey(), r.ttl)

	if o.Failed() {
		record := FailureRecord{
			RunID:      r.runID,
			Name:       o.Name,
			UserID:     o.UserID,
			Time:       o.Time,
			StatusCode: o.StatusCode,
			Elapsed:    o.Elapsed,
			Message:    o.Message,
		}
		jsonData, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal failure: %w", err)
		}

		key := fmt.Sprintf("loadgen:%s:failure:%d:%d", r.runID, o.Time.UnixNano(), o.UserID)
		pipe.Set(ctx, key, jsonData, r.ttl)
		pipe.ZAdd(ctx, r.failuresKey(), redis.Z{Score: float64(o.Time.UnixNano()), Member: key})
		pipe.Expire(ctx, r.failuresKey(), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	return nil
}

// GetCounts возвращает счетчики прогона: name -> verdict -> count
func (r *RedisSink) GetCounts(ctx context.Context) (map[string]map[profile.Verdict]int64, error) {
	raw, err := r.client.HGetAll(ctx, r.countsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get counts: %w", err)
	}

	counts := make(map[string]map[profile.Verdict]int64)
	for field, value := range raw {
		idx := strings.LastIndex(field, "|")
		if idx < 0 {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s=%q: %w", field, value, err)
		}
		name, verdict := field[:idx], profile.Verdict(field[idx+1:])
		if counts[name] == nil {
			counts[name] = make(map[profile.Verdict]int64)
		}
		counts[name][verdict] = n
	}
	return counts, nil
}

// GetRecentFailures получает последние отказы прогона
func (r *RedisSink) GetRecentFailures(ctx context.Context, limit int) ([]FailureRecord, error) {
	keys, err := r.client.ZRevRange(ctx, r.failuresKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failures: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load failures: %w", err)
	}

	records := make([]FailureRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// запись истекла раньше индекса
			continue
		}
		var rec FailureRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode failure: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// StoreRun сохраняет метаданные прогона и добавляет его в индекс прогонов
func (r *RedisSink) StoreRun(ctx context.Context, run RunInfo) error {
	jsonData, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.runKey(run.ID), jsonData, r.ttl)
	pipe.ZAdd(ctx, runsKey, redis.Z{Score: float64(run.StartedAt.Unix()), Member: run.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	return nil
}

// GetRun читает метаданные прогона
func (r *RedisSink) GetRun(ctx context.Context, runID string) (RunInfo, error) {
	var run RunInfo
	data, err := r.client.Get(ctx, r.runKey(runID)).Bytes()
	if err == redis.Nil {
		return run, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return run, fmt.Errorf("failed to get run: %w", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("failed to decode run: %w", err)
	}
	return run, nil
}

// LogSummary читает сохраненные результаты прогона обратно из Redis и логирует
// метаданные прогона, счетчики, последние limit отказов и статистику пула
func (r *RedisSink) LogSummary(ctx context.Context, limit int) error {
	run, err := r.GetRun(ctx, r.runID)
	if err != nil {
		return err
	}
	counts, err := r.GetCounts(ctx)
	if err != nil {
		return err
	}
	failures, err := r.GetRecentFailures(ctx, limit)
	if err != nil {
		return err
	}

	var stored int64
	for _, byVerdict := range counts {
		for _, n := range byVerdict {
			stored += n
		}
	}
	r.logger.Info("stored run results",
		zap.String("class", run.Class),
		zap.Int64("requests", run.Requests),
		zap.Int64("failures", run.Failures),
		zap.Int64("stored_outcomes", stored),
		zap.Int("request_names", len(counts)),
		zap.Any("redis_pool", r.GetStats()),
	)
	for _, f := range failures {
		r.logger.Info("recent failure",
			zap.String("name", f.Name),
			zap.Int("user_id", f.UserID),
			zap.Int("status_code", f.StatusCode),
			zap.Duration("elapsed", f.Elapsed),
			zap.String("message", f.Message),
		)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisSink) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisSink) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetStats возвращает статистику пула соединений Redis
func (r *RedisSink) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
