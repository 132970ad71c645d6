package harness

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"anomaly-loadtest/internal/config"
	"anomaly-loadtest/internal/metrics"
	"anomaly-loadtest/internal/profile"
)

// Recorder потребитель результатов; должен быть безопасен для конкурентного вызова
type Recorder interface {
	Record(ctx context.Context, o profile.Outcome)
}

// Config параметры прогона
type Config struct {
	Users      int
	SpawnRate  float64
	Duration   time.Duration
	Seed       uint64
	PacingMode string
}

// Validate проверяет параметры прогона
func (c Config) Validate() error {
	if c.Users <= 0 {
		return fmt.Errorf("users must be positive, got %d", c.Users)
	}
	if c.SpawnRate <= 0 {
		return fmt.Errorf("spawn rate must be positive, got %g", c.SpawnRate)
	}
	switch c.PacingMode {
	case "", config.PacingConstant, config.PacingConstantPacing:
	default:
		return fmt.Errorf("unknown pacing mode %q", c.PacingMode)
	}
	return nil
}

// Runner запускает виртуальных пользователей одного класса
type Runner struct {
	cfg       Config
	class     *profile.Class
	api       profile.API
	recorders []Recorder
	logger    *zap.Logger
	active    atomic.Int64
	completed atomic.Int64
}

// New создает Runner
func New(cfg Config, class *profile.Class, api profile.API, logger *zap.Logger, recorders ...Recorder) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PacingMode == "" {
		cfg.PacingMode = config.PacingConstantPacing
	}
	return &Runner{
		cfg:       cfg,
		class:     class,
		api:       api,
		recorders: recorders,
		logger:    logger,
	}
}

// Run запускает пользователей со скоростью SpawnRate в секунду и ждет их завершения.
// Прогон заканчивается по истечении Duration (0 - без ограничения) или отмене ctx.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	if err := r.class.Validate(); err != nil {
		return err
	}

	if r.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Duration)
		defer cancel()
	}

	r.logger.Info("starting load run",
		zap.String("class", r.class.Name),
		zap.Int("users", r.cfg.Users),
		zap.Float64("spawn_rate", r.cfg.SpawnRate),
		zap.Duration("duration", r.cfg.Duration),
		zap.Duration("pacing", r.class.Pacing),
		zap.String("pacing_mode", r.cfg.PacingMode),
		zap.Uint64("seed", r.cfg.Seed),
	)

	// пользователи не возвращают ошибок: отказы запросов уходят в recorders,
	// группа только дожидается их завершения
	var g errgroup.Group
	spawn := rate.NewLimiter(rate.Limit(r.cfg.SpawnRate), 1)

	for id := 1; id <= r.cfg.Users; id++ {
		if spawn.Wait(ctx) != nil {
			break
		}
		g.Go(func() error {
			r.runUser(ctx, id)
			return nil
		})
	}

	err := g.Wait()
	r.logger.Info("load run finished", zap.Int64("tasks", r.completed.Load()))
	return err
}

// ActiveUsers количество работающих пользователей
func (r *Runner) ActiveUsers() int64 {
	return r.active.Load()
}

// Completed количество выполненных и записанных задач
func (r *Runner) Completed() int64 {
	return r.completed.Load()
}

func (r *Runner) runUser(ctx context.Context, id int) {
	u := profile.NewUser(id, r.cfg.Seed, r.class, r.api)
	recordCtx := context.WithoutCancel(ctx)

	r.active.Add(1)
	metrics.ActiveUsers.Inc()
	defer func() {
		r.active.Add(-1)
		metrics.ActiveUsers.Dec()
	}()
	r.logger.Debug("user started", zap.Int("user_id", id))

	for {
		start := time.Now()
		o := r.class.Pick(u.Rand).Run(ctx, u)
		if ctx.Err() != nil {
			// задача прервана остановкой прогона
			return
		}
		for _, rec := range r.recorders {
			rec.Record(recordCtx, o)
		}
		r.completed.Add(1)

		if sleep(ctx, nextWait(r.cfg.PacingMode, r.class.Pacing, time.Since(start))) != nil {
			return
		}
	}
}

// nextWait пауза перед следующей задачей. В режиме constant-pacing интервал
// отсчитывается от начала задачи, в режиме constant от ее конца.
func nextWait(mode string, pacing, taskTime time.Duration) time.Duration {
	if mode == config.PacingConstant {
		return pacing
	}
	if wait := pacing - taskTime; wait > 0 {
		return wait
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
