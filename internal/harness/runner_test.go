package harness

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/config"
	"anomaly-loadtest/internal/models"
	"anomaly-loadtest/internal/profile"
)

type okAPI struct{}

func (okAPI) Predict(context.Context, string, string, any) (*client.Response, error) {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(`{}`), Elapsed: time.Millisecond}, nil
}

func (okAPI) PredictBatch(context.Context, string, []models.Point) (*client.Response, error) {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(`{}`), Elapsed: time.Millisecond}, nil
}

func (okAPI) Health(context.Context) (*client.Response, error) {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(`{"status":"healthy"}`), Elapsed: time.Millisecond}, nil
}

// collector запоминает все результаты
type collector struct {
	mu       sync.Mutex
	outcomes []profile.Outcome
}

func (c *collector) Record(_ context.Context, o profile.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

func (c *collector) byUser() map[int]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[int]int)
	for _, o := range c.outcomes {
		counts[o.UserID]++
	}
	return counts
}

func fastClass(t *testing.T, pacing time.Duration) *profile.Class {
	t.Helper()
	c, err := profile.Build(profile.ClassMixed, profile.Settings{
		Classes: map[string]profile.ClassSettings{
			profile.ClassMixed: {Pacing: pacing},
		},
	})
	require.NoError(t, err)
	return c
}

func TestRunner_StopsAfterDuration(t *testing.T) {
	rec := &collector{}
	r := New(Config{
		Users:     4,
		SpawnRate: 100,
		Duration:  300 * time.Millisecond,
		Seed:      1,
	}, fastClass(t, 20*time.Millisecond), okAPI{}, zap.NewNop(), rec)

	start := time.Now()
	require.NoError(t, r.Run(context.Background()))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	assert.Zero(t, r.ActiveUsers())

	counts := rec.byUser()
	assert.Len(t, counts, 4)
	for id := 1; id <= 4; id++ {
		assert.Positive(t, counts[id], "user %d recorded nothing", id)
	}
	assert.Equal(t, int64(len(rec.outcomes)), r.Completed())
}

func TestRunner_PacingLimitsRate(t *testing.T) {
	rec := &collector{}
	r := New(Config{
		Users:     1,
		SpawnRate: 1,
		Duration:  550 * time.Millisecond,
	}, fastClass(t, 100*time.Millisecond), okAPI{}, nil, rec)

	require.NoError(t, r.Run(context.Background()))

	// старт-старт 100мс: задачи в 0, 100, ..., 500мс
	n := len(rec.outcomes)
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 7)
}

func TestRunner_ContextCancel(t *testing.T) {
	rec := &collector{}
	r := New(Config{
		Users:     3,
		SpawnRate: 1000,
		Seed:      2,
	}, fastClass(t, 10*time.Millisecond), okAPI{}, zap.NewNop(), rec)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, r.Run(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.NotEmpty(t, rec.outcomes)
}

func TestRunner_SpawnRate(t *testing.T) {
	rec := &collector{}
	// 1 пользователь в секунду: за 300мс успевает стартовать только первый
	r := New(Config{
		Users:     5,
		SpawnRate: 1,
		Duration:  300 * time.Millisecond,
	}, fastClass(t, 10*time.Millisecond), okAPI{}, zap.NewNop(), rec)

	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, rec.byUser(), 1)
}

func TestRunner_SpawnRateSpacesUsers(t *testing.T) {
	rec := &collector{}
	// 10 пользователей в секунду: старты примерно через 100мс
	r := New(Config{
		Users:     4,
		SpawnRate: 10,
		Duration:  700 * time.Millisecond,
	}, fastClass(t, time.Second), okAPI{}, zap.NewNop(), rec)

	require.NoError(t, r.Run(context.Background()))

	first := make(map[int]time.Time)
	for _, o := range rec.outcomes {
		if _, seen := first[o.UserID]; !seen {
			first[o.UserID] = o.Time
		}
	}
	require.Len(t, first, 4)
	assert.GreaterOrEqual(t, first[4].Sub(first[1]), 250*time.Millisecond)
	assert.Less(t, first[4].Sub(first[1]), 600*time.Millisecond)
}

func TestRunner_InvalidConfig(t *testing.T) {
	class := fastClass(t, time.Millisecond)

	assert.Error(t, New(Config{Users: 0, SpawnRate: 1}, class, okAPI{}, nil).Run(context.Background()))
	assert.Error(t, New(Config{Users: 1, SpawnRate: 0}, class, okAPI{}, nil).Run(context.Background()))
	assert.Error(t, New(Config{Users: 1, SpawnRate: 1, PacingMode: "burst"}, class, okAPI{}, nil).Run(context.Background()))
}

func TestNextWait(t *testing.T) {
	assert.Equal(t, 700*time.Millisecond, nextWait(config.PacingConstantPacing, time.Second, 300*time.Millisecond))
	assert.Zero(t, nextWait(config.PacingConstantPacing, time.Second, 2*time.Second))
	assert.Equal(t, time.Second, nextWait(config.PacingConstant, time.Second, 300*time.Millisecond))
}
