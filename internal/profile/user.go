package profile

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/models"
)

// API вызовы сервиса, которые выполняют задачи профиля
type API interface {
	Predict(ctx context.Context, seriesID, version string, body any) (*client.Response, error)
	PredictBatch(ctx context.Context, seriesID string, points []models.Point) (*client.Response, error)
	Health(ctx context.Context) (*client.Response, error)
}

// SeriesPrefix префикс идентификаторов рядов
const SeriesPrefix = "sensor_"

// Session пул идентификаторов рядов виртуального пользователя.
// Создается один раз при старте пользователя и дальше только читается.
type Session struct {
	SeriesIDs []string
}

// NewSession генерирует size уникальных идентификаторов sensor_001..sensor_NNN
func NewSession(size int) *Session {
	return &Session{SeriesIDs: SeriesIDs(SeriesPrefix, size)}
}

// SeriesIDs форматирует идентификаторы prefix + индекс с нулями до трех знаков
func SeriesIDs(prefix string, size int) []string {
	ids := make([]string, 0, size)
	for i := 1; i <= size; i++ {
		ids = append(ids, fmt.Sprintf("%s%03d", prefix, i))
	}
	return ids
}

// Pick равномерно выбирает идентификатор из пула
func (s *Session) Pick(r *rand.Rand) string {
	return s.SeriesIDs[r.IntN(len(s.SeriesIDs))]
}

// User виртуальный пользователь: собственный генератор случайных чисел и пул рядов
type User struct {
	ID      int
	Rand    *rand.Rand
	Session *Session
	API     API
	Now     func() time.Time
}

// NewUser создает пользователя класса c с детерминированным источником случайности
func NewUser(id int, seed uint64, c *Class, api API) *User {
	return &User{
		ID:      id,
		Rand:    rand.New(rand.NewPCG(seed, uint64(id))),
		Session: NewSession(c.PoolSize),
		API:     api,
		Now:     time.Now,
	}
}

func (u *User) now() time.Time {
	if u.Now == nil {
		return time.Now()
	}
	return u.Now()
}
