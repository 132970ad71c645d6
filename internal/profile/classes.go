package profile

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"time"

	"anomaly-loadtest/internal/models"
)

// Имена классов виртуальных пользователей
const (
	ClassMixed   = "mixed"
	ClassStress  = "stress"
	ClassAnomaly = "anomaly"
)

// TaskFunc одна задача виртуального пользователя
type TaskFunc func(ctx context.Context, u *User) Outcome

// Task задача с относительным весом выбора
type Task struct {
	Name   string
	Weight int
	Run    TaskFunc
}

// Class набор взвешенных задач и интервал пейсинга
type Class struct {
	Name     string
	Pacing   time.Duration
	PoolSize int
	Tasks    []Task
}

// Pick выбирает задачу одним розыгрышем по накопленным весам
func (c *Class) Pick(r *rand.Rand) Task {
	n := r.IntN(c.totalWeight())
	for _, t := range c.Tasks {
		if n < t.Weight {
			return t
		}
		n -= t.Weight
	}
	// недостижимо при totalWeight > 0
	return c.Tasks[len(c.Tasks)-1]
}

func (c *Class) totalWeight() int {
	total := 0
	for _, t := range c.Tasks {
		total += t.Weight
	}
	return total
}

// Validate проверяет, что класс можно исполнять
func (c *Class) Validate() error {
	if c.Pacing < 0 {
		return fmt.Errorf("class %s: pacing must not be negative", c.Name)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("class %s: pool size must be positive", c.Name)
	}
	for _, t := range c.Tasks {
		if t.Weight < 0 {
			return fmt.Errorf("class %s: task %s has negative weight", c.Name, t.Name)
		}
	}
	if c.totalWeight() == 0 {
		return fmt.Errorf("class %s: no task has a positive weight", c.Name)
	}
	return nil
}

var builders = map[string]func(Settings) *Class{
	ClassMixed:   mixedClass,
	ClassStress:  stressClass,
	ClassAnomaly: anomalyClass,
}

var aliases = map[string]string{
	"AnomalyDetectionUser": ClassMixed,
	"StressTestUser":       ClassStress,
	"AnomalyInjectionUser": ClassAnomaly,
}

// Names возвращает имена доступных классов
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build собирает класс по имени с учетом переопределений из s
func Build(name string, s Settings) (*Class, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown class %q, expected one of %v", name, Names())
	}

	s = s.withDefaults()
	c := build(s)
	if err := s.Classes[name].apply(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// mixedClass реалистичная смешанная нагрузка: 70% single, 25% batch, 5% health
func mixedClass(s Settings) *Class {
	const singleName = "POST /predict/:id (single)"
	batchSizes := []int{25, 50, 100}

	return &Class{
		Name:     ClassMixed,
		Pacing:   time.Second,
		PoolSize: 20,
		Tasks: []Task{
			{Name: "single", Weight: 70, Run: func(ctx context.Context, u *User) Outcome {
				o := predictSingle(ctx, u, singleName, s.Normal.Sample(u.Rand))
				if o.Verdict != VerdictFail {
					judgeSingle(&o)
				}
				return o
			}},
			{Name: "batch", Weight: 25, Run: func(ctx context.Context, u *User) Outcome {
				size := batchSizes[u.Rand.IntN(len(batchSizes))]
				name := fmt.Sprintf("POST /predict/:id/batch (n=%d)", size)
				o := predictBatch(ctx, u, name, size, s.Normal)
				if o.Verdict != VerdictFail {
					judgeBatch(&o, size)
				}
				return o
			}},
			{Name: "health", Weight: 5, Run: healthCheck},
		},
	}
}

// stressClass высокочастотная нагрузка без проверки ответов
func stressClass(s Settings) *Class {
	return &Class{
		Name:     ClassStress,
		Pacing:   100 * time.Millisecond,
		PoolSize: 5,
		Tasks: []Task{
			{Name: "single", Weight: 80, Run: func(ctx context.Context, u *User) Outcome {
				return predictSingle(ctx, u, "POST /predict/:id (stress)", s.Normal.Sample(u.Rand))
			}},
			{Name: "batch", Weight: 20, Run: func(ctx context.Context, u *User) Outcome {
				size := 50 + u.Rand.IntN(151)
				return predictBatch(ctx, u, "POST /predict/:id/batch (stress)", size, s.Normal)
			}},
		},
	}
}

// anomalyClass проверка точности детекции: доля аномальных значений AnomalyRate
func anomalyClass(s Settings) *Class {
	rate := *s.AnomalyRate
	return &Class{
		Name:     ClassAnomaly,
		Pacing:   2 * time.Second,
		PoolSize: 10,
		Tasks: []Task{
			{Name: "inject", Weight: 1, Run: func(ctx context.Context, u *User) Outcome {
				value, _ := InjectValue(u.Rand, rate, s.Normal, s.Anomaly)
				return predictParsed(ctx, u, "POST /predict/:id (anomaly-test)", value)
			}},
		},
	}
}

func predictSingle(ctx context.Context, u *User, name string, value float64) Outcome {
	o, _ := predict(ctx, u, name, value)
	return o
}

func predictParsed(ctx context.Context, u *User, name string, value float64) Outcome {
	o, body := predict(ctx, u, name, value)
	if o.Verdict != VerdictFail {
		judgeParsed(&o, body)
	}
	return o
}

func predict(ctx context.Context, u *User, name string, value float64) (Outcome, []byte) {
	seriesID := u.Session.Pick(u.Rand)
	payload := models.PredictRequest{
		Timestamp: u.now().Unix(),
		Value:     value,
	}

	start := time.Now()
	resp, err := u.API.Predict(ctx, seriesID, "", payload)
	o := newOutcome(u, name, http.MethodPost, start, resp, err)
	if err != nil {
		return o, nil
	}
	return o, resp.Body
}

func predictBatch(ctx context.Context, u *User, name string, size int, dist Normal) Outcome {
	seriesID := u.Session.Pick(u.Rand)
	points := BuildBatch(u.Rand, u.now().Unix(), size, dist)

	start := time.Now()
	resp, err := u.API.PredictBatch(ctx, seriesID, points)
	return newOutcome(u, name, http.MethodPost, start, resp, err)
}

func healthCheck(ctx context.Context, u *User) Outcome {
	start := time.Now()
	resp, err := u.API.Health(ctx)
	o := newOutcome(u, "GET /health", http.MethodGet, start, resp, err)
	if err != nil {
		return o
	}
	judgeHealth(&o, resp.Body)
	return o
}
