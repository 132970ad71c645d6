package stats

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"anomaly-loadtest/internal/analytics"
	"anomaly-loadtest/internal/profile"
)

const (
	// DefaultWindowSize размер скользящего окна задержек на одно имя запроса
	DefaultWindowSize = 100
	// maxSamples предел выборки для перцентилей (reservoir sampling)
	maxSamples = 10000
	// maxFailureKey длина сообщения об ошибке в таблице отказов
	maxFailureKey = 200
)

// entry статистика одного имени запроса
type entry struct {
	mu          sync.Mutex
	requests    int64
	passes      int64
	failures    int64
	noVerdict   int64
	sloExceeded int64
	total       time.Duration
	min         time.Duration
	max         time.Duration
	samples     []time.Duration
	window      []float64
	windowSize  int
	errors      map[string]int64
}

// Aggregator собирает результаты виртуальных пользователей
type Aggregator struct {
	entries    map[string]*entry
	mu         sync.RWMutex
	windowSize int
	outcomes   chan profile.Outcome
	wg         sync.WaitGroup
	startedAt  time.Time
	stoppedAt  time.Time
	stopOnce   sync.Once
}

// NewAggregator создает новый агрегатор
func NewAggregator(windowSize int) *Aggregator {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Aggregator{
		entries:    make(map[string]*entry),
		windowSize: windowSize,
		outcomes:   make(chan profile.Outcome, 1000),
	}
}

// Start запускает обработчики в goroutines
func (a *Aggregator) Start(workers int) {
	a.mu.Lock()
	a.startedAt = time.Now()
	a.mu.Unlock()

	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.process()
	}
}

// Stop дожидается обработки всех принятых результатов.
// Record после Stop вызывать нельзя.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.outcomes)
		a.wg.Wait()
		a.mu.Lock()
		a.stoppedAt = time.Now()
		a.mu.Unlock()
	})
}

// Record ставит результат в очередь на обработку
func (a *Aggregator) Record(_ context.Context, o profile.Outcome) {
	a.outcomes <- o
}

func (a *Aggregator) process() {
	defer a.wg.Done()
	for o := range a.outcomes {
		a.add(o)
	}
}

func (a *Aggregator) add(o profile.Outcome) {
	a.mu.Lock()
	e, exists := a.entries[o.Name]
	if !exists {
		e = &entry{
			window:     make([]float64, 0, a.windowSize),
			windowSize: a.windowSize,
			errors:     make(map[string]int64),
		}
		a.entries[o.Name] = e
	}
	a.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.requests++
	switch o.Verdict {
	case profile.VerdictPass:
		e.passes++
	case profile.VerdictFail:
		e.failures++
		e.errors[failureKey(o.Message)]++
	default:
		e.noVerdict++
	}
	if o.SLOExceeded {
		e.sloExceeded++
	}

	e.total += o.Elapsed
	if e.requests == 1 || o.Elapsed < e.min {
		e.min = o.Elapsed
	}
	if o.Elapsed > e.max {
		e.max = o.Elapsed
	}

	if len(e.samples) < maxSamples {
		e.samples = append(e.samples, o.Elapsed)
	} else if i := rand.Int64N(e.requests); i < maxSamples {
		e.samples[i] = o.Elapsed
	}

	e.window = append(e.window, float64(o.Elapsed)/float64(time.Millisecond))
	if len(e.window) > e.windowSize {
		e.window = e.window[1:]
	}
}

// failureKey обрезает сообщение до maxFailureKey байт, не разрывая символ UTF-8
func failureKey(msg string) string {
	if len(msg) <= maxFailureKey {
		return msg
	}
	cut := maxFailureKey
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// EntryStats снимок статистики одного имени запроса
type EntryStats struct {
	Name        string
	Requests    int64
	Passes      int64
	Failures    int64
	NoVerdict   int64
	SLOExceeded int64
	Min         time.Duration
	Max         time.Duration
	Mean        time.Duration
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
	// RollingMeanMs и RollingStdDevMs считаются по последним windowSize ответам
	RollingMeanMs   float64
	RollingStdDevMs float64
	RPS             float64
}

// FailureRate доля отказов
func (s EntryStats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests)
}

// FailureStats строка таблицы отказов
type FailureStats struct {
	Name    string
	Message string
	Count   int64
}

// Report снимок всей статистики прогона
type Report struct {
	Duration time.Duration
	Entries  []EntryStats
	Total    EntryStats
	Failures []FailureStats
}

// Snapshot возвращает текущую статистику, отсортированную по имени
func (a *Aggregator) Snapshot() Report {
	a.mu.RLock()
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	entries := make(map[string]*entry, len(a.entries))
	for name, e := range a.entries {
		entries[name] = e
	}
	duration := a.elapsed()
	a.mu.RUnlock()
	slices.Sort(names)

	report := Report{Duration: duration}
	total := EntryStats{Name: "Aggregated"}
	var allSamples []time.Duration
	var allWindow []float64
	var sumElapsed time.Duration

	for _, name := range names {
		e := entries[name]
		e.mu.Lock()
		s := e.stats(name, duration)
		allSamples = append(allSamples, e.samples...)
		allWindow = append(allWindow, e.window...)
		sumElapsed += e.total
		for msg, count := range e.errors {
			report.Failures = append(report.Failures, FailureStats{Name: name, Message: msg, Count: count})
		}
		e.mu.Unlock()

		report.Entries = append(report.Entries, s)
		total.Requests += s.Requests
		total.Passes += s.Passes
		total.Failures += s.Failures
		total.NoVerdict += s.NoVerdict
		total.SLOExceeded += s.SLOExceeded
		if s.Requests > 0 && (total.Min == 0 || s.Min < total.Min) {
			total.Min = s.Min
		}
		if s.Max > total.Max {
			total.Max = s.Max
		}
	}

	if total.Requests > 0 {
		total.Mean = sumElapsed / time.Duration(total.Requests)
		total.P50, total.P95, total.P99 = percentiles(allSamples)
		total.RollingMeanMs = analytics.CalculateAverage(allWindow)
		total.RollingStdDevMs = analytics.CalculateStdDev(allWindow, total.RollingMeanMs)
		if duration > 0 {
			total.RPS = float64(total.Requests) / duration.Seconds()
		}
	}
	report.Total = total

	slices.SortFunc(report.Failures, func(x, y FailureStats) int {
		return cmp.Or(
			cmp.Compare(y.Count, x.Count),
			cmp.Compare(x.Name, y.Name),
			cmp.Compare(x.Message, y.Message),
		)
	})

	return report
}

func (a *Aggregator) elapsed() time.Duration {
	if a.startedAt.IsZero() {
		return 0
	}
	if a.stoppedAt.IsZero() {
		return time.Since(a.startedAt)
	}
	return a.stoppedAt.Sub(a.startedAt)
}

func (e *entry) stats(name string, duration time.Duration) EntryStats {
	s := EntryStats{
		Name:        name,
		Requests:    e.requests,
		Passes:      e.passes,
		Failures:    e.failures,
		NoVerdict:   e.noVerdict,
		SLOExceeded: e.sloExceeded,
		Min:         e.min,
		Max:         e.max,
	}
	if e.requests > 0 {
		s.Mean = e.total / time.Duration(e.requests)
	}
	s.P50, s.P95, s.P99 = percentiles(e.samples)
	s.RollingMeanMs = analytics.CalculateAverage(e.window)
	s.RollingStdDevMs = analytics.CalculateStdDev(e.window, s.RollingMeanMs)
	if duration > 0 {
		s.RPS = float64(e.requests) / duration.Seconds()
	}
	return s
}

// percentiles вычисляет p50, p95, p99 методом ближайшего ранга
func percentiles(samples []time.Duration) (p50, p95, p99 time.Duration) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return rank(sorted, 50), rank(sorted, 95), rank(sorted, 99)
}

func rank(sorted []time.Duration, p int) time.Duration {
	idx := (p*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
