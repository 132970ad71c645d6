package analytics

import (
	"math"
	"sync"
)

// minSamples минимальный размер окна, после которого выставляется флаг аномалии
const minSamples = 5

// seriesWindow хранит скользящее окно значений одного ряда
type seriesWindow struct {
	values  []float64
	mu      sync.Mutex
	maxSize int
}

// Scorer детектор аномалий по z-score относительно скользящего окна
type Scorer struct {
	windows          map[string]*seriesWindow
	mu               sync.RWMutex
	windowSize       int
	anomalyThreshold float64
}

// Result результат оценки одного значения
type Result struct {
	SeriesID    string
	Value       float64
	RollingAvg  float64
	StandardDev float64
	ZScore      float64
	IsAnomaly   bool
}

// NewScorer создает новый детектор
func NewScorer(windowSize int, anomalyThreshold float64) *Scorer {
	if windowSize < minSamples {
		windowSize = minSamples
	}
	return &Scorer{
		windows:          make(map[string]*seriesWindow),
		windowSize:       windowSize,
		anomalyThreshold: anomalyThreshold,
	}
}

// Score оценивает value относительно предыдущих значений ряда и добавляет его в окно
func (s *Scorer) Score(seriesID string, value float64) Result {
	window := s.window(seriesID)

	window.mu.Lock()
	defer window.mu.Unlock()

	avg := CalculateAverage(window.values)
	stdDev := CalculateStdDev(window.values, avg)

	var zScore float64
	if stdDev > 0 {
		zScore = (value - avg) / stdDev
	}
	isAnomaly := len(window.values) >= minSamples && math.Abs(zScore) > s.anomalyThreshold

	// аномальные значения в окно не добавляются
	if !isAnomaly {
		window.values = append(window.values, value)
		if len(window.values) > window.maxSize {
			window.values = window.values[1:]
		}
	}

	return Result{
		SeriesID:    seriesID,
		Value:       value,
		RollingAvg:  avg,
		StandardDev: stdDev,
		ZScore:      zScore,
		IsAnomaly:   isAnomaly,
	}
}

func (s *Scorer) window(seriesID string) *seriesWindow {
	s.mu.RLock()
	window, exists := s.windows[seriesID]
	s.mu.RUnlock()
	if exists {
		return window
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if window, exists = s.windows[seriesID]; exists {
		return window
	}
	window = &seriesWindow{
		values:  make([]float64, 0, s.windowSize),
		maxSize: s.windowSize,
	}
	s.windows[seriesID] = window
	return window
}

// CalculateAverage вычисляет среднее значение
func CalculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// CalculateStdDev вычисляет стандартное отклонение
func CalculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

// GetStats возвращает статистику детектора
func (s *Scorer) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"series_tracked": len(s.windows),
		"window_size":    s.windowSize,
		"threshold":      s.anomalyThreshold,
	}
}
