package profile

import (
	"math/rand/v2"

	"anomaly-loadtest/internal/models"
)

// Normal параметры нормального распределения значений
type Normal struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
}

// DefaultNormal распределение "нормальных" показаний датчика
var DefaultNormal = Normal{Mean: 25.0, StdDev: 5.0}

// DefaultAnomaly распределение имитируемых аномалий
var DefaultAnomaly = Normal{Mean: 100.0, StdDev: 10.0}

// Sample возвращает одно значение из распределения
func (n Normal) Sample(r *rand.Rand) float64 {
	return r.NormFloat64()*n.StdDev + n.Mean
}

// BuildBatch строит size точек с метками base, base+1, ..., base+size-1
func BuildBatch(r *rand.Rand, base int64, size int, dist Normal) []models.Point {
	points := make([]models.Point, size)
	for i := range points {
		points[i] = models.Point{
			Timestamp: base + int64(i),
			Value:     dist.Sample(r),
		}
	}
	return points
}

// InjectValue с вероятностью rate берет значение из anomaly, иначе из normal.
// Второй результат показывает, было ли значение аномальным.
func InjectValue(r *rand.Rand, rate float64, normal, anomaly Normal) (float64, bool) {
	if r.Float64() < rate {
		return anomaly.Sample(r), true
	}
	return normal.Sample(r), false
}
