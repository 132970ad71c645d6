package metrics

import (
	"context"

	"anomaly-loadtest/internal/profile"
)

// Recorder переносит результаты виртуальных пользователей в Prometheus
type Recorder struct{}

// NewRecorder создает Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record обновляет счетчики и гистограмму задержек
func (r *Recorder) Record(_ context.Context, o profile.Outcome) {
	LoadRequests.WithLabelValues(o.Name, string(o.Verdict)).Inc()
	if o.StatusCode != 0 {
		LoadRequestDuration.WithLabelValues(o.Name).Observe(o.Elapsed.Seconds())
	}
	if o.SLOExceeded {
		LoadSLOExceeded.WithLabelValues(o.Name).Inc()
	}
}
