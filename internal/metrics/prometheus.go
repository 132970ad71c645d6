package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики mock сервиса
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// PredictionsTotal выполненные предсказания по источнику модели
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		},
		[]string{"model_source"},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"series_id"},
	)
)

// Метрики генератора нагрузки
var (
	// LoadRequests запросы генератора по имени и вердикту
	LoadRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_requests_total",
			Help: "Total number of load generator requests by verdict",
		},
		[]string{"name", "verdict"},
	)

	// LoadRequestDuration задержка ответов, измеренная клиентом
	LoadRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loadgen_request_duration_seconds",
			Help:    "Client observed response latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .4, .5, 1, 2.5, 5},
		},
		[]string{"name"},
	)

	// LoadSLOExceeded одиночные предсказания медленнее SLO (на вердикт не влияют)
	LoadSLOExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_slo_exceeded_total",
			Help: "Requests slower than their SLO that were still marked successful",
		},
		[]string{"name"},
	)

	// ActiveUsers запущенные виртуальные пользователи
	ActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loadgen_active_users",
			Help: "Number of running virtual users",
		},
	)

	// SinkOperations операции записи результатов в Redis
	SinkOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loadgen_sink_operations_total",
			Help: "Total number of result sink operations",
		},
		[]string{"operation", "status"},
	)
)
