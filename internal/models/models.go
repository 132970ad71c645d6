package models

import "time"

// PredictRequest тело запроса POST /predict/{series_id}.
// Timestamp может быть числом (Unix секунды) или строкой RFC 3339.
type PredictRequest struct {
	Timestamp any     `json:"timestamp,omitempty"`
	Value     float64 `json:"value"`
}

// Point одна точка временного ряда в batch запросе
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// BatchRequest тело запроса POST /predict/{series_id}/batch
type BatchRequest struct {
	Data []Point `json:"data"`
}

// PredictResponse ответ сервиса на одиночное предсказание
type PredictResponse struct {
	SeriesID     string  `json:"series_id"`
	Timestamp    any     `json:"timestamp"`
	Value        float64 `json:"value"`
	Anomaly      bool    `json:"anomaly"`
	Score        float64 `json:"score"`
	ModelSource  string  `json:"model_source"`
	ModelVersion string  `json:"model_version"`
}

// BatchResponse ответ сервиса на batch предсказание
type BatchResponse struct {
	SeriesID     string            `json:"series_id"`
	Count        int               `json:"count"`
	Anomalies    int               `json:"anomalies"`
	ModelSource  string            `json:"model_source"`
	ModelVersion string            `json:"model_version"`
	Results      []PredictResponse `json:"results"`
}

// HealthResponse ответ GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Models    int       `json:"models"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// Значения model_source / model_version и статус health
const (
	SourceRegistry = "registry"
	SourceFallback = "fallback"

	VersionProduction = "Production"
	VersionFallback   = "fallback"

	StatusHealthy = "healthy"
)
