package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"anomaly-loadtest/internal/analytics"
	"anomaly-loadtest/internal/metrics"
	"anomaly-loadtest/internal/models"
)

const (
	endpointPredict = "/predict/{series_id}"
	endpointBatch   = "/predict/{series_id}/batch"
	endpointHealth  = "/health"
	endpointStats   = "/stats"
)

// Handler обработчик HTTP запросов mock сервиса детекции аномалий
type Handler struct {
	scorer *analytics.Scorer
	known  map[string]struct{}
	logger *zap.Logger
}

// NewHandler создает новый обработчик. Для рядов из knownSeries ответ
// помечается как модель из реестра, для остальных как fallback.
func NewHandler(scorer *analytics.Scorer, knownSeries []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	known := make(map[string]struct{}, len(knownSeries))
	for _, id := range knownSeries {
		known[id] = struct{}{}
	}
	return &Handler{
		scorer: scorer,
		known:  known,
		logger: logger,
	}
}

// Register регистрирует маршруты сервиса в mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+endpointPredict, h.Predict)
	mux.HandleFunc("POST "+endpointBatch, h.PredictBatch)
	mux.HandleFunc("GET "+endpointHealth, h.HealthCheck)
	mux.HandleFunc("GET "+endpointStats, h.GetStats)
}

// predictBody тело одиночного запроса; отсутствующие поля отличаются от нулевых
type predictBody struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Value     *float64        `json:"value"`
}

// Predict обрабатывает POST /predict/{series_id}
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, endpointPredict).Observe(time.Since(start).Seconds())
	}()

	var body predictBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.reject(w, r, endpointPredict, "Invalid JSON")
		return
	}
	if isMissing(body.Timestamp) {
		h.reject(w, r, endpointPredict, "timestamp is required")
		return
	}
	if body.Value == nil {
		h.reject(w, r, endpointPredict, "value is required")
		return
	}

	var timestamp any
	if err := json.Unmarshal(body.Timestamp, &timestamp); err != nil {
		h.reject(w, r, endpointPredict, "invalid timestamp")
		return
	}

	seriesID := r.PathValue("series_id")
	source, version := h.model(seriesID, r.URL.Query().Get("version"))
	resp := h.predict(seriesID, timestamp, *body.Value, source, version)

	metrics.PredictionsTotal.WithLabelValues(source).Inc()
	metrics.RequestsTotal.WithLabelValues(r.Method, endpointPredict, "200").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// PredictBatch обрабатывает POST /predict/{series_id}/batch
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(r.Method, endpointBatch).Observe(time.Since(start).Seconds())
	}()

	var batch models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.reject(w, r, endpointBatch, "Invalid JSON")
		return
	}
	if len(batch.Data) == 0 {
		h.reject(w, r, endpointBatch, "data must not be empty")
		return
	}

	seriesID := r.PathValue("series_id")
	source, version := h.model(seriesID, r.URL.Query().Get("version"))

	resp := models.BatchResponse{
		SeriesID:     seriesID,
		Count:        len(batch.Data),
		ModelSource:  source,
		ModelVersion: version,
		Results:      make([]models.PredictResponse, 0, len(batch.Data)),
	}
	for _, p := range batch.Data {
		result := h.predict(seriesID, p.Timestamp, p.Value, source, version)
		if result.Anomaly {
			resp.Anomalies++
		}
		resp.Results = append(resp.Results, result)
	}

	metrics.PredictionsTotal.WithLabelValues(source).Add(float64(len(batch.Data)))
	metrics.RequestsTotal.WithLabelValues(r.Method, endpointBatch, "200").Inc()
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues(r.Method, endpointHealth, "200").Inc()
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    models.StatusHealthy,
		Models:    len(h.known),
		Timestamp: time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues(r.Method, endpointStats, "200").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scorer":    h.scorer.GetStats(),
		"timestamp": time.Now(),
	})
}

func (h *Handler) model(seriesID, requested string) (source, version string) {
	if _, ok := h.known[seriesID]; !ok {
		return models.SourceFallback, models.VersionFallback
	}
	if requested == "" {
		requested = models.VersionProduction
	}
	return models.SourceRegistry, requested
}

func (h *Handler) predict(seriesID string, timestamp any, value float64, source, version string) models.PredictResponse {
	result := h.scorer.Score(seriesID, value)
	if result.IsAnomaly {
		metrics.AnomaliesDetected.WithLabelValues(seriesID).Inc()
		h.logger.Info("anomaly detected",
			zap.String("series_id", seriesID),
			zap.Float64("value", value),
			zap.Float64("z_score", result.ZScore),
			zap.Float64("rolling_avg", result.RollingAvg),
		)
	}
	return models.PredictResponse{
		SeriesID:     seriesID,
		Timestamp:    timestamp,
		Value:        value,
		Anomaly:      result.IsAnomaly,
		Score:        result.ZScore,
		ModelSource:  source,
		ModelVersion: version,
	}
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, endpoint, reason string) {
	metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(http.StatusBadRequest)).Inc()
	h.logger.Debug("bad request", zap.String("endpoint", endpoint), zap.String("reason", reason))
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: reason})
}

func isMissing(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
