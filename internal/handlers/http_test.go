package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomaly-loadtest/internal/analytics"
	"anomaly-loadtest/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(analytics.NewScorer(50, 3.0), []string{"sensor_001"}, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestPredict_KnownSeries(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/predict/sensor_001", `{"timestamp":"2024-12-09T12:00:00Z","value":0.315}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out models.PredictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "sensor_001", out.SeriesID)
	assert.Equal(t, "2024-12-09T12:00:00Z", out.Timestamp)
	assert.Equal(t, 0.315, out.Value)
	assert.Equal(t, models.SourceRegistry, out.ModelSource)
	assert.Equal(t, models.VersionProduction, out.ModelVersion)
	assert.False(t, out.Anomaly)
}

func TestPredict_Version(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/predict/sensor_001?version=Staging", `{"timestamp":1733745600,"value":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.PredictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Staging", out.ModelVersion)
	assert.Equal(t, float64(1733745600), out.Timestamp)
}

func TestPredict_Fallback(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/predict/non_existent_sensor_999?version=Staging", `{"timestamp":"2024-12-09T12:00:00Z","value":0.315}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.PredictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, models.SourceFallback, out.ModelSource)
	assert.Equal(t, models.VersionFallback, out.ModelVersion)
}

func TestPredict_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing timestamp", `{"value":0.315}`},
		{"null timestamp", `{"timestamp":null,"value":0.315}`},
		{"missing value", `{"timestamp":"2024-12-09T12:00:00Z"}`},
		{"invalid json", `{"timestamp":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/predict/sensor_001", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestPredict_FlagsAnomaly(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 20; i++ {
		resp := post(t, srv.URL+"/predict/sensor_001", fmt.Sprintf(`{"timestamp":%d,"value":%d}`, i, 24+i%3))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := post(t, srv.URL+"/predict/sensor_001", `{"timestamp":21,"value":100}`)
	var out models.PredictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Anomaly)
	assert.Greater(t, out.Score, 3.0)
}

func TestPredictBatch(t *testing.T) {
	srv := newTestServer(t)

	points := make([]models.Point, 30)
	for i := range points {
		points[i] = models.Point{Timestamp: int64(1733745600 + i), Value: float64(25 + i%2)}
	}
	points[29].Value = 500
	body, err := json.Marshal(models.BatchRequest{Data: points})
	require.NoError(t, err)

	resp := post(t, srv.URL+"/predict/sensor_001/batch", string(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.BatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 30, out.Count)
	assert.Len(t, out.Results, 30)
	assert.Equal(t, 1, out.Anomalies)
	assert.True(t, out.Results[29].Anomaly)
	assert.Equal(t, models.SourceRegistry, out.ModelSource)
}

func TestPredictBatch_Empty(t *testing.T) {
	srv := newTestServer(t)

	resp := post(t, srv.URL+"/predict/sensor_001/batch", `{"data":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, models.StatusHealthy, out.Status)
	assert.Equal(t, 1, out.Models)
	assert.False(t, out.Timestamp.IsZero())
}

func TestGetStats(t *testing.T) {
	srv := newTestServer(t)
	post(t, srv.URL+"/predict/sensor_001", `{"timestamp":1,"value":1}`)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Scorer map[string]any `json:"scorer"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, float64(1), out.Scorer["series_tracked"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/predict/sensor_001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
