package smoke

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomaly-loadtest/internal/analytics"
	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/handlers"
)

var defaultOptions = Options{
	KnownSeries:   "sensor_001",
	UnknownSeries: "non_existent_sensor_999",
	Version:       "Staging",
}

func mockService(t *testing.T) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	handlers.NewHandler(analytics.NewScorer(50, 3.0), []string{"sensor_001"}, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, time.Second, 1)
}

func TestRun_AllPass(t *testing.T) {
	var out bytes.Buffer
	err := New(mockService(t), &out, defaultOptions).Run(context.Background())
	require.NoError(t, err)

	transcript := out.String()
	for _, title := range []string{
		"TEST 1: Prediction with existing model",
		"TEST 2: Fallback for non-existent model",
		"TEST 3: Prediction with specific version",
		"TEST 4: Invalid request (missing fields)",
		"ALL TESTS PASSED!",
	} {
		assert.Contains(t, transcript, title)
	}
	assert.Contains(t, transcript, "Status: 200")
	assert.Contains(t, transcript, "Status: 400")
	assert.Contains(t, transcript, "Model source: registry")
	assert.Contains(t, transcript, "Fallback working correctly")
	assert.Contains(t, transcript, "Model version: Staging")
	assert.Contains(t, transcript, `"model_source": "fallback"`)
}

// fakeAPI отвечает заранее заданными ответами по series_id
type fakeAPI struct {
	replies map[string]*client.Response
	invalid *client.Response
	calls   int
}

func (f *fakeAPI) Predict(_ context.Context, seriesID, _ string, body any) (*client.Response, error) {
	f.calls++
	if m, ok := body.(map[string]any); ok {
		if _, has := m["timestamp"]; !has && f.invalid != nil {
			return f.invalid, nil
		}
	}
	if r, ok := f.replies[seriesID]; ok {
		return r, nil
	}
	return nil, errors.New("connection refused")
}

func ok(body string) *client.Response {
	return &client.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestRun_StopsOnFirstFailure(t *testing.T) {
	api := &fakeAPI{replies: map[string]*client.Response{
		"sensor_001": {StatusCode: http.StatusInternalServerError, Body: []byte(`{"error":"boom"}`)},
	}}

	var out bytes.Buffer
	err := New(api, &out, defaultOptions).Run(context.Background())

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 1, aerr.Step)
	assert.Contains(t, aerr.Reason, "500")
	assert.Equal(t, 1, api.calls)
	assert.NotContains(t, out.String(), "TEST 2")
}

func TestRun_FallbackMismatch(t *testing.T) {
	api := &fakeAPI{replies: map[string]*client.Response{
		"sensor_001":              ok(`{"model_source":"registry","model_version":"Production"}`),
		"non_existent_sensor_999": ok(`{"model_source":"registry","model_version":"Production"}`),
	}}

	err := New(api, &bytes.Buffer{}, defaultOptions).Run(context.Background())

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 2, aerr.Step)
	assert.Contains(t, aerr.Reason, "fallback")
}

func TestRun_FallbackNotFoundIsTolerated(t *testing.T) {
	api := &fakeAPI{
		replies: map[string]*client.Response{
			"sensor_001":              ok(`{"model_source":"registry","model_version":"Production"}`),
			"non_existent_sensor_999": {StatusCode: http.StatusNotFound, Body: []byte(`{"error":"no model"}`)},
		},
		invalid: &client.Response{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":"timestamp is required"}`)},
	}

	assert.NoError(t, New(api, &bytes.Buffer{}, defaultOptions).Run(context.Background()))
}

func TestRun_ValidationNotEnforced(t *testing.T) {
	// сервис принимает запрос без timestamp
	api := &fakeAPI{
		replies: map[string]*client.Response{
			"sensor_001":              ok(`{"model_source":"registry","model_version":"Production"}`),
			"non_existent_sensor_999": ok(`{"model_source":"fallback","model_version":"fallback"}`),
		},
		invalid: ok(`{"anomaly":false}`),
	}

	var out bytes.Buffer
	err := New(api, &out, defaultOptions).Run(context.Background())

	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 4, aerr.Step)
	assert.Contains(t, aerr.Reason, "400")
	assert.NotContains(t, out.String(), "ALL TESTS PASSED!")
}

func TestRun_TransportError(t *testing.T) {
	err := New(&fakeAPI{}, &bytes.Buffer{}, defaultOptions).Run(context.Background())

	require.Error(t, err)
	var aerr *AssertionError
	assert.False(t, errors.As(err, &aerr))
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", pretty([]byte(`{"a":1}`)))
	assert.Equal(t, "plain text", pretty([]byte("plain text")))
}
