package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"anomaly-loadtest/internal/client"
	"anomaly-loadtest/internal/models"
)

// SampleTimestamp и SampleValue валидный payload для всех шагов
const (
	SampleTimestamp = "2024-12-09T12:00:00Z"
	SampleValue     = 0.315
)

var banner = strings.Repeat("=", 60)

// API вызов сервиса, нужный smoke тестам
type API interface {
	Predict(ctx context.Context, seriesID, version string, body any) (*client.Response, error)
}

// AssertionError невыполненная проверка шага
type AssertionError struct {
	Step   int
	Name   string
	Reason string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Name, e.Reason)
}

// Options идентификаторы рядов и версия модели для проверок
type Options struct {
	KnownSeries   string
	UnknownSeries string
	Version       string
}

// Runner последовательно выполняет шаги и останавливается на первой ошибке
type Runner struct {
	api  API
	out  io.Writer
	opts Options
}

// New создает Runner; подробности запросов и ответов пишутся в out
func New(api API, out io.Writer, opts Options) *Runner {
	return &Runner{api: api, out: out, opts: opts}
}

type step struct {
	title string
	run   func(r *Runner, ctx context.Context, n int) error
}

var steps = []step{
	{"Prediction with existing model", (*Runner).prediction},
	{"Fallback for non-existent model", (*Runner).fallback},
	{"Prediction with specific version", (*Runner).withVersion},
	{"Invalid request (missing fields)", (*Runner).invalidRequest},
}

// Run выполняет шаги по порядку. Первая невыполненная проверка прерывает прогон.
func (r *Runner) Run(ctx context.Context) error {
	for i, s := range steps {
		n := i + 1
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintf(r.out, "%s\nTEST %d: %s\n%s\n", banner, n, s.title, banner)
		if err := s.run(r, ctx, n); err != nil {
			return err
		}
	}

	fmt.Fprintf(r.out, "\n%s\nALL TESTS PASSED!\n%s\n", banner, banner)
	return nil
}

func validPayload() models.PredictRequest {
	return models.PredictRequest{Timestamp: SampleTimestamp, Value: SampleValue}
}

func (r *Runner) call(ctx context.Context, seriesID, version string, body any) (*client.Response, error) {
	resp, err := r.api.Predict(ctx, seriesID, version, body)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(r.out, "Status: %d\n", resp.StatusCode)
	fmt.Fprintf(r.out, "Response: %s\n", pretty(resp.Body))
	return resp, nil
}

func (r *Runner) prediction(ctx context.Context, n int) error {
	resp, err := r.call(ctx, r.opts.KnownSeries, "", validPayload())
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusOK {
		var result models.PredictResponse
		if err := resp.JSON(&result); err == nil {
			fmt.Fprintf(r.out, "✅ Model source: %s\n", result.ModelSource)
			fmt.Fprintf(r.out, "✅ Anomaly: %t\n", result.Anomaly)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &AssertionError{Step: n, Name: "prediction", Reason: fmt.Sprintf("Prediction failed: expected status 200, got %d", resp.StatusCode)}
	}
	return nil
}

func (r *Runner) fallback(ctx context.Context, n int) error {
	resp, err := r.call(ctx, r.opts.UnknownSeries, "", validPayload())
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var result models.PredictResponse
	if err := resp.JSON(&result); err != nil {
		return &AssertionError{Step: n, Name: "fallback", Reason: err.Error()}
	}
	if result.ModelSource != models.SourceFallback {
		return &AssertionError{Step: n, Name: "fallback", Reason: fmt.Sprintf("Should use fallback, model_source is %q", result.ModelSource)}
	}
	if result.ModelVersion != models.VersionFallback {
		return &AssertionError{Step: n, Name: "fallback", Reason: fmt.Sprintf("Version should be fallback, model_version is %q", result.ModelVersion)}
	}
	fmt.Fprintln(r.out, "✅ Fallback working correctly")
	return nil
}

func (r *Runner) withVersion(ctx context.Context, _ int) error {
	resp, err := r.call(ctx, r.opts.KnownSeries, r.opts.Version, validPayload())
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusOK {
		var result models.PredictResponse
		if err := resp.JSON(&result); err == nil {
			fmt.Fprintf(r.out, "✅ Model version: %s\n", result.ModelVersion)
		}
	}
	return nil
}

func (r *Runner) invalidRequest(ctx context.Context, n int) error {
	// timestamp отсутствует
	resp, err := r.call(ctx, r.opts.KnownSeries, "", map[string]any{"value": SampleValue})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusBadRequest {
		return &AssertionError{Step: n, Name: "invalid request", Reason: fmt.Sprintf("Should return 400 for invalid request, got %d", resp.StatusCode)}
	}
	fmt.Fprintln(r.out, "✅ Validation working correctly")
	return nil
}

// pretty форматирует JSON с отступами; не-JSON тело возвращается как есть
func pretty(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
