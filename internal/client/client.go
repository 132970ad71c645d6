package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"anomaly-loadtest/internal/models"
)

// Response ответ API с замеренной задержкой.
// Elapsed измеряется до получения заголовков ответа, без чтения тела.
type Response struct {
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// JSON декодирует тело ответа в v
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// Client HTTP клиент для API обнаружения аномалий
type Client struct {
	baseURL string
	http    *http.Client
}

// defaultMaxConns размер пула keep-alive соединений, если maxConns не задан
const defaultMaxConns = 2

// New создает клиент для baseURL. maxConns ограничивает число простаивающих
// keep-alive соединений к сервису; обычно это число конкурентных пользователей.
func New(baseURL string, timeout time.Duration, maxConns int) *Client {
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = maxConns
	transport.MaxIdleConnsPerHost = maxConns

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Close закрывает простаивающие соединения
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// BaseURL возвращает адрес сервиса
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Predict отправляет POST /predict/{series_id}. Пустой version не добавляет query параметр.
// body может быть любым JSON-сериализуемым значением, чтобы можно было отправлять невалидные запросы.
func (c *Client) Predict(ctx context.Context, seriesID, version string, body any) (*Response, error) {
	path := "/predict/" + url.PathEscape(seriesID)
	if version != "" {
		path += "?" + url.Values{"version": {version}}.Encode()
	}
	return c.postJSON(ctx, path, body)
}

// PredictBatch отправляет POST /predict/{series_id}/batch
func (c *Client) PredictBatch(ctx context.Context, seriesID string, points []models.Point) (*Response, error) {
	return c.postJSON(ctx, "/predict/"+url.PathEscape(seriesID)+"/batch", models.BatchRequest{Data: points})
}

// Health выполняет GET /health
func (c *Client) Health(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	elapsed := time.Since(start)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Elapsed:    elapsed,
	}, nil
}
