package profile

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"anomaly-loadtest/internal/models"
)

// SingleSLO целевая задержка одиночного предсказания. Превышение только помечается.
const SingleSLO = 50 * time.Millisecond

// BatchInefficient true, если batch из size точек обработан дольше 2мс на точку
func BatchInefficient(elapsed time.Duration, size int) bool {
	return latencyMs(elapsed) > float64(size*2)
}

func latencyMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func judgeSingle(o *Outcome) {
	if o.StatusCode != http.StatusOK {
		o.fail("HTTP %d", o.StatusCode)
		return
	}
	// TODO: fail on SingleSLO breach after agreeing the threshold with the service owners
	o.SLOExceeded = o.Elapsed > SingleSLO
	o.pass()
}

func judgeBatch(o *Outcome, size int) {
	if o.StatusCode != http.StatusOK {
		o.fail("HTTP %d", o.StatusCode)
		return
	}
	if BatchInefficient(o.Elapsed, size) {
		o.fail("Batch inefficient: %.0fms for %d points", latencyMs(o.Elapsed), size)
		return
	}
	o.pass()
}

func judgeHealth(o *Outcome, body []byte) {
	if o.StatusCode != http.StatusOK {
		o.fail("HTTP %d", o.StatusCode)
		return
	}
	var health models.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		o.fail("invalid health body: %v", err)
		return
	}
	if health.Status != models.StatusHealthy {
		o.fail("Unhealthy: %s", bytes.TrimSpace(body))
		return
	}
	o.pass()
}

// judgeParsed принимает любой 200 ответ с корректным JSON телом
func judgeParsed(o *Outcome, body []byte) {
	if o.StatusCode != http.StatusOK {
		o.fail("HTTP %d", o.StatusCode)
		return
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		o.fail("invalid response body: %v", err)
		return
	}
	o.pass()
}
