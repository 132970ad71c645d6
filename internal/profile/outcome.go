package profile

import (
	"fmt"
	"time"

	"anomaly-loadtest/internal/client"
)

// Verdict результат проверки ответа
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	// VerdictNone запрос учтен в статистике, но не проверялся
	VerdictNone Verdict = "none"
)

// Outcome результат одной задачи виртуального пользователя
type Outcome struct {
	Name       string
	Method     string
	UserID     int
	Time       time.Time
	StatusCode int
	Elapsed    time.Duration
	Verdict    Verdict
	Message    string
	// SLOExceeded отмечает медленный ответ, не меняя вердикт
	SLOExceeded bool
}

// Failed true для вердикта fail
func (o Outcome) Failed() bool {
	return o.Verdict == VerdictFail
}

func (o *Outcome) pass() {
	o.Verdict = VerdictPass
	o.Message = ""
}

func (o *Outcome) fail(format string, args ...any) {
	o.Verdict = VerdictFail
	o.Message = fmt.Sprintf(format, args...)
}

// newOutcome заполняет общие поля. Ошибка транспорта дает fail в любом классе.
func newOutcome(u *User, name, method string, start time.Time, resp *client.Response, err error) Outcome {
	o := Outcome{
		Name:    name,
		Method:  method,
		UserID:  u.ID,
		Time:    start,
		Verdict: VerdictNone,
	}
	if err != nil {
		o.Elapsed = time.Since(start)
		o.fail("%v", err)
		return o
	}
	o.StatusCode = resp.StatusCode
	o.Elapsed = resp.Elapsed
	return o
}
