package domain

import (
	"fmt"
	"time"
)

// TestKey — идентичность одного тестового прогона.
// Ключ дедупликации: страна × модель × режим grounding.
// Сравнение по значению, используется как ключ мапы в реестре.
type TestKey struct {
	Country  string
	Model    string
	Grounded bool
}

func (k TestKey) String() string {
	mode := "ungrounded"
	if k.Grounded {
		mode = "grounded"
	}
	return fmt.Sprintf("%s/%s/%s", k.Country, k.Model, mode)
}

// TestState — фаза жизненного цикла тестового прогона.
type TestState string

const (
	TestStateIdle      TestState = "idle"
	TestStateRunning   TestState = "running"
	TestStateCompleted TestState = "completed"
	TestStateFailed    TestState = "failed"
)

// Progress — текущий шаг потокового прогона (какая проба проверяется).
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Label   string `json:"label"`
}

// TestExecution — живой статус прогона. Существует только пока прогон
// идет: создается при допуске ключа и удаляется из реестра при освобождении.
// Это не история — история пишется отдельным конвейером.
type TestExecution struct {
	Key       TestKey   `json:"key"`
	State     TestState `json:"state"`
	Progress  *Progress `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}
