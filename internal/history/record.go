package history

import "time"

// RunRecord — одна завершенная попытка тестового прогона.
// В отличие от живого статуса в реестре, записи копятся как история
// и уходят в PostgreSQL пачками.
type RunRecord struct {
	ID       string `json:"id"`       // UUID записи
	TraceID  string `json:"trace_id"` // Сквозной ID запроса к бэкенду
	Country  string `json:"country"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Grounded bool   `json:"grounded"`

	// Результат
	Status     string                 `json:"status"` // "success", "fallback", "failed", "timeout"
	Error      string                 `json:"error,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"` // непрозрачный вердикт бэкенда
	DurationMs int64                  `json:"duration_ms"`
	Timestamp  time.Time              `json:"timestamp"`
}
