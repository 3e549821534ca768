package domain

// Типы строк потокового ответа run-locale-test.
const (
	EventTypeProgress = "progress"
	EventTypeComplete = "complete"
)

// ErrEmptyResponse — выделенное значение поля error в завершающем событии:
// модель вернула пустой ответ. Не жесткий отказ, а повод уведомить пользователя.
const ErrEmptyResponse = "empty_response"

// StreamEvent — одна строка потока (line-delimited JSON).
// Объединенный вид ProgressEvent и CompletionEvent: различаются полем type,
// неизвестные поля игнорируются как непрозрачный багаж.
type StreamEvent struct {
	Type    string `json:"type"`
	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Probe   string `json:"probe,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestResult — вердикт бэкенда по одному прогону. Ядро смотрит только на
// success/error и флаги проб, остальное — прозрачный багаж для UI.
type TestResult struct {
	Success           bool                   `json:"success"`
	Error             string                 `json:"error,omitempty"`
	PassedVAT         bool                   `json:"passed_vat"`
	PassedPlug        bool                   `json:"passed_plug"`
	PassedEmergency   bool                   `json:"passed_emergency"`
	GroundedEffective bool                   `json:"grounded_effective"`
	ToolCallCount     int                    `json:"tool_call_count"`
	JSONObj           map[string]interface{} `json:"json_obj,omitempty"`
}
