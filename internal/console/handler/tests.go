package handler

import (
	"encoding/json"
	"net/http"

	"github.com/contestra/ai-ranker-sub003/internal/console/service"
	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
)

// TestService — что обработчику нужно от сервиса для запуска тестов.
type TestService interface {
	RunSingle(req service.RunRequest) (bool, error)
	RunAll(countryCodes []string) error
	LastBatch() (*engine.BatchReport, bool)
	Status() []domain.TestExecution
}

type TestHandler struct {
	service TestService
}

func NewTestHandler(s TestService) *TestHandler {
	return &TestHandler{service: s}
}

// Run — одиночный прогон. 202 — принят, 409 — такой ключ уже работает
// (дубль-клик; UI волен показать это или промолчать).
func (h *TestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req service.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, err := h.service.RunSingle(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !accepted {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already_running"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RunAll — батч по всем (или перечисленным) странам, в фоне.
func (h *TestHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Countries []string `json:"countries,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.service.RunAll(req.Countries); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// LastBatch — отчет последнего батча.
func (h *TestHandler) LastBatch(w http.ResponseWriter, r *http.Request) {
	report, running := h.service.LastBatch()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": running,
		"report":  report,
	})
}

// Status — живые прогоны с прогрессом.
func (h *TestHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
