package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contestra/ai-ranker-sub003/internal/console/service"
	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
)

type stubTestService struct {
	accepted   bool
	runErr     error
	runAllErr  error
	lastReq    service.RunRequest
	lastBatch  *engine.BatchReport
	batchBusy  bool
	executions []domain.TestExecution
}

func (s *stubTestService) RunSingle(req service.RunRequest) (bool, error) {
	s.lastReq = req
	return s.accepted, s.runErr
}

func (s *stubTestService) RunAll(_ []string) error { return s.runAllErr }

func (s *stubTestService) LastBatch() (*engine.BatchReport, bool) { return s.lastBatch, s.batchBusy }

func (s *stubTestService) Status() []domain.TestExecution { return s.executions }

func TestTestHandler_RunAccepted(t *testing.T) {
	svc := &stubTestService{accepted: true}
	h := NewTestHandler(svc)

	rec := httptest.NewRecorder()
	body := `{"country":"DE","provider":"openai","grounded":true}`
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/v1/tests/run", strings.NewReader(body)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "DE", svc.lastReq.Country)
	assert.Equal(t, "openai", svc.lastReq.Provider)
	assert.True(t, svc.lastReq.Grounded)
}

func TestTestHandler_RunConflictWhenAlreadyRunning(t *testing.T) {
	h := NewTestHandler(&stubTestService{accepted: false})

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/v1/tests/run", strings.NewReader(`{"country":"DE"}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "already_running", resp["status"])
}

func TestTestHandler_RunRejectsBadBody(t *testing.T) {
	h := NewTestHandler(&stubTestService{})

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/v1/tests/run", strings.NewReader("{{{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTestHandler_RunUnknownCountry(t *testing.T) {
	h := NewTestHandler(&stubTestService{runErr: errors.New("unknown country: XX")})

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/v1/tests/run", strings.NewReader(`{"country":"XX"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown country")
}

func TestTestHandler_RunAllConflictWhileBatchActive(t *testing.T) {
	h := NewTestHandler(&stubTestService{runAllErr: errors.New("batch already running")})

	rec := httptest.NewRecorder()
	h.RunAll(rec, httptest.NewRequest(http.MethodPost, "/v1/tests/run-all", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTestHandler_StatusListsLiveExecutions(t *testing.T) {
	svc := &stubTestService{executions: []domain.TestExecution{{
		Key:      domain.TestKey{Country: "DE", Model: "gpt-5", Grounded: true},
		State:    domain.TestStateRunning,
		Progress: &domain.Progress{Current: 2, Total: 3, Label: "plug"},
	}}}
	h := NewTestHandler(svc)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/v1/tests/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var got []domain.TestExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "DE", got[0].Key.Country)
	assert.Equal(t, 2, got[0].Progress.Current)
}

func TestTestHandler_LastBatchReport(t *testing.T) {
	svc := &stubTestService{
		batchBusy: false,
		lastBatch: &engine.BatchReport{Items: []engine.BatchItem{
			{Country: "DE", Combination: engine.Combination{Provider: "openai"}},
			{Country: "FR", Combination: engine.Combination{Provider: "vertex", Grounded: true}, Error: "model unavailable"},
		}},
	}
	h := NewTestHandler(svc)

	rec := httptest.NewRecorder()
	h.LastBatch(rec, httptest.NewRequest(http.MethodGet, "/v1/tests/batch", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Running bool                `json:"running"`
		Report  *engine.BatchReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 1, resp.Report.Failed())
}
