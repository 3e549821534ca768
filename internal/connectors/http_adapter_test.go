package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *HTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPAdapter(srv.URL, auth.NewBackendToken("test-token"), zap.NewNop())
}

func TestHTTPAdapter_RunLocaleTestSendsContractPayload(t *testing.T) {
	var got map[string]interface{}
	var header http.Header

	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/grounding-test/run-locale-test", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	job := domain.TestJob{
		Provider: "openai",
		Model:    "gpt-5",
		Grounded: true,
		Country:  "DE",
		ALSBlock: "de-DE, Berlin, EUR",
		Expected: domain.ExpectedAnswers{VATPercent: 19, Plug: []string{"C", "F"}, Emergency: []string{"112", "110"}},
	}

	ctx := engine.WithTraceID(context.Background(), "trace-abc")
	resp, err := adapter.RunLocaleTest(ctx, job)
	require.NoError(t, err)
	resp.Body.Close()

	// Имена полей — проводной контракт
	assert.Equal(t, "openai", got["provider"])
	assert.Equal(t, true, got["grounded"])
	assert.Equal(t, "de-DE, Berlin, EUR", got["als_block"])
	expected := got["expected"].(map[string]interface{})
	assert.Equal(t, float64(19), expected["vat_percent"])

	assert.Equal(t, "Bearer test-token", header.Get("Authorization"))
	assert.Equal(t, "trace-abc", header.Get("X-Trace-ID"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
}

func TestHTTPAdapter_GeneratesTraceIDWhenAbsent(t *testing.T) {
	var traceID string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		traceID = r.Header.Get("X-Trace-ID")
		_ = json.NewEncoder(w).Encode(domain.TestResult{Success: true})
	})

	_, err := adapter.RunLocaleTestSync(context.Background(), domain.TestJob{Country: "DE"})
	require.NoError(t, err)
	assert.NotEmpty(t, traceID, "без контекстного trace id генерируется свежий")
}

func TestHTTPAdapter_SyncTestDecodesResult(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/countries/test", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":            true,
			"passed_vat":         true,
			"grounded_effective": false,
			"tool_call_count":    0,
		})
	})

	result, err := adapter.RunLocaleTestSync(context.Background(), domain.TestJob{Country: "DE"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PassedVAT)
	assert.False(t, result.GroundedEffective)
}

func TestHTTPAdapter_FetchStatsDecodesSnapshot(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crawler/v2/monitor/stats/brand.example", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.AggregateStats{Total: 300, BotTotal: 250, OnDemand: 12})
	})

	stats, err := adapter.FetchStats(context.Background(), "brand.example")
	require.NoError(t, err)
	assert.Equal(t, int64(300), stats.Total)
	assert.Equal(t, int64(12), stats.OnDemand)
}

func TestHTTPAdapter_ListDomains(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crawler/v2/monitor/brand/brand-42/domains", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.Domain{
			{ID: "d1", URL: "brand.example", Trackable: true},
			{ID: "d2", URL: "staging.brand.example", Trackable: false},
		})
	})

	domains, err := adapter.ListDomains(context.Background(), "brand-42")
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.True(t, domains[0].Trackable)
}

func TestHTTPAdapter_ErrorCarriesRetryAfterHint(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := adapter.FetchStats(context.Background(), "brand.example")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
	assert.Equal(t, "slow down", httpErr.Body)
	assert.Equal(t, 7*time.Second, httpErr.RetryAfterHint())
}

func TestHTTPAdapter_RunLocaleTestReturnsRawResponse(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resp, err := adapter.RunLocaleTest(context.Background(), domain.TestJob{Country: "DE"})
	require.NoError(t, err, "статусные ветки разбирает раннер, не адаптер")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
