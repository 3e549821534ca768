package connectors

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

// Проводной контракт бэкенда: пути эндпоинтов.
const (
	pathRunLocaleTest = "/grounding-test/run-locale-test"
	pathRunSyncTest   = "/countries/test"
	pathDomains       = "/crawler/v2/monitor/brand/%s/domains"
	pathStats         = "/crawler/v2/monitor/stats/%s"
)

// HTTPAdapter — единственная точка общения с аналитическим бэкендом по HTTP.
// Клиент без собственного таймаута: дедлайны задает вызывающая сторона через
// контекст (потоковый прогон живет до 120 секунд, снапшоты — до 10).
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
	token   *auth.BackendToken
	logger  *zap.Logger
}

func NewHTTPAdapter(baseURL string, token *auth.BackendToken, logger *zap.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		token:   token,
		logger:  logger.Named("backend"),
	}
}

// newRequest собирает запрос с общими заголовками: авторизация и сквозной
// X-Trace-ID (из контекста прогона, иначе свежий).
func (a *HTTPAdapter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}

	traceID := engine.TraceIDFrom(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}
	req.Header.Set("X-Trace-ID", traceID)

	if !a.token.Empty() {
		if a.token.ExpiresWithin(10 * time.Minute) {
			a.logger.Warn("backend token expires soon, expect 401s")
		}
		req.Header.Set("Authorization", a.token.Header())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// RunLocaleTest бьет в потоковый эндпоинт и возвращает сырой ответ:
// ветвление по статусу (поток / 404-fallback / ошибка) — зона ответственности
// раннера, закрытие тела — тоже его.
func (a *HTTPAdapter) RunLocaleTest(ctx context.Context, job domain.TestJob) (*http.Response, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal test job: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, pathRunLocaleTest, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run-locale-test call failed: %w", err)
	}
	return resp, nil
}

// RunLocaleTestSync — синхронный fallback с теми же логическими параметрами.
func (a *HTTPAdapter) RunLocaleTestSync(ctx context.Context, job domain.TestJob) (*domain.TestResult, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal test job: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, pathRunSyncTest, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync test call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.httpError(resp)
	}

	var result domain.TestResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode sync test result: %w", err)
	}
	return &result, nil
}

// FetchStats — авторитетный снапшот счетчиков по домену.
func (a *HTTPAdapter) FetchStats(ctx context.Context, domainName string) (*domain.AggregateStats, error) {
	path := fmt.Sprintf(pathStats, url.PathEscape(domainName))
	req, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.httpError(resp)
	}

	var stats domain.AggregateStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats snapshot: %w", err)
	}
	return &stats, nil
}

// ListDomains — домены бренда для выбора области живого канала.
func (a *HTTPAdapter) ListDomains(ctx context.Context, brandID string) ([]domain.Domain, error) {
	path := fmt.Sprintf(pathDomains, url.PathEscape(brandID))
	req, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("domains call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.httpError(resp)
	}

	var domains []domain.Domain
	if err := json.NewDecoder(resp.Body).Decode(&domains); err != nil {
		return nil, fmt.Errorf("decode domain list: %w", err)
	}
	return domains, nil
}

func (a *HTTPAdapter) httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{
		Status:     resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: parseRetryAfter(resp),
	}
}
