package connectors

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HTTPError — не-2xx ответ бэкенда с телом и, для 429, подсказкой Retry-After.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
}

// RetryAfterHint отдает задержку из заголовка Retry-After (0 — нет подсказки).
// Используется обвязкой надежности при расчете паузы между ретраями.
func (e *HTTPError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
