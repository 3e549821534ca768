package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// SnapshotProvider — идемпотентные чтения бэкенда: авторитетный снапшот
// статистики и список доменов. Только такие операции можно безопасно
// ретраить; тестовые POST-запросы через эту обертку не ходят — повтор
// продублировал бы вызов внешней модели.
type SnapshotProvider interface {
	FetchStats(ctx context.Context, domainName string) (*domain.AggregateStats, error)
	ListDomains(ctx context.Context, brandID string) ([]domain.Domain, error)
}

// retryAfterHinter позволяет адаптеру подсказать задержку из Retry-After,
// не завязывая ядро на конкретный тип ошибки.
type retryAfterHinter interface {
	RetryAfterHint() time.Duration
}

// ReliabilitySettings — параметры предохранителя и лимитера (из EngineConfig).
type ReliabilitySettings struct {
	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration
	Rate          float64
	Burst         int
}

// ReliabilityWrapper оборачивает снапшотные чтения в лимитер, Circuit Breaker
// и ретраи с умным расчетом задержки.
type ReliabilityWrapper struct {
	next    SnapshotProvider
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliabilityWrapper(next SnapshotProvider, s ReliabilitySettings) *ReliabilityWrapper {
	if s.CBMaxRequests == 0 {
		s.CBMaxRequests = 3
	}
	if s.CBInterval <= 0 {
		s.CBInterval = 5 * time.Second
	}
	if s.CBTimeout <= 0 {
		s.CBTimeout = 30 * time.Second
	}
	if s.Rate <= 0 {
		s.Rate = 5
	}
	if s.Burst <= 0 {
		s.Burst = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ranker-snapshots",
		MaxRequests: s.CBMaxRequests,
		Interval:    s.CBInterval,
		Timeout:     s.CBTimeout, // время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(s.Rate), s.Burst),
	}
}

// call — общий конвейер: лимитер -> предохранитель -> ретраи с таймаутом на попытку.
func (w *ReliabilityWrapper) call(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var result interface{}

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Бэкенд прислал Retry-After (429) — уважаем его
				var hint retryAfterHinter
				if errors.As(err, &hint) && hint.RetryAfterHint() > 0 {
					return hint.RetryAfterHint()
				}
				// Иначе стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			var callErr error
			result, callErr = fn(tCtx)
			return callErr
		})

		return result, retryErr
	})

	if err != nil {
		return nil, err
	}
	return cbResult, nil
}

func (w *ReliabilityWrapper) FetchStats(ctx context.Context, domainName string) (*domain.AggregateStats, error) {
	res, err := w.call(ctx, func(ctx context.Context) (interface{}, error) {
		return w.next.FetchStats(ctx, domainName)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.AggregateStats), nil
}

func (w *ReliabilityWrapper) ListDomains(ctx context.Context, brandID string) ([]domain.Domain, error) {
	res, err := w.call(ctx, func(ctx context.Context) (interface{}, error) {
		return w.next.ListDomains(ctx, brandID)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Domain), nil
}
