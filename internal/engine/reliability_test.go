package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

type flakyProvider struct {
	mu         sync.Mutex
	statsCalls int
	listCalls  int
	failFirst  int
	err        error
}

func (p *flakyProvider) FetchStats(_ context.Context, _ string) (*domain.AggregateStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsCalls++
	if p.statsCalls <= p.failFirst {
		if p.err != nil {
			return nil, p.err
		}
		return nil, errors.New("backend unavailable")
	}
	return &domain.AggregateStats{Total: 100, BotTotal: 80}, nil
}

func (p *flakyProvider) ListDomains(_ context.Context, _ string) ([]domain.Domain, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listCalls <= p.failFirst {
		return nil, errors.New("backend unavailable")
	}
	return []domain.Domain{{ID: "d1", URL: "brand.example", Trackable: true}}, nil
}

type throttledError struct{ after time.Duration }

func (e *throttledError) Error() string                 { return "throttled" }
func (e *throttledError) RetryAfterHint() time.Duration { return e.after }

func fastSettings() ReliabilitySettings {
	return ReliabilitySettings{Rate: 1000, Burst: 1000}
}

func TestReliability_RetriesTransientFailures(t *testing.T) {
	provider := &flakyProvider{failFirst: 2}
	w := NewReliabilityWrapper(provider, fastSettings())

	stats, err := w.FetchStats(context.Background(), "brand.example")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Total)
	assert.Equal(t, 3, provider.statsCalls, "два отказа съедены ретраями")
}

func TestReliability_GivesUpAfterAttempts(t *testing.T) {
	provider := &flakyProvider{failFirst: 100}
	w := NewReliabilityWrapper(provider, fastSettings())

	_, err := w.FetchStats(context.Background(), "brand.example")
	require.Error(t, err)
	assert.Equal(t, 3, provider.statsCalls, "ровно три попытки на вызов")
}

func TestReliability_HonorsRetryAfterHint(t *testing.T) {
	provider := &flakyProvider{failFirst: 2, err: &throttledError{after: time.Millisecond}}
	w := NewReliabilityWrapper(provider, fastSettings())

	start := time.Now()
	_, err := w.FetchStats(context.Background(), "brand.example")
	require.NoError(t, err)

	// Подсказка Retry-After (1мс) вместо стандартного бэкоффа (от 100мс)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 3, provider.statsCalls)
}

func TestReliability_ListDomainsPassthrough(t *testing.T) {
	provider := &flakyProvider{}
	w := NewReliabilityWrapper(provider, fastSettings())

	domains, err := w.ListDomains(context.Background(), "brand-42")
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, "brand.example", domains[0].URL)
	assert.Equal(t, 1, provider.listCalls)
}

func TestReliability_CancelledContextStopsBeforeCall(t *testing.T) {
	provider := &flakyProvider{}
	w := NewReliabilityWrapper(provider, fastSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.FetchStats(ctx, "brand.example")
	require.Error(t, err)
	assert.Zero(t, provider.statsCalls, "отмененный контекст не доходит до бэкенда")
}
