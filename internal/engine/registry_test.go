package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

func testKey() domain.TestKey {
	return domain.TestKey{Country: "DE", Model: "gpt-5", Grounded: true}
}

func TestRegistry_AdmitRejectsDuplicate(t *testing.T) {
	r := NewRunRegistry(zap.NewNop())
	key := testKey()

	require.True(t, r.TryAdmit(key))
	assert.False(t, r.TryAdmit(key), "second admission while running must be rejected")

	r.Release(key)
	assert.True(t, r.TryAdmit(key), "released key must be admittable again")
}

func TestRegistry_AdmitIsAtomic(t *testing.T) {
	r := NewRunRegistry(zap.NewNop())
	key := testKey()

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAdmit(key) {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted, "exactly one concurrent admission may win")
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	r := NewRunRegistry(zap.NewNop())
	key := testKey()

	require.True(t, r.TryAdmit(key))
	r.Release(key)
	r.Release(key) // повторный вызов — no-op

	assert.False(t, r.IsRunning(key))
}

func TestRegistry_ProgressVisibleInExecutions(t *testing.T) {
	r := NewRunRegistry(zap.NewNop())
	key := testKey()

	require.True(t, r.TryAdmit(key))
	r.SetProgress(key, 2, 3, "VAT")

	execs := r.Executions()
	require.Len(t, execs, 1)
	require.NotNil(t, execs[0].Progress)
	assert.Equal(t, 2, execs[0].Progress.Current)
	assert.Equal(t, 3, execs[0].Progress.Total)
	assert.Equal(t, "VAT", execs[0].Progress.Label)

	// Прогресс освобожденного ключа — no-op, не паника
	r.Release(key)
	r.SetProgress(key, 3, 3, "plug")
	assert.Empty(t, r.Executions())
}
