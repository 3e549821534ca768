package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// RunRegistry — единственный источник истины про "идет ли сейчас тест
// с таким ключом". Допуск и пометка выполняются под одной блокировкой,
// между проверкой и пометкой нет точек переключения.
type RunRegistry struct {
	mu      sync.Mutex
	running map[domain.TestKey]*domain.TestExecution
	logger  *zap.Logger
}

func NewRunRegistry(logger *zap.Logger) *RunRegistry {
	return &RunRegistry{
		running: make(map[domain.TestKey]*domain.TestExecution),
		logger:  logger.Named("registry"),
	}
}

// TryAdmit атомарно допускает ключ. Повторная попытка во время работы —
// тихий отказ (debug-лог): двойной клик это ожидаемое поведение UI, не ошибка.
func (r *RunRegistry) TryAdmit(key domain.TestKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.running[key]; busy {
		r.logger.Debug("duplicate run rejected", zap.Stringer("key", key))
		return false
	}

	r.running[key] = &domain.TestExecution{
		Key:       key,
		State:     domain.TestStateRunning,
		StartedAt: time.Now(),
	}
	return true
}

// Release снимает пометку независимо от исхода. Идемпотентен: повторный
// вызов для уже освобожденного ключа — no-op.
func (r *RunRegistry) Release(key domain.TestKey) {
	r.mu.Lock()
	delete(r.running, key)
	r.mu.Unlock()
}

// IsRunning — снимок флага для предварительных проверок (ответ 409 в API).
// Не заменяет TryAdmit: решающая проверка всегда внутри допуска.
func (r *RunRegistry) IsRunning(key domain.TestKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.running[key]
	return busy
}

// SetProgress обновляет прогресс живого прогона. Для освобожденного ключа — no-op.
func (r *RunRegistry) SetProgress(key domain.TestKey, current, total int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec, ok := r.running[key]
	if !ok {
		return
	}
	exec.Progress = &domain.Progress{Current: current, Total: total, Label: label}
}

// Executions возвращает копии живых статусов для отдачи в API.
func (r *RunRegistry) Executions() []domain.TestExecution {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TestExecution, 0, len(r.running))
	for _, exec := range r.running {
		cp := *exec
		if exec.Progress != nil {
			p := *exec.Progress
			cp.Progress = &p
		}
		out = append(out, cp)
	}
	return out
}
