package engine

import (
	"sync"
	"time"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// Reconciler — единственный путь мутации сводной статистики и буфера
// последних событий. Снапшот заменяет состояние целиком, инкременты
// сворачиваются поверх него; клиентские инкременты — оценка до следующего
// авторитетного снапшота, временный дрейф допустим по построению.
type Reconciler struct {
	mu           sync.Mutex
	stats        domain.AggregateStats
	recent       []domain.BotEvent
	cap          int
	lastSnapshot time.Time
}

func NewReconciler(recentCap int) *Reconciler {
	if recentCap <= 0 {
		recentCap = 100
	}
	return &Reconciler{
		recent: make([]domain.BotEvent, 0, recentCap),
		cap:    recentCap,
	}
}

// ApplySnapshot целиком заменяет счетчики (не сливает). recent == nil
// означает "снапшот без ленты" (refresh по HTTP): буфер событий сохраняется,
// полную ленту присылает только initial-сообщение живого канала.
func (r *Reconciler) ApplySnapshot(stats domain.AggregateStats, recent []domain.BotEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = stats.Clone()
	r.lastSnapshot = time.Now()

	if recent == nil {
		return
	}
	r.recent = r.recent[:0]
	for _, ev := range recent {
		r.appendLocked(ev)
	}
}

// ApplyEvent сворачивает одно инкрементальное событие. Не-бот события
// счетчиков не меняют, но в ленту попадают.
func (r *Reconciler) ApplyEvent(ev domain.BotEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendLocked(ev)

	if !ev.IsBot {
		return
	}

	r.stats.Total++
	r.stats.BotTotal++
	if ev.BotType == domain.BotTypeOnDemand {
		r.stats.OnDemand++
	}
	if ev.Verified {
		r.stats.Verified++
	}
	if ev.PotentialSpoof {
		r.stats.Spoofed++
	}

	if ev.Provider != "" {
		if r.stats.ByProvider == nil {
			r.stats.ByProvider = make(map[string]int64)
		}
		r.stats.ByProvider[ev.Provider]++
	}
	if ev.BotType != "" {
		if r.stats.ByType == nil {
			r.stats.ByType = make(map[string]int64)
		}
		r.stats.ByType[ev.BotType]++
	}
}

func (r *Reconciler) appendLocked(ev domain.BotEvent) {
	if len(r.recent) == r.cap {
		copy(r.recent, r.recent[1:])
		r.recent[r.cap-1] = ev
		return
	}
	r.recent = append(r.recent, ev)
}

// Stats возвращает копию счетчиков для отдачи в API.
func (r *Reconciler) Stats() domain.AggregateStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.Clone()
}

// RecentEvents возвращает копию ленты (от старых к новым).
func (r *Reconciler) RecentEvents() []domain.BotEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.BotEvent, len(r.recent))
	copy(out, r.recent)
	return out
}

// SnapshotAge — сколько прошло с последнего авторитетного снапшота.
// По нему сервис решает, не пора ли обновиться (monitor.snapshot_ttl).
func (r *Reconciler) SnapshotAge() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastSnapshot.IsZero() {
		return -1
	}
	return time.Since(r.lastSnapshot)
}
