package handler

import (
	"context"
	"net/http"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
	"github.com/contestra/ai-ranker-sub003/internal/engine"
)

// StatsService — сводка, лента событий и уведомления.
type StatsService interface {
	Stats() (domain.AggregateStats, domain.ConnectionState)
	RefreshSummary(ctx context.Context) error
	RecentEvents() []domain.BotEvent
	Notices() []engine.Notice
}

type StatsHandler struct {
	service StatsService
}

func NewStatsHandler(s StatsService) *StatsHandler {
	return &StatsHandler{service: s}
}

// Get — текущие счетчики; connection — пассивный индикатор канала.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, state := h.service.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"connection": state.String(),
	})
}

// Refresh — явное обновление: авторитетный снапшот вместо клиентских оценок.
func (h *StatsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RefreshSummary(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	stats, state := h.service.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"connection": state.String(),
	})
}

// Events — капированная лента последних бот-событий.
func (h *StatsHandler) Events(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.RecentEvents())
}

// Notices — пользовательские уведомления (таймауты, empty_response и т.п.).
func (h *StatsHandler) Notices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Notices())
}
