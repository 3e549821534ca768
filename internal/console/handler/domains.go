package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/contestra/ai-ranker-sub003/internal/domain"
)

// DomainService — выбор области живого канала.
type DomainService interface {
	Domains(ctx context.Context) ([]domain.Domain, error)
	SelectDomain(domainName string)
	SelectedDomain() string
}

type DomainHandler struct {
	service DomainService
}

func NewDomainHandler(s DomainService) *DomainHandler {
	return &DomainHandler{service: s}
}

// List — домены бренда и текущий выбранный.
func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
	domains, err := h.service.Domains(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"domains":  domains,
		"selected": h.service.SelectedDomain(),
	})
}

// Select переключает живой канал на другой домен.
func (h *DomainHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	h.service.SelectDomain(req.Domain)
	writeJSON(w, http.StatusOK, map[string]string{"selected": req.Domain})
}
