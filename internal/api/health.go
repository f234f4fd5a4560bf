package api

import (
	"net/http"

	"github.com/masarif/masarif-backend/internal/api/respond"
	"github.com/masarif/masarif-backend/internal/health"
)

type HealthHandler struct {
	svc *health.Service
}

func NewHealthHandler(svc *health.Service) *HealthHandler { return &HealthHandler{svc: svc} }

func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if !h.svc.IsHealthy() {
		respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
