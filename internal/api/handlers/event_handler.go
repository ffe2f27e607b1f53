package handlers

import (
	"net/http"

	"github.com/opsprep/user-api/internal/models"
	"github.com/opsprep/user-api/internal/services"
	"github.com/rs/zerolog/log"
)

// EventHandler handles HTTP requests for the audit trail.
type EventHandler struct {
	audit services.AuditServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(audit services.AuditServiceProvider) *EventHandler {
	return &EventHandler{audit: audit}
}

// GetRecent handles the request to get recent audit events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit <= 0 {
		limit = 20
	}

	events, err := h.audit.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve audit events")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}

	respondJSON(w, http.StatusOK, events)
}
