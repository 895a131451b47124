package handlers

import (
	"net/http"

	"github.com/eventeye/server/internal/api/middleware"
	"github.com/eventeye/server/internal/audit"
	"github.com/eventeye/server/internal/domain/events"
	"github.com/eventeye/server/internal/domain/stats"
)

type EventsHandler struct {
	Events *events.Service
	Stats  *stats.Service
	Audit  *audit.Logger
	Env    string
}

func NewEventsHandler(eventsService *events.Service, statsService *stats.Service, env string) *EventsHandler {
	return &EventsHandler{Events: eventsService, Stats: statsService, Env: env}
}

type eventListResponse struct {
	Events []events.Summary `json:"events"`
	Stats  stats.Stats      `json:"stats"`
}

type eventResponse struct {
	Event any `json:"event"`
}

// List handles GET /events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Events.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	totals, err := h.Stats.Compute(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, eventListResponse{Events: summaries, Stats: totals})
}

// Create handles POST /events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input events.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}
	if claims := middleware.Claims(r); claims != nil {
		input.CreatedBy = claims.Subject
	}

	event, err := h.Events.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	h.Audit.LogFromRequest(r, input.CreatedBy, "event.create", "event", event.ID, audit.StatusSuccess, nil)

	w.Header().Set("Location", "/events/"+event.ID)
	writeJSON(w, http.StatusCreated, eventResponse{Event: event})
}

// Get handles GET /events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := h.Events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	count, err := h.Events.CertificateCount(r.Context(), event.ID)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{Event: events.Summary{Event: event, CertificateCount: count}})
}
