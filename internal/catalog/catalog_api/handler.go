package catalog_api

import (
	"fmt"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/catalog"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Catalog *catalog.CatalogService
	Logger  *logger.Logger
}

func NewHandler(svc *catalog.CatalogService, log *logger.Logger) *Handler {
	return &Handler{Catalog: svc, Logger: log}
}

// RegisterRoutes mounts the event catalog under /api.
func (h *Handler) RegisterRoutes(r chi.Router, authn *auth.Authenticator) {
	r.Get("/ticket-types/{ticketTypeId}/availability", h.GetAvailability)
	r.Get("/events", h.ListEvents)
	r.With(authn.Require).Post("/events", h.CreateEvent)
	// eventId is an ID or a slug here.
	r.With(authn.Optional).Get("/events/{eventId}", h.GetEvent)
	r.With(authn.Require).Post("/events/{eventId}/publish", h.PublishEvent)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	q := r.URL.Query().Get("q")

	events, err := h.Catalog.ListEvents(r.Context(), category, q)
	if err != nil {
		h.fail(w, "ListEvents", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "eventId")
	detail, err := h.Catalog.GetEventDetail(r.Context(), idOrSlug, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "GetEvent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, detail)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in catalog.CreateEventInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}

	detail, err := h.Catalog.CreateEvent(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		h.fail(w, "CreateEvent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, detail)
}

func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := h.Catalog.Publish(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "PublishEvent", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, event)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketTypeId")
	view, err := h.Catalog.TicketTypeAvailability(r.Context(), id)
	if err != nil {
		h.fail(w, "GetAvailability", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"ticketTypeId": view.ID,
		"available":    view.Available,
		"status":       view.Availability,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.KindOf(err) == apperr.KindSystem {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
