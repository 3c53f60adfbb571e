package analytics_api

import (
	"fmt"
	"net/http"
	"strconv"

	"tixly-ticketing/internal/analytics"
	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/catalog"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Catalog *catalog.CatalogService
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, catalogService *catalog.CatalogService, logger *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Catalog: catalogService,
		Logger:  logger,
	}
}

// RegisterRoutes registers the organizer analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router, authn *auth.Authenticator) {
	r.Group(func(r chi.Router) {
		r.Use(authn.Require)
		r.Get("/events/{eventId}/analytics", h.GetEventAnalytics)
		r.Get("/events/{eventId}/orders", h.GetEventOrders)
	})
}

// GetEventAnalytics handles GET /events/{eventId}/analytics
func (h *Handler) GetEventAnalytics(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	event, err := h.Catalog.RequireOrganizer(r.Context(), eventID, userID)
	if err != nil {
		h.fail(w, "GetEventAnalytics", err)
		return
	}

	result, err := h.Service.GetEventAnalytics(r.Context(), *event)
	if err != nil {
		h.fail(w, "GetEventAnalytics", err)
		return
	}

	h.Logger.Debug("ANALYTICS", fmt.Sprintf("Analytics for event %s served to %s", eventID, userID))
	utils.WriteSuccess(w, http.StatusOK, result)
}

// GetEventOrders handles GET /events/{eventId}/orders
// Query: status, sort_by (total|created_at), sort_desc, limit, offset
func (h *Handler) GetEventOrders(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	if _, err := h.Catalog.RequireOrganizer(r.Context(), eventID, auth.UserID(r.Context())); err != nil {
		h.fail(w, "GetEventOrders", err)
		return
	}

	q := r.URL.Query()
	options := analytics.EventOrderOptions{
		Status: q.Get("status"),
		SortBy: q.Get("sort_by"),
		Limit:  50,
	}
	if v := q.Get("sort_desc"); v != "" {
		options.SortDesc, _ = strconv.ParseBool(v)
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 500 {
			h.fail(w, "GetEventOrders", apperr.Validation("limit must be between 1 and 500"))
			return
		}
		options.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			h.fail(w, "GetEventOrders", apperr.Validation("offset must not be negative"))
			return
		}
		options.Offset = offset
	}

	orders, err := h.Service.GetEventOrders(r.Context(), eventID, options)
	if err != nil {
		h.fail(w, "GetEventOrders", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, orders)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.KindOf(err) == apperr.KindSystem {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
