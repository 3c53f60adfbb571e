package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/sse"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

const defaultKeepAlive = 25 * time.Second

// SSEHandler streams completed sales of an event to its organizer.
type SSEHandler struct {
	Hub        *sse.SalesHub
	Organizers Organizers
	Logger     *logger.Logger
	KeepAlive  time.Duration
}

func NewSSEHandler(hub *sse.SalesHub, organizers Organizers, log *logger.Logger) *SSEHandler {
	return &SSEHandler{Hub: hub, Organizers: organizers, Logger: log, KeepAlive: defaultKeepAlive}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router, authn *auth.Authenticator) {
	r.With(authn.Require).Get("/events/{eventId}/sales/stream", h.HandleEventSales)
}

// HandleEventSales streams one "sale" event per completed order.
func (h *SSEHandler) HandleEventSales(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	event, err := h.Organizers.RequireOrganizer(r.Context(), eventID, auth.UserID(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)
	ctx := r.Context()
	sales := h.Hub.Subscribe(ctx, event.ID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", event.ID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to sales of event %s", event.ID))

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case msg, ok := <-sales:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize sale: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: sale\ndata: %s\n\n", data)
			flusher.Flush()

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from sales of event %s", event.ID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
