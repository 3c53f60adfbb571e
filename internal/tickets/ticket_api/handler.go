package ticket_api

import (
	"context"
	"fmt"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/tickets"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type OrderLookup interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
}

type Events interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	RequireOrganizer(ctx context.Context, eventID, userID string) (*models.Event, error)
}

type Handler struct {
	TicketService *tickets.TicketService
	Orders        OrderLookup
	Events        Events
	Logger        *logger.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(ticketService *tickets.TicketService, orders OrderLookup, events Events, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		Orders:        orders,
		Events:        events,
		Logger:        log,
	}
}

// TicketView is a ticket with the check-in token its QR code encodes.
type TicketView struct {
	models.Ticket
	Token string `json:"token"`
}

type checkinRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) RegisterRoutes(r chi.Router, authn *auth.Authenticator) {
	r.With(authn.Optional).Get("/orders/{orderId}/tickets", h.GetOrderTickets)
	r.With(authn.Require).Get("/me/tickets", h.GetMyTickets)
	r.With(authn.Require).Get("/tickets/{ticketId}/qr", h.GetTicketQR)
	r.With(authn.Require).Get("/tickets/{ticketId}/pdf", h.GetTicketPDF)
	r.With(authn.Require).Post("/events/{eventId}/checkin", h.CheckinTicket)
}

// GetOrderTickets lists the tickets of an order. Orders placed while signed
// in are only visible to their buyer; guest orders are reachable by ID.
func (h *Handler) GetOrderTickets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, "GetOrderTickets", err)
		return
	}
	if order.UserID != "" && order.UserID != auth.UserID(r.Context()) {
		h.Logger.LogSecurity("ORDER_ACCESS", fmt.Sprintf("User %q denied tickets of order %s", auth.UserID(r.Context()), orderID))
		h.fail(w, "GetOrderTickets", apperr.OrderNotFound(orderID))
		return
	}

	list, err := h.TicketService.GetTicketsByOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, "GetOrderTickets", err)
		return
	}
	h.writeTickets(w, list)
}

func (h *Handler) GetMyTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.TicketService.GetTicketsByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "GetMyTickets", err)
		return
	}
	h.writeTickets(w, list)
}

// heldTicket loads the ticket named in the path if the caller holds it.
// Anyone else is told it does not exist.
func (h *Handler) heldTicket(r *http.Request) (*models.Ticket, error) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		return nil, err
	}
	if ticket.UserID != auth.UserID(r.Context()) {
		return nil, &apperr.Error{Code: apperr.CodeTicketNotFound, Kind: apperr.KindNotFound, Entity: ticket.ID, Message: "Ticket not found"}
	}
	return ticket, nil
}

// GetTicketQR serves the ticket's QR code as a PNG.
func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.heldTicket(r)
	if err != nil {
		h.fail(w, "GetTicketQR", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ticket.QRCode)
}

// GetTicketPDF serves a printable e-ticket.
func (h *Handler) GetTicketPDF(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.heldTicket(r)
	if err != nil {
		h.fail(w, "GetTicketPDF", err)
		return
	}
	event, err := h.Events.GetEvent(r.Context(), ticket.EventID)
	if err != nil {
		h.fail(w, "GetTicketPDF", apperr.System("load event", err))
		return
	}

	doc, err := tickets.RenderPDF(*ticket, *event)
	if err != nil {
		h.fail(w, "GetTicketPDF", apperr.System("render pdf", err))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ticket-%s.pdf"`, ticket.Barcode))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// CheckinTicket admits a ticket at the door. Only the event organizer may
// scan. Body: {"token": "<value from the QR code>"}
func (h *Handler) CheckinTicket(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.Events.RequireOrganizer(r.Context(), eventID, auth.UserID(r.Context())); err != nil {
		h.fail(w, "CheckinTicket", err)
		return
	}

	var req checkinRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CheckinTicket", err)
		return
	}

	ticket, err := h.TicketService.CheckIn(r.Context(), req.Token, eventID)
	if err != nil {
		h.fail(w, "CheckinTicket", err)
		return
	}

	ticket.QRCode = nil
	utils.WriteSuccess(w, http.StatusOK, ticket)
}

func (h *Handler) writeTickets(w http.ResponseWriter, list []models.Ticket) {
	views := make([]TicketView, 0, len(list))
	for _, t := range list {
		token, err := h.TicketService.Token(t)
		if err != nil {
			h.fail(w, "Token", apperr.System("ticket token", err))
			return
		}
		t.QRCode = nil
		views = append(views, TicketView{Ticket: t, Token: token})
	}
	utils.WriteSuccess(w, http.StatusOK, views)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.KindOf(err) == apperr.KindSystem {
		h.Logger.Error("TICKETS", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("TICKETS", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
