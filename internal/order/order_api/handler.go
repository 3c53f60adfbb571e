package order_api

import (
	"context"
	"fmt"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/order"
	"tixly-ticketing/internal/payment"
	"tixly-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type CartBuilder interface {
	BuildCart(ctx context.Context, eventID string, items map[string]int) (*models.Cart, error)
}

type CartStore interface {
	Save(ctx context.Context, c *models.Cart) error
	Get(ctx context.Context, id string) (*models.Cart, error)
}

type Organizers interface {
	RequireOrganizer(ctx context.Context, eventID, userID string) (*models.Event, error)
}

// WebhookParser turns a processor callback into a settled payment. A nil
// event means the callback is not about a payment and is acknowledged.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type Handler struct {
	OrderService *order.OrderService
	Builder      CartBuilder
	Carts        CartStore
	Organizers   Organizers
	Webhooks     WebhookParser
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, builder CartBuilder, carts CartStore, organizers Organizers, webhooks WebhookParser, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Builder:      builder,
		Carts:        carts,
		Organizers:   organizers,
		Webhooks:     webhooks,
		Logger:       log,
	}
}

type createCartRequest struct {
	EventID string         `json:"eventId" validate:"required"`
	Items   map[string]int `json:"items" validate:"required,dive,gte=0"`
}

type checkoutRequest struct {
	CartID   string          `json:"cartId" validate:"required"`
	Customer models.Customer `json:"customer" validate:"required"`
}

type refundRequest struct {
	Items map[string]int `json:"items"`
}

func (h *Handler) RegisterRoutes(r chi.Router, authn *auth.Authenticator) {
	r.Group(func(r chi.Router) {
		r.Use(authn.Optional)
		r.Post("/carts", h.CreateCart)
		r.Get("/carts/{cartId}", h.GetCart)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Post("/orders/{orderId}/payment", h.SubmitPayment)
		r.Post("/orders/{orderId}/cancel", h.CancelOrder)
	})
	r.With(authn.Require).Post("/orders/{orderId}/refund", h.RefundOrder)
	if h.Webhooks != nil {
		r.Post("/payments/webhook", h.PaymentWebhook)
	}
}

// ---------------- CARTS ----------------

func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateCart", err)
		return
	}

	c, err := h.Builder.BuildCart(r.Context(), req.EventID, req.Items)
	if err != nil {
		h.fail(w, "CreateCart", err)
		return
	}
	if err := h.Carts.Save(r.Context(), c); err != nil {
		h.fail(w, "CreateCart", apperr.System("save cart", err))
		return
	}

	h.Logger.Info("CART", fmt.Sprintf("Cart %s created for event %s with %d tickets", c.ID, c.EventID, c.ItemCount()))
	utils.WriteSuccess(w, http.StatusCreated, h.OrderService.Pricer.Price(*c))
}

// GetCart re-prices a stored cart. Expired carts are reported as such for a
// grace period before they disappear.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartId")
	c, err := h.Carts.Get(r.Context(), cartID)
	if err != nil {
		h.fail(w, "GetCart", err)
		return
	}
	if c.Expired(h.OrderService.Clock.Now()) {
		h.fail(w, "GetCart", &apperr.Error{Code: apperr.CodeCartExpired, Kind: apperr.KindConflict, Entity: cartID, Message: "Your cart has expired"})
		return
	}
	utils.WriteSuccess(w, http.StatusOK, h.OrderService.Pricer.Price(*c))
}

// ---------------- ORDERS ----------------

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "Checkout", err)
		return
	}

	o, err := h.OrderService.StartCheckout(r.Context(), req.CartID, req.Customer, auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, "Checkout", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r)
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownedOrder(r)
	if err != nil {
		h.fail(w, "CancelOrder", err)
		return
	}

	o, err = h.OrderService.CancelOrder(r.Context(), o.ID)
	if err != nil {
		h.fail(w, "CancelOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, o)
}

// RefundOrder refunds a completed order for the organizer of its event. An
// empty body refunds everything; {"items": {"<ticketTypeId>": n}} refunds
// part of it.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	o, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, "RefundOrder", err)
		return
	}
	if _, err := h.Organizers.RequireOrganizer(r.Context(), o.EventID, auth.UserID(r.Context())); err != nil {
		h.fail(w, "RefundOrder", err)
		return
	}

	var req refundRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &req); err != nil {
			h.fail(w, "RefundOrder", err)
			return
		}
	}

	o, err = h.OrderService.RefundOrder(r.Context(), orderID, req.Items)
	if err != nil {
		h.fail(w, "RefundOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, o)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.KindOf(err) == apperr.KindSystem {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}
