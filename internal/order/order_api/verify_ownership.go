package order_api

import (
	"fmt"
	"net/http"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/models"

	"github.com/go-chi/chi/v5"
)

// ownedOrder loads the order named in the URL if the caller may act on it.
// Orders placed while signed in belong to that user; guest orders are
// reachable by anyone holding the ID. Someone else's order reads as missing.
func (h *Handler) ownedOrder(r *http.Request) (*models.Order, error) {
	orderID := chi.URLParam(r, "orderId")
	o, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		return nil, err
	}

	userID := auth.UserID(r.Context())
	if o.UserID != "" && o.UserID != userID {
		h.Logger.LogSecurity("ORDER_ACCESS", fmt.Sprintf("User %q denied order %s", userID, orderID))
		return nil, apperr.OrderNotFound(orderID)
	}
	return o, nil
}
