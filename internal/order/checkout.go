package order

import (
	"context"
	"fmt"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/utils"

	"github.com/google/uuid"
)

func newID() string { return uuid.NewString() }

// StartCheckout turns a stored cart into a pending order holding one
// inventory hold per line. The cart is claimed first, so concurrent checkouts
// of one cart produce a single order. If any hold cannot be placed, the holds
// placed so far are released, the cart is put back and the error names the
// exhausted ticket type.
func (s *OrderService) StartCheckout(ctx context.Context, cartID string, customer models.Customer, userID string) (*models.Order, error) {
	cart, err := s.Carts.Take(ctx, cartID)
	if err != nil {
		return nil, err
	}
	restore := func() {
		if err := s.Carts.Save(ctx, cart); err != nil {
			s.Logger.Warn("CHECKOUT", fmt.Sprintf("Failed to put back cart %s: %v", cart.ID, err))
		}
	}

	now := s.Clock.Now()
	if cart.Expired(now) {
		restore()
		return nil, &apperr.Error{Code: apperr.CodeCartExpired, Kind: apperr.KindConflict, Entity: cartID, Message: "Your cart has expired"}
	}
	if len(cart.Items) == 0 {
		restore()
		return nil, apperr.New(apperr.CodeEmptyCart, apperr.KindValidation, "Select at least one ticket")
	}

	priced := s.Pricer.Price(*cart)
	ttl := cart.ExpiresAt.Sub(now)

	holdIDs := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		hold, err := s.Inventory.PlaceHold(ctx, item.TicketTypeID, item.Quantity, ttl, cart.ID)
		if err != nil {
			s.Logger.Warn("CHECKOUT", fmt.Sprintf("Cart %s: hold on %s failed, releasing %d holds: %v", cart.ID, item.TicketTypeID, len(holdIDs), err))
			if relErr := s.Inventory.ReleaseAll(ctx, holdIDs); relErr != nil {
				s.Logger.Error("CHECKOUT", fmt.Sprintf("Cart %s: rollback of holds failed: %v", cart.ID, relErr))
			}
			restore()
			return nil, err
		}
		holdIDs = append(holdIDs, hold.ID)
	}

	order := &models.Order{
		ID:          newID(),
		OrderNumber: utils.GenerateOrderNumber(now),
		EventID:     cart.EventID,
		UserID:      userID,
		Customer:    customer,
		Cart:        priced,
		Total:       priced.Total,
		Currency:    cart.Currency,
		Status:      models.OrderStatusPending,
		HoldIDs:     holdIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   cart.ExpiresAt,
	}
	if err := s.DB.CreateOrder(ctx, order); err != nil {
		s.release(ctx, order)
		restore()
		return nil, apperr.System("create order", err)
	}

	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("%s: %d tickets, total %d %s, expires %s",
		order.OrderNumber, priced.ItemCount, order.Total, order.Currency, order.ExpiresAt.Format("15:04:05")))
	s.publish(ctx, EventOrderCreated, *order)
	return order, nil
}
