package order

import (
	"context"
	"fmt"
	"sort"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/pricing"
)

// CancelOrder abandons a pending or processing order and returns its holds.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, models.OrderStatusCancelled) {
		return nil, apperr.InvalidTransition(order.ID, string(order.Status), string(models.OrderStatusCancelled))
	}

	order.FailureReason = "cancelled by customer"
	if err := s.transition(ctx, order, models.OrderStatusCancelled); err != nil {
		return nil, err
	}
	s.release(ctx, order)
	s.publish(ctx, EventOrderCancelled, *order)
	return order, nil
}

// RefundOrder refunds the given quantities per ticket type of a completed
// order, or everything when items is empty. The amount is the price of the
// refunded units under the rates the order was sold at.
func (s *OrderService) RefundOrder(ctx context.Context, id string, items map[string]int) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, apperr.InvalidTransition(order.ID, string(order.Status), string(models.OrderStatusRefunded))
	}

	lines := make(map[string]models.CartItem, len(order.Cart.Items))
	for _, item := range order.Cart.Items {
		lines[item.TicketTypeID] = item
	}

	refundItems := make([]models.CartItem, 0, len(lines))
	refunded := make(map[string]int, len(lines))
	if len(items) == 0 {
		for _, item := range order.Cart.Items {
			refundItems = append(refundItems, item)
			refunded[item.TicketTypeID] = item.Quantity
		}
	} else {
		ids := make([]string, 0, len(items))
		for ticketTypeID := range items {
			ids = append(ids, ticketTypeID)
		}
		sort.Strings(ids)
		for _, ticketTypeID := range ids {
			qty := items[ticketTypeID]
			line, ok := lines[ticketTypeID]
			if !ok {
				return nil, apperr.UnknownTicketType(ticketTypeID)
			}
			if qty <= 0 || qty > line.Quantity {
				return nil, &apperr.Error{Code: apperr.CodeInvalidQuantity, Kind: apperr.KindValidation, Entity: ticketTypeID,
					Message: fmt.Sprintf("Refund quantity for %s must be between 1 and %d", line.Name, line.Quantity)}
			}
			line.Quantity = qty
			refundItems = append(refundItems, line)
			refunded[ticketTypeID] = qty
		}
	}

	units := 0
	for _, qty := range refunded {
		units += qty
	}
	target := models.OrderStatusPartiallyRefunded
	amount := pricing.Compute(refundItems, order.Cart.Rates).Total
	if units == order.Cart.ItemCount {
		target = models.OrderStatusRefunded
		amount = order.Total
	}

	// Only one refund may hold the claim. The order stays completed until the
	// processor has returned the money.
	claimed, err := s.DB.SwapRefundAmount(ctx, order.ID, 0, amount)
	if err != nil {
		return nil, apperr.System("claim refund", err)
	}
	if !claimed {
		return nil, &apperr.Error{Code: apperr.CodeInvalidTransition, Kind: apperr.KindTransition, Entity: order.ID,
			Message: "A refund for this order is already in progress"}
	}

	if err := s.Gateway.Refund(ctx, order.PaymentReference, amount); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Refund for order %s failed: %v", order.ID, err))
		if _, relErr := s.DB.SwapRefundAmount(ctx, order.ID, amount, 0); relErr != nil {
			s.Logger.Error("ORDER", fmt.Sprintf("Failed to release refund claim on order %s: %v", order.ID, relErr))
		}
		return nil, apperr.PaymentFailed(order.ID, err)
	}

	order.RefundedItems = refunded
	order.RefundAmount = amount
	if err := s.transition(ctx, order, target); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Order %s refunded %d at the processor but status update failed: %v", order.ID, amount, err))
		return nil, err
	}
	s.recordPayment(ctx, order, models.PaymentStatusRefunded, order.PaymentReference, amount, "")

	if s.RestockOnRefund {
		for _, item := range refundItems {
			if err := s.Inventory.Restock(ctx, item.TicketTypeID, item.Quantity); err != nil {
				s.Logger.Error("INVENTORY", fmt.Sprintf("Restock of %d x %s for order %s failed: %v", item.Quantity, item.TicketTypeID, order.ID, err))
			}
		}
	}

	s.Logger.LogOrder("REFUNDED", order.ID, fmt.Sprintf("%d units, %d %s", units, amount, order.Currency))
	s.publish(ctx, EventOrderRefunded, *order)
	return order, nil
}
