package order

import (
	"context"
	"errors"
	"fmt"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/payment"
)

// SubmitPayment charges a pending order. A declined charge releases the
// holds and fails the order; a successful one commits the holds and
// completes it in a single transaction. Charges the processor settles later
// leave the order processing until ConfirmPayment.
func (s *OrderService) SubmitPayment(ctx context.Context, orderID string, details models.PaymentDetails) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, apperr.InvalidTransition(order.ID, string(order.Status), string(models.OrderStatusProcessing))
	}

	if !s.Clock.Now().Before(order.ExpiresAt) {
		s.release(ctx, order)
		order.FailureReason = "reservation expired"
		if err := s.transition(ctx, order, models.OrderStatusCancelled); err != nil {
			return nil, err
		}
		s.publish(ctx, EventOrderCancelled, *order)
		return nil, apperr.HoldExpired(order.ID)
	}

	if err := s.transition(ctx, order, models.OrderStatusProcessing); err != nil {
		return nil, err
	}

	key := details.IdempotencyKey
	if key == "" {
		key = "order-" + order.ID
	}
	result, err := s.Gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Amount:         order.Total,
		Currency:       order.Currency,
		PaymentMethod:  details.PaymentMethod,
		IdempotencyKey: key,
		Email:          order.Customer.Email,
	})
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Charge for order %s failed: %v", order.ID, err))
		s.recordPayment(ctx, order, models.PaymentStatusDeclined, "", order.Total, err.Error())
		s.fail(ctx, order, "payment error")
		return order, apperr.PaymentFailed(order.ID, err)
	}

	order.PaymentReference = result.Reference
	switch result.Status {
	case models.PaymentStatusDeclined:
		s.recordPayment(ctx, order, models.PaymentStatusDeclined, result.Reference, order.Total, result.DeclineReason)
		s.fail(ctx, order, "payment declined")
		return order, apperr.PaymentFailed(order.ID, errors.New(result.DeclineReason))

	case models.PaymentStatusProcessing:
		s.recordPayment(ctx, order, models.PaymentStatusProcessing, result.Reference, order.Total, "")
		ok, err := s.DB.SaveOrder(ctx, order, models.OrderStatusProcessing)
		if err != nil {
			return nil, apperr.System("save payment reference", err)
		}
		if !ok {
			return s.lostToConcurrentChange(ctx, order.ID, result.Reference)
		}
		s.Logger.LogPayment("PENDING", order.ID, fmt.Sprintf("Awaiting settlement of %s", result.Reference))
		return order, nil
	}

	s.recordPayment(ctx, order, models.PaymentStatusSucceeded, result.Reference, order.Total, "")
	if err := s.complete(ctx, order); err != nil {
		return order, err
	}
	return order, nil
}

// lostToConcurrentChange handles an order that left processing while its
// charge was in flight. The reference is still recorded so a late settlement
// can be matched and refunded.
func (s *OrderService) lostToConcurrentChange(ctx context.Context, orderID, reference string) (*models.Order, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.PaymentReference == "" {
		current.PaymentReference = reference
		if _, err := s.DB.SaveOrder(ctx, current, current.Status); err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to record reference %s on order %s: %v", reference, orderID, err))
		}
	}
	s.Logger.Warn("PAYMENT", fmt.Sprintf("Order %s became %s while charge %s was pending", orderID, current.Status, reference))
	return current, apperr.InvalidTransition(orderID, string(current.Status), string(models.OrderStatusProcessing))
}

// ConfirmPayment settles an asynchronous charge reported by the processor.
// The order is found by orderID when known, otherwise by reference.
// Redelivered confirmations of a completed order are accepted silently; a
// success for an order that already gave up is refunded.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, reference string, succeeded bool, reason string) (*models.Order, error) {
	var order *models.Order
	var err error
	if orderID != "" {
		order, err = s.GetOrder(ctx, orderID)
	} else {
		order, err = s.DB.GetOrderByPaymentReference(ctx, reference)
		if err != nil {
			err = apperr.OrderNotFound(reference)
		}
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentReference == "" {
		order.PaymentReference = reference
	}

	if order.Status != models.OrderStatusProcessing {
		if succeeded && order.Status == models.OrderStatusCompleted {
			return order, nil
		}
		if succeeded && (order.Status == models.OrderStatusFailed || order.Status == models.OrderStatusCancelled) {
			s.refundAbandoned(ctx, order, reference)
			return order, nil
		}
		return nil, apperr.InvalidTransition(order.ID, string(order.Status), string(models.OrderStatusCompleted))
	}

	if !succeeded {
		s.recordPayment(ctx, order, models.PaymentStatusDeclined, reference, order.Total, reason)
		s.Logger.LogPayment("DECLINED", order.ID, reason)
		s.fail(ctx, order, "payment declined")
		return order, nil
	}

	s.recordPayment(ctx, order, models.PaymentStatusSucceeded, reference, order.Total, "")
	if err := s.complete(ctx, order); err != nil {
		return order, err
	}
	return order, nil
}

// complete commits the holds and moves the order to completed in the same
// transaction, issuing its tickets there too. If that fails the holds are
// released, the charge is refunded and the order fails.
func (s *OrderService) complete(ctx context.Context, order *models.Order) error {
	done := *order
	err := s.Inventory.CommitHolds(ctx, order.HoldIDs, func(ctx context.Context) error {
		if err := s.transition(ctx, &done, models.OrderStatusCompleted); err != nil {
			return err
		}
		if s.Tickets != nil {
			if _, err := s.Tickets.IssueTickets(ctx, &done); err != nil {
				return apperr.System("issue tickets", err)
			}
		}
		return nil
	})
	if err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("Commit of order %s failed after payment: %v", order.ID, err))
		s.refundAbandoned(ctx, order, order.PaymentReference)
		s.fail(ctx, order, "reservation could not be confirmed")
		if apperr.KindOf(err) == apperr.KindSystem {
			return err
		}
		return &apperr.Error{Code: apperr.CodeOf(err), Kind: apperr.KindOf(err), Entity: order.ID,
			Message: "Your reservation could not be confirmed and the payment has been refunded", Err: err}
	}

	*order = done
	s.Logger.LogOrder("COMPLETED", order.ID, fmt.Sprintf("%s paid %d %s", order.OrderNumber, order.Total, order.Currency))
	s.publish(ctx, EventOrderCompleted, *order)
	if s.Sales != nil {
		s.Sales.OrderCompleted(*order)
	}
	return nil
}

// fail releases the holds and moves a processing order to failed.
func (s *OrderService) fail(ctx context.Context, order *models.Order, reason string) {
	s.release(ctx, order)
	order.FailureReason = reason
	if err := s.transition(ctx, order, models.OrderStatusFailed); err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Could not mark order %s failed: %v", order.ID, err))
		return
	}
	s.publish(ctx, EventOrderFailed, *order)
}

func (s *OrderService) refundAbandoned(ctx context.Context, order *models.Order, reference string) {
	if reference == "" {
		return
	}
	if err := s.Gateway.Refund(ctx, reference, order.Total); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Refund of abandoned charge %s for order %s failed: %v", reference, order.ID, err))
		return
	}
	s.recordPayment(ctx, order, models.PaymentStatusRefunded, reference, order.Total, "order not fulfilled")
	s.Logger.LogPayment("REFUNDED", order.ID, fmt.Sprintf("Charge %s returned, order not fulfilled", reference))
}
