package order

import (
	"context"
	"fmt"
	"time"

	"tixly-ticketing/internal/models"
)

type ReconcileResult struct {
	Failed    int
	Cancelled int
}

// Reconcile fails orders whose payment has been processing for longer than
// ProcessingTimeout and cancels pending orders past their expiry. Both
// release the order's holds.
func (s *OrderService) Reconcile(ctx context.Context, now time.Time) (ReconcileResult, error) {
	var result ReconcileResult

	stuck, err := s.DB.ListProcessingBefore(ctx, now.Add(-s.ProcessingTimeout), reconcileBatchSize)
	if err != nil {
		return result, fmt.Errorf("list processing orders: %w", err)
	}
	for i := range stuck {
		order := &stuck[i]
		s.Logger.Warn("RECONCILE", fmt.Sprintf("Order %s has been processing since %s, failing it", order.ID, order.UpdatedAt.Format(time.RFC3339)))
		before := order.Status
		s.fail(ctx, order, "payment confirmation timed out")
		if order.Status != before {
			result.Failed++
		}
	}

	expired, err := s.DB.ListPendingExpired(ctx, now, reconcileBatchSize)
	if err != nil {
		return result, fmt.Errorf("list expired orders: %w", err)
	}
	for i := range expired {
		order := &expired[i]
		s.release(ctx, order)
		order.FailureReason = "reservation expired"
		if err := s.transition(ctx, order, models.OrderStatusCancelled); err != nil {
			s.Logger.Warn("RECONCILE", fmt.Sprintf("Could not cancel expired order %s: %v", order.ID, err))
			continue
		}
		s.publish(ctx, EventOrderCancelled, *order)
		result.Cancelled++
	}

	if result.Failed > 0 || result.Cancelled > 0 {
		s.Logger.Info("RECONCILE", fmt.Sprintf("Failed %d stuck orders, cancelled %d expired orders", result.Failed, result.Cancelled))
	}
	return result, nil
}

// Sweep expires holds and reconciles orders once.
func (s *OrderService) Sweep(ctx context.Context) {
	now := s.Clock.Now()

	released, err := s.Inventory.ExpireHolds(ctx, now)
	if err != nil {
		s.Logger.Error("SWEEPER", fmt.Sprintf("Expiring holds failed: %v", err))
	}
	if len(released) > 0 && s.Kafka != nil {
		msg := models.InventoryReleasedMessage{HoldIDs: released, Reason: "expired", OccurredAt: now}
		if err := s.Kafka.PublishInventoryReleased(ctx, msg); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish released holds: %v", err))
		}
	}

	if _, err := s.Reconcile(ctx, now); err != nil {
		s.Logger.Error("SWEEPER", fmt.Sprintf("Reconcile failed: %v", err))
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *OrderService) RunSweeper(ctx context.Context, interval time.Duration) {
	s.Logger.Info("SWEEPER", fmt.Sprintf("Hold sweeper started (every %s)", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("SWEEPER", "Hold sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
