// Package payment talks to the card processor. Gateways report declines as
// a ChargeResult, not an error; errors mean the processor could not be
// reached or answered with something unexpected.
package payment

import (
	"context"

	"tixly-ticketing/internal/models"
)

type ChargeRequest struct {
	OrderID        string
	OrderNumber    string
	Amount         int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
	Email          string
}

type ChargeResult struct {
	Reference string
	// Status is succeeded, processing (settles later through the webhook)
	// or declined.
	Status        models.PaymentStatus
	DeclineReason string
}

type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, reference string, amount int64) error
}

// WebhookEvent is a settled asynchronous payment.
type WebhookEvent struct {
	Reference string
	OrderID   string
	Succeeded bool
	Reason    string
}
