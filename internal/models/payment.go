package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Payment records one charge or refund attempt against an order.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID            string        `bun:"id,pk" json:"id"`
	OrderID       string        `bun:"order_id,notnull" json:"orderId"`
	Provider      string        `bun:"provider,notnull" json:"provider"`
	Reference     string        `bun:"reference,nullzero" json:"reference,omitempty"`
	Status        PaymentStatus `bun:"status,notnull" json:"status"`
	Amount        int64         `bun:"amount,notnull" json:"amount"`
	Currency      string        `bun:"currency,notnull" json:"currency"`
	FailureReason string        `bun:"failure_reason,nullzero" json:"failureReason,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,notnull" json:"createdAt"`
}
