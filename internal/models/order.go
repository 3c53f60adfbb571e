package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusFailed            OrderStatus = "failed"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRefunded          OrderStatus = "refunded"
	OrderStatusPartiallyRefunded OrderStatus = "partially_refunded"
)

type Customer struct {
	FirstName string `bun:"first_name" json:"firstName" validate:"required,max=100"`
	LastName  string `bun:"last_name" json:"lastName" validate:"required,max=100"`
	Email     string `bun:"email" json:"email" validate:"required,email"`
}

func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Order is the durable purchase record. Cart is the priced snapshot taken at
// checkout and never changes afterwards; refunds are tracked separately.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string         `bun:"id,pk" json:"id"`
	OrderNumber      string         `bun:"order_number,unique,notnull" json:"orderNumber"`
	EventID          string         `bun:"event_id,notnull" json:"eventId"`
	UserID           string         `bun:"user_id,nullzero" json:"userId,omitempty"`
	Customer         Customer       `bun:"embed:customer_" json:"customer"`
	Cart             PricedCart     `bun:"cart,type:jsonb" json:"cart"`
	Total            int64          `bun:"total,notnull" json:"total"`
	Currency         string         `bun:"currency,notnull" json:"currency"`
	Status           OrderStatus    `bun:"status,notnull" json:"status"`
	HoldIDs          []string       `bun:"hold_ids,type:jsonb" json:"holdIds"`
	PaymentReference string         `bun:"payment_reference,nullzero" json:"paymentReference,omitempty"`
	FailureReason    string         `bun:"failure_reason,nullzero" json:"failureReason,omitempty"`
	RefundedItems    map[string]int `bun:"refunded_items,type:jsonb" json:"refundedItems,omitempty"`
	RefundAmount     int64          `bun:"refund_amount,notnull" json:"refundAmount"`
	CreatedAt        time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt        time.Time      `bun:"updated_at,notnull" json:"updatedAt"`
	ExpiresAt        time.Time      `bun:"expires_at,notnull" json:"expiresAt"`
	CompletedAt      time.Time      `bun:"completed_at,nullzero" json:"completedAt,omitempty"`
}

// PaymentDetails is what the buyer submits to pay for a pending order.
type PaymentDetails struct {
	PaymentMethod  string `json:"paymentMethod" validate:"required"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
