package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketType is a purchasable tier within one event. The quantity counters
// are owned by the inventory ledger and only change through it.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID            string    `bun:"id,pk" json:"id"`
	EventID       string    `bun:"event_id,notnull" json:"eventId"`
	Name          string    `bun:"name,notnull" json:"name"`
	Description   string    `bun:"description" json:"description,omitempty"`
	UnitPrice     int64     `bun:"unit_price,notnull" json:"unitPrice"`
	Currency      string    `bun:"currency,notnull" json:"currency"`
	QuantityTotal int       `bun:"quantity_total,notnull" json:"quantityTotal"`
	QuantitySold  int       `bun:"quantity_sold,notnull" json:"quantitySold"`
	QuantityHeld  int       `bun:"quantity_held,notnull" json:"quantityHeld"`
	MinPerOrder   int       `bun:"min_per_order,notnull" json:"minPerOrder"`
	MaxPerOrder   int       `bun:"max_per_order,notnull" json:"maxPerOrder"`
	SaleStart     time.Time `bun:"sale_start,nullzero" json:"saleStart,omitempty"`
	SaleEnd       time.Time `bun:"sale_end,nullzero" json:"saleEnd,omitempty"`
	Hidden        bool      `bun:"hidden,notnull" json:"hidden"`
	Retired       bool      `bun:"retired,notnull" json:"retired"`
	SortOrder     int       `bun:"sort_order,notnull" json:"sortOrder"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Available is total minus sold minus held, never negative.
func (t TicketType) Available() int {
	n := t.QuantityTotal - t.QuantitySold - t.QuantityHeld
	if n < 0 {
		return 0
	}
	return n
}

// Purchasable reports whether the type is listed for sale.
func (t TicketType) Purchasable() bool {
	return !t.Hidden && !t.Retired
}

// InSaleWindow reports whether now falls inside the optional sale window.
func (t TicketType) InSaleWindow(now time.Time) bool {
	if !t.SaleStart.IsZero() && now.Before(t.SaleStart) {
		return false
	}
	if !t.SaleEnd.IsZero() && !now.Before(t.SaleEnd) {
		return false
	}
	return true
}

// InventoryHold reserves units of a ticket type for a checkout in progress.
type InventoryHold struct {
	bun.BaseModel `bun:"table:inventory_holds"`

	ID           string    `bun:"id,pk" json:"id"`
	TicketTypeID string    `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	CartID       string    `bun:"cart_id" json:"cartId"`
	Quantity     int       `bun:"quantity,notnull" json:"quantity"`
	ExpiresAt    time.Time `bun:"expires_at,notnull" json:"expiresAt"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}

func (h InventoryHold) Expired(now time.Time) bool {
	return !h.ExpiresAt.After(now)
}
