package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is one admission issued for a completed order.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string    `bun:"id,pk" json:"id"`
	OrderID        string    `bun:"order_id,notnull" json:"orderId"`
	EventID        string    `bun:"event_id,notnull" json:"eventId"`
	TicketTypeID   string    `bun:"ticket_type_id,notnull" json:"ticketTypeId"`
	TicketTypeName string    `bun:"ticket_type_name,notnull" json:"ticketTypeName"`
	UserID         string    `bun:"user_id,nullzero" json:"userId,omitempty"`
	AttendeeName   string    `bun:"attendee_name" json:"attendeeName"`
	AttendeeEmail  string    `bun:"attendee_email" json:"attendeeEmail"`
	Barcode        string    `bun:"barcode,unique,notnull" json:"barcode"`
	PricePaid      int64     `bun:"price_paid,notnull" json:"pricePaid"`
	QRCode         []byte    `bun:"qr_code" json:"qrCode,omitempty"`
	IssuedAt       time.Time `bun:"issued_at,notnull" json:"issuedAt"`
	CheckedIn      bool      `bun:"checked_in,notnull" json:"checkedIn"`
	CheckedInAt    time.Time `bun:"checked_in_at,nullzero" json:"checkedInAt,omitempty"`
}

// QRPayload is the content encrypted into a ticket's QR code.
type QRPayload struct {
	TicketID     string `json:"ticket_id"`
	OrderID      string `json:"order_id"`
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`
	Barcode      string `json:"barcode"`
}
