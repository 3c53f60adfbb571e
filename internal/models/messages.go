package models

import "time"

// OrderEventMessage is the payload published for every order status change.
type OrderEventMessage struct {
	Type        string      `json:"type"`
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	EventID     string      `json:"event_id"`
	UserID      string      `json:"user_id,omitempty"`
	Status      OrderStatus `json:"status"`
	Total       int64       `json:"total"`
	Currency    string      `json:"currency"`
	ItemCount   int         `json:"item_count"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

func NewOrderEventMessage(eventType string, o Order, at time.Time) OrderEventMessage {
	return OrderEventMessage{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		EventID:     o.EventID,
		UserID:      o.UserID,
		Status:      o.Status,
		Total:       o.Total,
		Currency:    o.Currency,
		ItemCount:   o.Cart.ItemCount,
		OccurredAt:  at,
	}
}

// InventoryReleasedMessage announces units returned to sale by the sweep.
type InventoryReleasedMessage struct {
	HoldIDs    []string  `json:"hold_ids"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
