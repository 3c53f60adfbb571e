package models

import "time"

type CartItem struct {
	TicketTypeID string `json:"ticketTypeId"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
}

type Cart struct {
	ID        string     `json:"id"`
	EventID   string     `json:"eventId"`
	Currency  string     `json:"currency"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// FeeRates are the pricing inputs. Rates are parts per million so that
// 0.025 is stored as 25000; PerTicketFee is in minor units.
type FeeRates struct {
	ServiceFeePPM int64 `json:"serviceFeePpm"`
	PerTicketFee  int64 `json:"perTicketFee"`
	TaxPPM        int64 `json:"taxPpm"`
}

type PricedLine struct {
	TicketTypeID string `json:"ticketTypeId"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	LineTotal    int64  `json:"lineTotal"`
}

type PricedCart struct {
	Cart
	Lines      []PricedLine `json:"lines"`
	ItemCount  int          `json:"itemCount"`
	Subtotal   int64        `json:"subtotal"`
	ServiceFee int64        `json:"serviceFee"`
	Tax        int64        `json:"tax"`
	Total      int64        `json:"total"`
	Rates      FeeRates     `json:"rates"`
}
