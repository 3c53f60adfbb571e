package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPending   EventStatus = "pending"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusScheduled EventStatus = "scheduled"
	EventStatusOnSale    EventStatus = "on_sale"
	EventStatusPaused    EventStatus = "paused"
	EventStatusSoldOut   EventStatus = "sold_out"
	EventStatusEnded     EventStatus = "ended"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusPostponed EventStatus = "postponed"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID               string      `bun:"id,pk" json:"id"`
	Slug             string      `bun:"slug,unique,notnull" json:"slug"`
	Name             string      `bun:"name,notnull" json:"name"`
	ShortDescription string      `bun:"short_description" json:"shortDescription"`
	Description      string      `bun:"description" json:"description,omitempty"`
	Category         string      `bun:"category,notnull" json:"category"`
	Status           EventStatus `bun:"status,notnull" json:"status"`
	StartDate        time.Time   `bun:"start_date,notnull" json:"startDate"`
	EndDate          time.Time   `bun:"end_date,nullzero" json:"endDate,omitempty"`
	VenueName        string      `bun:"venue_name,notnull" json:"venueName"`
	VenueCity        string      `bun:"venue_city" json:"venueCity,omitempty"`
	VenueState       string      `bun:"venue_state" json:"venueState,omitempty"`
	Currency         string      `bun:"currency,notnull" json:"currency"`
	OrganizerID      string      `bun:"organizer_id,notnull" json:"organizerId"`
	IsFeatured       bool        `bun:"is_featured,notnull" json:"isFeatured"`
	CreatedAt        time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt        time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

// OnSale reports whether carts may be built against the event.
func (e Event) OnSale() bool {
	return e.Status == EventStatusOnSale
}
