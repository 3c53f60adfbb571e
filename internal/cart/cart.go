// Package cart turns a buyer's ticket selection into a validated Cart. All
// selection rules (sale status, per-order limits, availability) live here so
// the event page and checkout apply exactly the same checks.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/models"

	"github.com/google/uuid"
)

const DefaultTTL = 10 * time.Minute

type Catalog interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
}

type Availability interface {
	GetAvailable(ctx context.Context, ticketTypeID string) (int, error)
}

type Builder struct {
	Catalog   Catalog
	Inventory Availability
	Clock     clock.Clock
	TTL       time.Duration
}

func NewBuilder(catalog Catalog, inventory Availability, clk clock.Clock, ttl time.Duration) *Builder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Builder{Catalog: catalog, Inventory: inventory, Clock: clk, TTL: ttl}
}

// BuildCart validates items (ticket type id -> quantity) against the event and
// returns a cart with one line per requested type. Zero quantities are
// ignored. Checks run in a fixed order and the first violation is returned:
// event on sale, ticket type offered, per-order limits, availability, and
// finally that something was selected. BuildCart has no side effects.
func (b *Builder) BuildCart(ctx context.Context, eventID string, items map[string]int) (*models.Cart, error) {
	ids := make([]string, 0, len(items))
	for id, qty := range items {
		if qty != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	event, err := b.Catalog.GetEvent(ctx, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.EventNotOnSale(eventID)
	}
	if err != nil {
		return nil, apperr.System("get event", err)
	}
	if !event.OnSale() {
		return nil, apperr.EventNotOnSale(eventID)
	}

	types, err := b.Catalog.ListTicketTypes(ctx, eventID)
	if err != nil {
		return nil, apperr.System("list ticket types", err)
	}
	byID := make(map[string]models.TicketType, len(types))
	for _, tt := range types {
		byID[tt.ID] = tt
	}

	now := b.Clock.Now()
	selected := make([]models.TicketType, 0, len(ids))
	for _, id := range ids {
		tt, ok := byID[id]
		if !ok || !tt.Purchasable() {
			return nil, apperr.UnknownTicketType(id)
		}
		if !tt.InSaleWindow(now) {
			return nil, apperr.TicketTypeNotOnSale(tt.Name)
		}
		selected = append(selected, tt)
	}

	for _, tt := range selected {
		qty := items[tt.ID]
		if qty < tt.MinPerOrder {
			return nil, apperr.BelowMinimum(tt.Name, tt.MinPerOrder)
		}
		if tt.MaxPerOrder > 0 && qty > tt.MaxPerOrder {
			return nil, apperr.AboveMaximum(tt.Name, tt.MaxPerOrder)
		}
	}

	for _, tt := range selected {
		available, err := b.Inventory.GetAvailable(ctx, tt.ID)
		if err != nil {
			return nil, err
		}
		if items[tt.ID] > available {
			return nil, apperr.SoldOut(tt.Name, available)
		}
	}

	if len(selected) == 0 {
		return nil, apperr.New(apperr.CodeEmptyCart, apperr.KindValidation, "Select at least one ticket")
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].SortOrder != selected[j].SortOrder {
			return selected[i].SortOrder < selected[j].SortOrder
		}
		return selected[i].ID < selected[j].ID
	})

	c := &models.Cart{
		ID:        uuid.NewString(),
		EventID:   event.ID,
		Currency:  event.Currency,
		Items:     make([]models.CartItem, 0, len(selected)),
		CreatedAt: now,
		ExpiresAt: now.Add(b.TTL),
	}
	for _, tt := range selected {
		c.Items = append(c.Items, models.CartItem{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			UnitPrice:    tt.UnitPrice,
			Quantity:     items[tt.ID],
		})
	}
	return c, nil
}
