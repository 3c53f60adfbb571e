package db

import (
	"context"
	"time"

	"tixly-ticketing/internal/database"
	"tixly-ticketing/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, d.Bun, fn)
}

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	Category string
	Query    string
	Statuses []models.EventStatus
	Limit    int
}

// ---------------- EVENTS ----------------

// GetEvent → fetch one event by ID
func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEventBySlug → fetch one event by its public slug
func (d *DB) GetEventBySlug(ctx context.Context, slug string) (*models.Event, error) {
	var event models.Event
	err := d.conn(ctx).NewSelect().
		Model(&event).
		Where("slug = ?", slug).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListEvents → events matching filter, featured first, then by start date
func (d *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	var events []models.Event
	q := d.conn(ctx).NewSelect().Model(&events)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(filter.Statuses))
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(name) LIKE LOWER(?)", like).
				WhereOr("LOWER(venue_name) LIKE LOWER(?)", like).
				WhereOr("LOWER(venue_city) LIKE LOWER(?)", like)
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Order("is_featured DESC", "start_date ASC", "id ASC").Scan(ctx)
	return events, err
}

// CreateEvent → insert an event and its ticket types in one transaction
func (d *DB) CreateEvent(ctx context.Context, event *models.Event, ticketTypes []models.TicketType) error {
	return d.WithTx(ctx, func(ctx context.Context) error {
		if _, err := d.conn(ctx).NewInsert().Model(event).Exec(ctx); err != nil {
			return err
		}
		if len(ticketTypes) == 0 {
			return nil
		}
		_, err := d.conn(ctx).NewInsert().Model(&ticketTypes).Exec(ctx)
		return err
	})
}

// UpsertEvent → insert or refresh an event and its ticket types by ID.
// Inventory counters of existing ticket types are left alone.
func (d *DB) UpsertEvent(ctx context.Context, event *models.Event, ticketTypes []models.TicketType) error {
	return d.WithTx(ctx, func(ctx context.Context) error {
		_, err := d.conn(ctx).NewInsert().
			Model(event).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("short_description = EXCLUDED.short_description").
			Set("description = EXCLUDED.description").
			Set("category = EXCLUDED.category").
			Set("status = EXCLUDED.status").
			Set("start_date = EXCLUDED.start_date").
			Set("end_date = EXCLUDED.end_date").
			Set("venue_name = EXCLUDED.venue_name").
			Set("venue_city = EXCLUDED.venue_city").
			Set("venue_state = EXCLUDED.venue_state").
			Set("is_featured = EXCLUDED.is_featured").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		if len(ticketTypes) == 0 {
			return nil
		}
		_, err = d.conn(ctx).NewInsert().
			Model(&ticketTypes).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("description = EXCLUDED.description").
			Set("unit_price = EXCLUDED.unit_price").
			Set("quantity_total = EXCLUDED.quantity_total").
			Set("min_per_order = EXCLUDED.min_per_order").
			Set("max_per_order = EXCLUDED.max_per_order").
			Set("hidden = EXCLUDED.hidden").
			Set("sort_order = EXCLUDED.sort_order").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// UpdateEventStatus → move an event to status to while it is in one of from
func (d *DB) UpdateEventStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus, now time.Time) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---------------- TICKET TYPES ----------------

// ListTicketTypes → ticket types of one event in display order
func (d *DB) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var types []models.TicketType
	err := d.conn(ctx).NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	return types, err
}

// ListTicketTypesForEvents → ticket types of many events grouped by event ID
func (d *DB) ListTicketTypesForEvents(ctx context.Context, eventIDs []string) (map[string][]models.TicketType, error) {
	out := make(map[string][]models.TicketType, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}
	var types []models.TicketType
	err := d.conn(ctx).NewSelect().
		Model(&types).
		Where("event_id IN (?)", bun.In(eventIDs)).
		Order("event_id ASC", "sort_order ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, tt := range types {
		out[tt.EventID] = append(out[tt.EventID], tt)
	}
	return out, nil
}

// GetTicketType → fetch one ticket type
func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.conn(ctx).NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &tt, nil
}
