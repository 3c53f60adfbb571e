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

// CreateTickets → insert all tickets of an order in one statement
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.conn(ctx).NewInsert().Model(&tickets).Exec(ctx)
	return err
}

// GetTicketByID → fetch one ticket
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketsByOrder → tickets of one order in issue order
func (d *DB) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("issued_at ASC", "barcode ASC").
		Scan(ctx)
	return tickets, err
}

// GetTicketsByUser → every ticket a user holds, newest first
func (d *DB) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.conn(ctx).NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("issued_at DESC", "barcode ASC").
		Scan(ctx)
	return tickets, err
}

// CheckIn → mark a ticket used; false when it already was
func (d *DB) CheckIn(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("checked_in = ?", true).
		Set("checked_in_at = ?", at).
		Where("id = ?", id).
		Where("checked_in = ?", false).
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

// CountCheckedIn → checked-in tickets of an event
func (d *DB) CountCheckedIn(ctx context.Context, eventID string) (int, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("checked_in = ?", true).
		Count(ctx)
}
