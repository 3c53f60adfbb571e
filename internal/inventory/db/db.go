package db

import (
	"context"
	"database/sql"
	"fmt"
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

// ---------------- TICKET TYPE COUNTERS ----------------

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

// AddHeld is the compare-and-swap that keeps sold+held within total.
func (d *DB) AddHeld(ctx context.Context, ticketTypeID string, quantity int) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Table("ticket_types").
		Set("quantity_held = quantity_held + ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("quantity_total - quantity_sold - quantity_held >= ?", quantity).
		Exec(ctx)
	return affectedOne(res, err)
}

func (d *DB) ReleaseHeld(ctx context.Context, ticketTypeID string, quantity int) error {
	res, err := d.conn(ctx).NewUpdate().
		Table("ticket_types").
		Set("quantity_held = quantity_held - ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("quantity_held >= ?", quantity).
		Exec(ctx)
	return mustAffect(res, err, "release held", ticketTypeID)
}

func (d *DB) ConvertHeldToSold(ctx context.Context, ticketTypeID string, quantity int) error {
	res, err := d.conn(ctx).NewUpdate().
		Table("ticket_types").
		Set("quantity_held = quantity_held - ?", quantity).
		Set("quantity_sold = quantity_sold + ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("quantity_held >= ?", quantity).
		Exec(ctx)
	return mustAffect(res, err, "convert held", ticketTypeID)
}

func (d *DB) ReturnSold(ctx context.Context, ticketTypeID string, quantity int) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Table("ticket_types").
		Set("quantity_sold = quantity_sold - ?", quantity).
		Where("id = ?", ticketTypeID).
		Where("quantity_sold >= ?", quantity).
		Exec(ctx)
	return affectedOne(res, err)
}

// ---------------- HOLDS ----------------

func (d *DB) InsertHold(ctx context.Context, hold *models.InventoryHold) error {
	_, err := d.conn(ctx).NewInsert().Model(hold).Exec(ctx)
	return err
}

func (d *DB) GetHold(ctx context.Context, id string) (*models.InventoryHold, error) {
	var hold models.InventoryHold
	err := d.conn(ctx).NewSelect().
		Model(&hold).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

// DeleteHold reports whether this call removed the hold.
func (d *DB) DeleteHold(ctx context.Context, id string) (bool, error) {
	res, err := d.conn(ctx).NewDelete().
		Model((*models.InventoryHold)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOne(res, err)
}

func (d *DB) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.InventoryHold, error) {
	var holds []models.InventoryHold
	err := d.conn(ctx).NewSelect().
		Model(&holds).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	return holds, err
}

func (d *DB) SumHolds(ctx context.Context, ticketTypeID string) (int, error) {
	var total int
	err := d.conn(ctx).NewSelect().
		Model((*models.InventoryHold)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("ticket_type_id = ?", ticketTypeID).
		Scan(ctx, &total)
	return total, err
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func mustAffect(res sql.Result, err error, op, id string) error {
	ok, err := affectedOne(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: counters of ticket type %s out of range", op, id)
	}
	return nil
}
