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

// ---------------- ORDERS ----------------

// CreateOrder → insert new order
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := d.conn(ctx).NewInsert().Model(order).Exec(ctx)
	return err
}

// GetOrderByID → fetch one order by its ID
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.conn(ctx).NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentReference → find the order a processor charge belongs to
func (d *DB) GetOrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := d.conn(ctx).NewSelect().
		Model(&order).
		Where("payment_reference = ?", reference).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrder → update the mutable fields, only if the status is still from
func (d *DB) SaveOrder(ctx context.Context, order *models.Order, from models.OrderStatus) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model(order).
		Column("status", "payment_reference", "failure_reason", "refunded_items", "refund_amount", "updated_at", "completed_at").
		Where("id = ?", order.ID).
		Where("status = ?", from).
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

// SwapRefundAmount → set refund_amount from expect to amount on a completed
// order; reports whether the row matched
func (d *DB) SwapRefundAmount(ctx context.Context, id string, expect, amount int64) (bool, error) {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Order)(nil)).
		Set("refund_amount = ?", amount).
		Where("id = ?", id).
		Where("status = ?", models.OrderStatusCompleted).
		Where("refund_amount = ?", expect).
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

// ---------------- RECONCILIATION ----------------

// ListPendingExpired → pending orders whose reservation has run out
func (d *DB) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := d.conn(ctx).NewSelect().
		Model(&orders).
		Where("status = ?", models.OrderStatusPending).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// ListProcessingBefore → orders whose payment started at or before cutoff
func (d *DB) ListProcessingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := d.conn(ctx).NewSelect().
		Model(&orders).
		Where("status = ?", models.OrderStatusProcessing).
		Where("updated_at <= ?", cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// ---------------- USERS ----------------

// GetOrdersByUserID → all orders of a user, newest first
func (d *DB) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.conn(ctx).NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return orders, err
}
