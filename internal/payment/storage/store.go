package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tixly-ticketing/internal/database"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"

	"github.com/uptrace/bun"
)

var ErrPaymentNotFound = errors.New("payment not found")

// Store keeps the audit trail of charges and refunds.
type Store struct {
	Bun *bun.DB
	log *logger.Logger
}

func NewStore(db *bun.DB, log *logger.Logger) *Store {
	return &Store{Bun: db, log: log}
}

// SavePayment saves a payment to the database
func (s *Store) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s", payment.ID))

	if _, err := database.Conn(ctx, s.Bun).NewInsert().Model(payment).Exec(ctx); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.ID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// GetPayment retrieves a payment by ID
func (s *Store) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment := new(models.Payment)
	err := database.Conn(ctx, s.Bun).NewSelect().Model(payment).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListPayments returns the payments of an order, newest first.
func (s *Store) ListPayments(ctx context.Context, orderID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := database.Conn(ctx, s.Bun).NewSelect().
		Model(&payments).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.Bun.PingContext(ctx)
}
