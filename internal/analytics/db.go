package analytics

import (
	"context"
	"strings"

	"tixly-ticketing/internal/models"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// StatusTotals is the order count and money per order status.
type StatusTotals struct {
	Status   models.OrderStatus `bun:"status"`
	Orders   int                `bun:"orders"`
	Revenue  int64              `bun:"revenue"`
	Refunded int64              `bun:"refunded"`
}

// GetStatusTotals aggregates the orders of an event by status
func (db *DB) GetStatusTotals(ctx context.Context, eventID string) ([]StatusTotals, error) {
	var totals []StatusTotals
	err := db.bun.NewSelect().
		TableExpr("orders").
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS orders").
		ColumnExpr("COALESCE(SUM(total), 0) AS revenue").
		ColumnExpr("COALESCE(SUM(refund_amount), 0) AS refunded").
		Where("event_id = ?", eventID).
		GroupExpr("status").
		OrderExpr("status").
		Scan(ctx, &totals)
	return totals, err
}

// GetTicketTypes returns the ticket types of an event with their counters
func (db *DB) GetTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	var types []models.TicketType
	err := db.bun.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		Order("sort_order ASC", "id ASC").
		Scan(ctx)
	return types, err
}

// TypeRevenue is the issued ticket count and face value per ticket type.
type TypeRevenue struct {
	TicketTypeID string `bun:"ticket_type_id"`
	Tickets      int    `bun:"tickets"`
	Revenue      int64  `bun:"revenue"`
	CheckedIn    int    `bun:"checked_in"`
}

// GetRevenueByTicketType sums issued tickets of an event per ticket type
func (db *DB) GetRevenueByTicketType(ctx context.Context, eventID string) ([]TypeRevenue, error) {
	var rows []TypeRevenue
	err := db.bun.NewSelect().
		TableExpr("tickets").
		ColumnExpr("ticket_type_id").
		ColumnExpr("COUNT(*) AS tickets").
		ColumnExpr("COALESCE(SUM(price_paid), 0) AS revenue").
		ColumnExpr("COALESCE(SUM(CASE WHEN checked_in THEN 1 ELSE 0 END), 0) AS checked_in").
		Where("event_id = ?", eventID).
		GroupExpr("ticket_type_id").
		Scan(ctx, &rows)
	return rows, err
}

// DailySalesData represents raw daily sales metrics from the database
type DailySalesData struct {
	SalesDate     string `bun:"sales_date"`
	DailyRevenue  int64  `bun:"daily_revenue"`
	DailyQuantity int    `bun:"daily_quantity"`
}

// GetDailySalesByEventID retrieves tickets issued per day for an event
func (db *DB) GetDailySalesByEventID(ctx context.Context, eventID string) ([]DailySalesData, error) {
	var dailySales []DailySalesData
	err := db.bun.NewRaw(`
		SELECT
			CAST(DATE(issued_at) AS TEXT) AS sales_date,
			SUM(price_paid) AS daily_revenue,
			COUNT(*) AS daily_quantity
		FROM
			tickets
		WHERE
			event_id = ?
		GROUP BY
			DATE(issued_at)
		ORDER BY
			DATE(issued_at)
	`, eventID).Scan(ctx, &dailySales)
	return dailySales, err
}

// OrderSortField defines the valid fields for sorting orders
type OrderSortField string

const (
	OrderSortByTotal     OrderSortField = "total"
	OrderSortByCreatedAt OrderSortField = "created_at"
)

// EventOrderOptions contains options for filtering and sorting orders
type EventOrderOptions struct {
	Status   string
	SortBy   string
	SortDesc bool
	Limit    int
	Offset   int
}

// GetEventOrders returns orders for a specific event with optional filters
func (db *DB) GetEventOrders(ctx context.Context, eventID string, options EventOrderOptions) ([]models.Order, error) {
	q := db.bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("event_id = ?", eventID)

	if options.Status != "" {
		q = q.Where("status = ?", options.Status)
	}

	direction := "DESC"
	if options.SortBy != "" && !options.SortDesc {
		direction = "ASC"
	}
	switch OrderSortField(strings.ToLower(options.SortBy)) {
	case OrderSortByTotal:
		q = q.Order("total "+direction, "id ASC")
	default:
		q = q.Order("created_at "+direction, "id ASC")
	}

	if options.Limit > 0 {
		q = q.Limit(options.Limit)
	}
	if options.Offset > 0 {
		q = q.Offset(options.Offset)
	}

	orders := []models.Order{}
	if err := q.Scan(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
