package analytics_test

import (
	"context"
	"testing"
	"time"

	"tixly-ticketing/internal/analytics"
	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func insertOrder(t *testing.T, db *bun.DB, id string, status models.OrderStatus, total, refunded int64, created time.Time) {
	t.Helper()
	order := models.Order{
		ID:           id,
		OrderNumber:  "TIX-" + id,
		EventID:      "e1",
		Customer:     models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Total:        total,
		Currency:     "USD",
		Status:       status,
		RefundAmount: refunded,
		CreatedAt:    created,
		UpdatedAt:    created,
		ExpiresAt:    created.Add(15 * time.Minute),
	}
	_, err := db.NewInsert().Model(&order).Exec(context.Background())
	require.NoError(t, err)
}

func insertTicket(t *testing.T, db *bun.DB, id, orderID, typeID string, price int64, issued time.Time, checkedIn bool) {
	t.Helper()
	ticket := models.Ticket{
		ID:             id,
		OrderID:        orderID,
		EventID:        "e1",
		TicketTypeID:   typeID,
		TicketTypeName: typeID,
		Barcode:        "BC-" + id,
		PricePaid:      price,
		IssuedAt:       issued,
		CheckedIn:      checkedIn,
	}
	_, err := db.NewInsert().Model(&ticket).Exec(context.Background())
	require.NoError(t, err)
}

func setup(t *testing.T) (*analytics.Service, *bun.DB, models.Event) {
	bunDB := testutil.NewSQLiteDB(t)
	event := testutil.InsertEvent(t, bunDB, models.Event{ID: "e1", Name: "Harbor Lights"})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "e1", UnitPrice: 10000, QuantityTotal: 100, QuantitySold: 3, QuantityHeld: 2, SortOrder: 1})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "vip", EventID: "e1", UnitPrice: 5000, QuantityTotal: 4, QuantitySold: 1, SortOrder: 2})
	return analytics.NewService(analytics.NewDB(bunDB)), bunDB, event
}

func TestGetEventAnalytics(t *testing.T) {
	svc, bunDB, event := setup(t)
	day1 := testutil.Epoch
	day2 := testutil.Epoch.Add(24 * time.Hour)

	insertOrder(t, bunDB, "o1", models.OrderStatusCompleted, 27996, 0, day1)
	insertOrder(t, bunDB, "o2", models.OrderStatusPartiallyRefunded, 11177, 5000, day2)
	insertOrder(t, bunDB, "o3", models.OrderStatusFailed, 9000, 0, day2)
	insertOrder(t, bunDB, "o4", models.OrderStatusPending, 9000, 0, day2)

	insertTicket(t, bunDB, "k1", "o1", "ga", 10000, day1, true)
	insertTicket(t, bunDB, "k2", "o1", "ga", 10000, day1, false)
	insertTicket(t, bunDB, "k3", "o1", "vip", 5000, day1, false)
	insertTicket(t, bunDB, "k4", "o2", "ga", 10000, day2, true)

	a, err := svc.GetEventAnalytics(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, int64(27996+11177), a.GrossRevenue)
	assert.Equal(t, int64(5000), a.RefundedAmount)
	assert.Equal(t, int64(27996+11177-5000), a.NetRevenue)
	assert.Equal(t, 4, a.TicketsSold)
	assert.Equal(t, 2, a.TicketsHeld)
	assert.Equal(t, 104, a.Capacity)
	assert.Equal(t, 4, a.PercentageSold)
	assert.Equal(t, 2, a.CheckedIn)
	assert.Equal(t, 1, a.OrdersByStatus[models.OrderStatusFailed])
	assert.Equal(t, 1, a.OrdersByStatus[models.OrderStatusPending])

	require.Len(t, a.SalesByType, 2)
	ga, vip := a.SalesByType[0], a.SalesByType[1]
	assert.Equal(t, "ga", ga.TicketTypeID)
	assert.Equal(t, 95, ga.Available)
	assert.Equal(t, 3, ga.TicketsIssued)
	assert.Equal(t, int64(30000), ga.Revenue)
	assert.Equal(t, 2, ga.CheckedIn)
	assert.Equal(t, 3, vip.Available)
	assert.Equal(t, "Only 3 left!", vip.Availability.Text)
	assert.Equal(t, 25, vip.PercentageSold)

	require.Len(t, a.DailySales, 2)
	assert.Equal(t, "2026-10-17", a.DailySales[0].Date)
	assert.Equal(t, int64(25000), a.DailySales[0].Revenue)
	assert.Equal(t, 3, a.DailySales[0].TicketsSold)
	assert.Equal(t, "2026-10-18", a.DailySales[1].Date)
	assert.Equal(t, 1, a.DailySales[1].TicketsSold)
}

func TestGetEventAnalytics_NoSales(t *testing.T) {
	svc, _, event := setup(t)

	a, err := svc.GetEventAnalytics(context.Background(), event)
	require.NoError(t, err)
	assert.Zero(t, a.GrossRevenue)
	assert.Empty(t, a.DailySales)
	assert.Empty(t, a.OrdersByStatus)
	assert.Len(t, a.SalesByType, 2)
}

func TestGetEventOrders(t *testing.T) {
	svc, bunDB, _ := setup(t)
	insertOrder(t, bunDB, "o1", models.OrderStatusCompleted, 300, 0, testutil.Epoch)
	insertOrder(t, bunDB, "o2", models.OrderStatusCompleted, 100, 0, testutil.Epoch.Add(time.Hour))
	insertOrder(t, bunDB, "o3", models.OrderStatusFailed, 200, 0, testutil.Epoch.Add(2*time.Hour))
	ctx := context.Background()

	orders, err := svc.GetEventOrders(ctx, "e1", analytics.EventOrderOptions{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "o3", orders[0].ID, "newest first by default")

	orders, err = svc.GetEventOrders(ctx, "e1", analytics.EventOrderOptions{Status: "completed", SortBy: "total"})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)

	orders, err = svc.GetEventOrders(ctx, "e1", analytics.EventOrderOptions{SortBy: "total", SortDesc: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o3", orders[0].ID)

	orders, err = svc.GetEventOrders(ctx, "other", analytics.EventOrderOptions{})
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = svc.GetEventOrders(ctx, "e1", analytics.EventOrderOptions{Status: "shipped"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
