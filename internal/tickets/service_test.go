package tickets_test

import (
	"context"
	"testing"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"
	"tixly-ticketing/internal/tickets"
	ticketdb "tixly-ticketing/internal/tickets/db"
	qr "tixly-ticketing/internal/tickets/qr_genrator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*tickets.TicketService, *clock.Manual) {
	gen, err := qr.NewQRGenerator("test-secret")
	require.NoError(t, err)
	clk := clock.NewManual(testutil.Epoch)
	return tickets.NewTicketService(&ticketdb.DB{Bun: testutil.NewSQLiteDB(t)}, gen, clk, logger.Discard()), clk
}

func completedOrder() *models.Order {
	return &models.Order{
		ID:       "o1",
		EventID:  "evt",
		UserID:   "u1",
		Customer: models.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		Cart: models.PricedCart{
			Cart: models.Cart{Items: []models.CartItem{
				{TicketTypeID: "ga", Name: "General Admission", UnitPrice: 10000, Quantity: 2},
				{TicketTypeID: "vip", Name: "VIP", UnitPrice: 5000, Quantity: 1},
			}},
			ItemCount: 3,
		},
		Status: models.OrderStatusCompleted,
	}
}

func TestIssueTickets_OnePerUnit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	issued, err := svc.IssueTickets(ctx, completedOrder())
	require.NoError(t, err)
	require.Len(t, issued, 3)

	barcodes := map[string]bool{}
	for _, tk := range issued {
		assert.Equal(t, "o1", tk.OrderID)
		assert.Equal(t, "Ada Lovelace", tk.AttendeeName)
		assert.Len(t, tk.Barcode, 16)
		assert.NotEmpty(t, tk.QRCode)
		barcodes[tk.Barcode] = true
	}
	assert.Len(t, barcodes, 3)
	assert.Equal(t, "VIP", issued[2].TicketTypeName)
	assert.Equal(t, int64(5000), issued[2].PricePaid)

	stored, err := svc.GetTicketsByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	mine, err := svc.GetTicketsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestCheckIn(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	issued, err := svc.IssueTickets(ctx, completedOrder())
	require.NoError(t, err)
	token, err := svc.Token(issued[0])
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	admitted, err := svc.CheckIn(ctx, token, "evt")
	require.NoError(t, err)
	assert.True(t, admitted.CheckedIn)
	assert.Equal(t, clk.Now(), admitted.CheckedInAt)

	_, err = svc.CheckIn(ctx, token, "evt")
	assert.ErrorIs(t, err, apperr.ErrAlreadyCheckedIn)

	count, err := svc.CountCheckedIn(ctx, "evt")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCheckIn_Rejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	issued, err := svc.IssueTickets(ctx, completedOrder())
	require.NoError(t, err)
	token, err := svc.Token(issued[1])
	require.NoError(t, err)

	_, err = svc.CheckIn(ctx, token, "another-event")
	assert.ErrorIs(t, err, apperr.ErrInvalidTicket)

	_, err = svc.CheckIn(ctx, "garbage", "evt")
	assert.ErrorIs(t, err, apperr.ErrInvalidTicket)

	forged := issued[1]
	forged.ID = "does-not-exist"
	token, err = svc.Token(forged)
	require.NoError(t, err)
	_, err = svc.CheckIn(ctx, token, "evt")
	assert.ErrorIs(t, err, apperr.ErrTicketNotFound)
}
