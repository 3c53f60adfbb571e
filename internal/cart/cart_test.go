package cart

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockCatalog) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]models.TicketType), args.Error(1)
}

type fakeAvailability map[string]int

func (f fakeAvailability) GetAvailable(ctx context.Context, id string) (int, error) {
	return f[id], nil
}

func newTestBuilder(event *models.Event, types []models.TicketType, avail fakeAvailability) (*Builder, *MockCatalog) {
	catalog := new(MockCatalog)
	catalog.On("GetEvent", mock.Anything, event.ID).Return(event, nil).Maybe()
	catalog.On("ListTicketTypes", mock.Anything, event.ID).Return(types, nil).Maybe()
	return NewBuilder(catalog, avail, clock.NewFixed(testutil.Epoch), 0), catalog
}

func onSaleEvent() *models.Event {
	return &models.Event{ID: "evt", Name: "Harbor Lights", Status: models.EventStatusOnSale, Currency: "USD"}
}

func standardTypes() []models.TicketType {
	return []models.TicketType{
		{ID: "vip", EventID: "evt", Name: "VIP", UnitPrice: 25000, QuantityTotal: 20, MinPerOrder: 1, MaxPerOrder: 4, SortOrder: 2},
		{ID: "ga", EventID: "evt", Name: "General Admission", UnitPrice: 10000, QuantityTotal: 100, MinPerOrder: 1, MaxPerOrder: 6, SortOrder: 1},
		{ID: "pair", EventID: "evt", Name: "Pair", UnitPrice: 18000, QuantityTotal: 50, MinPerOrder: 2, MaxPerOrder: 8, SortOrder: 3},
	}
}

func TestBuildCart_OrderedBySortOrder(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"ga": 100, "vip": 20})

	c, err := b.BuildCart(context.Background(), "evt", map[string]int{"vip": 1, "ga": 2})
	require.NoError(t, err)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "ga", c.Items[0].TicketTypeID)
	assert.Equal(t, int64(10000), c.Items[0].UnitPrice)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "vip", c.Items[1].TicketTypeID)
	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, "USD", c.Currency)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, testutil.Epoch.Add(DefaultTTL), c.ExpiresAt)
}

func TestBuildCart_AllZeroIsEmpty(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"ga": 100, "vip": 20})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 0, "vip": 0})
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	_, err = b.BuildCart(context.Background(), "evt", nil)
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestBuildCart_AboveMaximumNamesType(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"ga": 100})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 7})
	require.ErrorIs(t, err, apperr.ErrAboveMaximum)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "General Admission", appErr.Entity)
	assert.Contains(t, appErr.Message, "General Admission")
}

func TestBuildCart_BelowMinimum(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"pair": 50})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"pair": 1})
	assert.ErrorIs(t, err, apperr.ErrBelowMinimum)

	_, err = b.BuildCart(context.Background(), "evt", map[string]int{"pair": -3})
	assert.ErrorIs(t, err, apperr.ErrBelowMinimum)
}

func TestBuildCart_SoldOutCarriesAvailable(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"ga": 3, "vip": 0})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 4})
	require.ErrorIs(t, err, apperr.ErrSoldOut)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 3, appErr.Available)
	assert.Equal(t, "Only 3 left for General Admission", appErr.Message)

	_, err = b.BuildCart(context.Background(), "evt", map[string]int{"vip": 1})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "VIP is sold out", appErr.Message)
}

func TestBuildCart_EventChecks(t *testing.T) {
	draft := onSaleEvent()
	draft.Status = models.EventStatusDraft
	b, _ := newTestBuilder(draft, standardTypes(), fakeAvailability{"ga": 100})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 1})
	assert.ErrorIs(t, err, apperr.ErrEventNotOnSale)

	catalog := new(MockCatalog)
	catalog.On("GetEvent", mock.Anything, "gone").Return(nil, sql.ErrNoRows)
	b = NewBuilder(catalog, fakeAvailability{}, clock.NewFixed(testutil.Epoch), time.Minute)
	_, err = b.BuildCart(context.Background(), "gone", map[string]int{"ga": 1})
	assert.ErrorIs(t, err, apperr.ErrEventNotOnSale)
	catalog.AssertExpectations(t)
}

func TestBuildCart_UnknownHiddenAndRetired(t *testing.T) {
	types := standardTypes()
	types[0].Hidden = true
	types[2].Retired = true
	b, _ := newTestBuilder(onSaleEvent(), types, fakeAvailability{"ga": 100, "vip": 20, "pair": 50})

	for _, id := range []string{"other-event-type", "vip", "pair"} {
		_, err := b.BuildCart(context.Background(), "evt", map[string]int{id: 2})
		assert.ErrorIs(t, err, apperr.ErrUnknownTicketType, id)
	}
}

func TestBuildCart_SaleWindow(t *testing.T) {
	types := standardTypes()
	types[1].SaleStart = testutil.Epoch.Add(time.Hour)
	b, _ := newTestBuilder(onSaleEvent(), types, fakeAvailability{"ga": 100})

	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 1})
	assert.ErrorIs(t, err, apperr.ErrTicketTypeNotOnSale)
}

func TestBuildCart_ValidationBeforeAvailability(t *testing.T) {
	b, _ := newTestBuilder(onSaleEvent(), standardTypes(), fakeAvailability{"ga": 0, "vip": 20})

	// ga is sold out but vip breaks the per-order limit, which is checked first.
	_, err := b.BuildCart(context.Background(), "evt", map[string]int{"ga": 1, "vip": 5})
	assert.ErrorIs(t, err, apperr.ErrAboveMaximum)
}
