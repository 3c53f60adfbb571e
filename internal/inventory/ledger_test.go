package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/inventory"
	inventorydb "tixly-ticketing/internal/inventory/db"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupLedger(t *testing.T) (*inventory.Ledger, *inventorydb.DB, *bun.DB, *clock.Manual) {
	bunDB := testutil.NewSQLiteDB(t)
	store := &inventorydb.DB{Bun: bunDB}
	clk := clock.NewManual(testutil.Epoch)
	ledger := inventory.NewLedger(store, inventory.NewLocalLocker(), clk, logger.Discard())
	return ledger, store, bunDB, clk
}

func TestPlaceHold_ScenarioOneLeft(t *testing.T) {
	ledger, _, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10, QuantitySold: 8, QuantityHeld: 1})

	available, err := ledger.GetAvailable(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 1, available)

	_, err = ledger.PlaceHold(ctx, "ga", 2, 10*time.Minute, "cart-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ga", appErr.Entity)
	assert.Equal(t, 1, appErr.Available)

	hold, err := ledger.PlaceHold(ctx, "ga", 1, 10*time.Minute, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 1, hold.Quantity)
	assert.Equal(t, testutil.Epoch.Add(10*time.Minute), hold.ExpiresAt)

	tt := testutil.GetTicketType(t, bunDB, "ga")
	assert.Equal(t, 2, tt.QuantityHeld)
	available, err = ledger.GetAvailable(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

func TestPlaceHold_RejectsBadInput(t *testing.T) {
	ledger, _, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	_, err := ledger.PlaceHold(ctx, "ga", 0, time.Minute, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = ledger.PlaceHold(ctx, "missing", 1, time.Minute, "")
	assert.ErrorIs(t, err, apperr.ErrTicketTypeNotFound)
}

func TestPlaceHold_ConcurrentNeverOversells(t *testing.T) {
	ledger, store, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 25, QuantitySold: 5})

	const workers = 60
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if _, err := ledger.PlaceHold(ctx, "ga", qty, time.Minute, ""); err == nil {
				mu.Lock()
				granted += qty
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)
			}
		}(1 + i%2)
	}
	wg.Wait()

	tt := testutil.GetTicketType(t, bunDB, "ga")
	assert.LessOrEqual(t, tt.QuantitySold+tt.QuantityHeld, tt.QuantityTotal)
	assert.Equal(t, granted, tt.QuantityHeld)
	// 20 units are available and every request is for 1 or 2, so the pool
	// drains to zero or one unit.
	assert.GreaterOrEqual(t, granted, 19)

	sum, err := store.SumHolds(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, tt.QuantityHeld, sum)
}

func TestCommitHold_MovesHeldToSold(t *testing.T) {
	ledger, store, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	hold, err := ledger.PlaceHold(ctx, "ga", 3, time.Minute, "cart")
	require.NoError(t, err)

	require.NoError(t, ledger.CommitHold(ctx, hold.ID))

	tt := testutil.GetTicketType(t, bunDB, "ga")
	assert.Equal(t, 3, tt.QuantitySold)
	assert.Equal(t, 0, tt.QuantityHeld)

	_, err = store.GetHold(ctx, hold.ID)
	assert.Error(t, err)

	err = ledger.CommitHold(ctx, hold.ID)
	assert.ErrorIs(t, err, apperr.ErrHoldNotFound)
}

func TestCommitHold_Expired(t *testing.T) {
	ledger, _, bunDB, clk := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	hold, err := ledger.PlaceHold(ctx, "ga", 2, time.Minute, "cart")
	require.NoError(t, err)

	clk.Advance(time.Minute)
	err = ledger.CommitHold(ctx, hold.ID)
	assert.ErrorIs(t, err, apperr.ErrHoldExpired)

	tt := testutil.GetTicketType(t, bunDB, "ga")
	assert.Equal(t, 0, tt.QuantitySold)
	assert.Equal(t, 2, tt.QuantityHeld)
}

func TestCommitHolds_AllOrNothing(t *testing.T) {
	ledger, store, bunDB, clk := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "vip", EventID: "evt", QuantityTotal: 4})

	long, err := ledger.PlaceHold(ctx, "ga", 2, time.Hour, "cart")
	require.NoError(t, err)
	short, err := ledger.PlaceHold(ctx, "vip", 1, time.Minute, "cart")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	err = ledger.CommitHolds(ctx, []string{long.ID, short.ID}, nil)
	assert.ErrorIs(t, err, apperr.ErrHoldExpired)

	ga := testutil.GetTicketType(t, bunDB, "ga")
	vip := testutil.GetTicketType(t, bunDB, "vip")
	assert.Equal(t, 0, ga.QuantitySold)
	assert.Equal(t, 2, ga.QuantityHeld)
	assert.Equal(t, 0, vip.QuantitySold)
	assert.Equal(t, 1, vip.QuantityHeld)

	_, err = store.GetHold(ctx, long.ID)
	assert.NoError(t, err, "first hold must survive the rolled back commit")
}

func TestCommitHolds_CallbackVetoRollsBack(t *testing.T) {
	ledger, _, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	hold, err := ledger.PlaceHold(ctx, "ga", 2, time.Hour, "cart")
	require.NoError(t, err)

	veto := errors.New("order moved on")
	err = ledger.CommitHolds(ctx, []string{hold.ID}, func(ctx context.Context) error { return veto })
	assert.ErrorIs(t, err, veto)

	tt := testutil.GetTicketType(t, bunDB, "ga")
	assert.Equal(t, 0, tt.QuantitySold)
	assert.Equal(t, 2, tt.QuantityHeld)
}

func TestReleaseHold_Idempotent(t *testing.T) {
	ledger, _, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	hold, err := ledger.PlaceHold(ctx, "ga", 4, time.Minute, "cart")
	require.NoError(t, err)

	released, err := ledger.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = ledger.ReleaseHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.False(t, released)

	available, err := ledger.GetAvailable(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 10, available)
}

func TestExpireHolds_ReleasesOnlyExpired(t *testing.T) {
	ledger, store, bunDB, clk := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10})

	expiring, err := ledger.PlaceHold(ctx, "ga", 3, time.Minute, "cart-a")
	require.NoError(t, err)
	_, err = ledger.PlaceHold(ctx, "ga", 2, time.Hour, "cart-b")
	require.NoError(t, err)

	before, err := ledger.GetAvailable(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 5, before)

	released, err := ledger.ExpireHolds(ctx, clk.Now())
	require.NoError(t, err)
	assert.Empty(t, released)

	clk.Advance(time.Minute)
	released, err = ledger.ExpireHolds(ctx, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{expiring.ID}, released)

	after, err := ledger.GetAvailable(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, before+expiring.Quantity, after)

	sum, err := store.SumHolds(ctx, "ga")
	require.NoError(t, err)
	assert.Equal(t, 2, sum)
	assert.Equal(t, 2, testutil.GetTicketType(t, bunDB, "ga").QuantityHeld)
}

func TestRestock(t *testing.T) {
	ledger, _, bunDB, _ := setupLedger(t)
	ctx := context.Background()
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "evt", QuantityTotal: 10, QuantitySold: 3})

	require.NoError(t, ledger.Restock(ctx, "ga", 2))
	assert.Equal(t, 1, testutil.GetTicketType(t, bunDB, "ga").QuantitySold)

	err := ledger.Restock(ctx, "ga", 5)
	assert.ErrorIs(t, err, apperr.ErrInvalidQuantity)
}
