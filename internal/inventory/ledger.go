// Package inventory is the single source of truth for ticket type counters.
// Every mutation of a ticket type runs under that type's lock and inside a
// store transaction whose UPDATE is itself conditional on the counters, so
// holds can never push sold+held past total.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"

	"github.com/google/uuid"
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
	// AddHeld increments quantity_held only if enough units are available.
	AddHeld(ctx context.Context, ticketTypeID string, quantity int) (bool, error)
	ReleaseHeld(ctx context.Context, ticketTypeID string, quantity int) error
	ConvertHeldToSold(ctx context.Context, ticketTypeID string, quantity int) error
	ReturnSold(ctx context.Context, ticketTypeID string, quantity int) (bool, error)
	InsertHold(ctx context.Context, hold *models.InventoryHold) error
	GetHold(ctx context.Context, id string) (*models.InventoryHold, error)
	DeleteHold(ctx context.Context, id string) (bool, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.InventoryHold, error)
	SumHolds(ctx context.Context, ticketTypeID string) (int, error)
}

type Ledger struct {
	store  Store
	locker Locker
	clock  clock.Clock
	logger *logger.Logger
}

func NewLedger(store Store, locker Locker, clk clock.Clock, log *logger.Logger) *Ledger {
	return &Ledger{store: store, locker: locker, clock: clk, logger: log}
}

// GetAvailable returns total - sold - held for the ticket type.
func (l *Ledger) GetAvailable(ctx context.Context, ticketTypeID string) (int, error) {
	tt, err := l.store.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, ticketTypeErr(ticketTypeID, err)
	}
	return tt.Available(), nil
}

// PlaceHold reserves quantity units for ttl. It fails with
// InsufficientInventory, naming the type and what is left, when fewer than
// quantity units are available.
func (l *Ledger) PlaceHold(ctx context.Context, ticketTypeID string, quantity int, ttl time.Duration, cartID string) (*models.InventoryHold, error) {
	if quantity <= 0 {
		return nil, apperr.ErrInvalidQuantity
	}

	unlock, err := l.locker.Lock(ctx, ticketTypeID)
	if err != nil {
		return nil, apperr.System("lock ticket type", err)
	}
	defer unlock()

	now := l.clock.Now()
	hold := &models.InventoryHold{
		ID:           uuid.NewString(),
		TicketTypeID: ticketTypeID,
		CartID:       cartID,
		Quantity:     quantity,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}

	err = l.store.WithTx(ctx, func(ctx context.Context) error {
		tt, err := l.store.GetTicketType(ctx, ticketTypeID)
		if err != nil {
			return ticketTypeErr(ticketTypeID, err)
		}
		ok, err := l.store.AddHeld(ctx, ticketTypeID, quantity)
		if err != nil {
			return apperr.System("reserve inventory", err)
		}
		if !ok {
			return apperr.InsufficientInventory(tt.Name, tt.Available())
		}
		if err := l.store.InsertHold(ctx, hold); err != nil {
			return apperr.System("insert hold", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.LogHold("PLACE", hold.ID, fmt.Sprintf("%d x %s until %s", quantity, ticketTypeID, hold.ExpiresAt.Format(time.RFC3339)))
	return hold, nil
}

// CommitHold moves one hold from held to sold.
func (l *Ledger) CommitHold(ctx context.Context, holdID string) error {
	return l.CommitHolds(ctx, []string{holdID}, nil)
}

// CommitHolds moves every hold from held to sold in one transaction: either
// all of them commit or none do. then, when not nil, runs inside the same
// transaction after the counters moved and can veto the commit.
func (l *Ledger) CommitHolds(ctx context.Context, holdIDs []string, then func(ctx context.Context) error) error {
	holds := make([]*models.InventoryHold, 0, len(holdIDs))
	keys := make([]string, 0, len(holdIDs))
	for _, id := range holdIDs {
		hold, err := l.store.GetHold(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.HoldNotFound(id)
		}
		if err != nil {
			return apperr.System("get hold", err)
		}
		holds = append(holds, hold)
		keys = append(keys, hold.TicketTypeID)
	}

	unlock, err := LockMany(ctx, l.locker, keys)
	if err != nil {
		return apperr.System("lock ticket types", err)
	}
	defer unlock()

	now := l.clock.Now()
	err = l.store.WithTx(ctx, func(ctx context.Context) error {
		for _, hold := range holds {
			if hold.Expired(now) {
				return apperr.HoldExpired(hold.ID)
			}
			deleted, err := l.store.DeleteHold(ctx, hold.ID)
			if err != nil {
				return apperr.System("delete hold", err)
			}
			if !deleted {
				return apperr.HoldNotFound(hold.ID)
			}
			if err := l.store.ConvertHeldToSold(ctx, hold.TicketTypeID, hold.Quantity); err != nil {
				return apperr.System("commit inventory", err)
			}
		}
		if then != nil {
			return then(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, hold := range holds {
		l.logger.LogHold("COMMIT", hold.ID, fmt.Sprintf("%d x %s sold", hold.Quantity, hold.TicketTypeID))
	}
	return nil
}

// ReleaseHold returns a hold's units to sale. Releasing a hold that no
// longer exists is a no-op reported as released=false.
func (l *Ledger) ReleaseHold(ctx context.Context, holdID string) (bool, error) {
	hold, err := l.store.GetHold(ctx, holdID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.System("get hold", err)
	}

	unlock, err := l.locker.Lock(ctx, hold.TicketTypeID)
	if err != nil {
		return false, apperr.System("lock ticket type", err)
	}
	defer unlock()

	released := false
	err = l.store.WithTx(ctx, func(ctx context.Context) error {
		deleted, err := l.store.DeleteHold(ctx, hold.ID)
		if err != nil {
			return apperr.System("delete hold", err)
		}
		if !deleted {
			return nil
		}
		if err := l.store.ReleaseHeld(ctx, hold.TicketTypeID, hold.Quantity); err != nil {
			return apperr.System("release inventory", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if released {
		l.logger.LogHold("RELEASE", hold.ID, fmt.Sprintf("%d x %s returned", hold.Quantity, hold.TicketTypeID))
	}
	return released, nil
}

// ReleaseAll releases every hold and returns the first error, if any.
func (l *Ledger) ReleaseAll(ctx context.Context, holdIDs []string) error {
	var firstErr error
	for _, id := range holdIDs {
		if _, err := l.ReleaseHold(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

const expireBatchSize = 500

// ExpireHolds releases all holds whose expiry is at or before now and returns
// the ids it released.
func (l *Ledger) ExpireHolds(ctx context.Context, now time.Time) ([]string, error) {
	var released []string
	for {
		holds, err := l.store.ListExpiredHolds(ctx, now, expireBatchSize)
		if err != nil {
			return released, apperr.System("list expired holds", err)
		}

		progressed := false
		for _, hold := range holds {
			ok, err := l.ReleaseHold(ctx, hold.ID)
			if err != nil {
				return released, err
			}
			if ok {
				progressed = true
				released = append(released, hold.ID)
			}
		}
		if len(holds) < expireBatchSize || !progressed {
			break
		}
	}

	if len(released) > 0 {
		l.logger.Info("INVENTORY", fmt.Sprintf("Expired %d holds", len(released)))
	}
	return released, nil
}

// Restock returns previously sold units to sale, used by refunds.
func (l *Ledger) Restock(ctx context.Context, ticketTypeID string, quantity int) error {
	if quantity <= 0 {
		return apperr.ErrInvalidQuantity
	}

	unlock, err := l.locker.Lock(ctx, ticketTypeID)
	if err != nil {
		return apperr.System("lock ticket type", err)
	}
	defer unlock()

	return l.store.WithTx(ctx, func(ctx context.Context) error {
		ok, err := l.store.ReturnSold(ctx, ticketTypeID, quantity)
		if err != nil {
			return apperr.System("restock inventory", err)
		}
		if !ok {
			return apperr.New(apperr.CodeInvalidQuantity, apperr.KindValidation,
				fmt.Sprintf("Cannot restock %d units of %s", quantity, ticketTypeID))
		}
		l.logger.LogHold("RESTOCK", ticketTypeID, fmt.Sprintf("%d units back on sale", quantity))
		return nil
	})
}

func ticketTypeErr(id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.Error{Code: apperr.CodeTicketTypeNotFound, Kind: apperr.KindNotFound, Entity: id, Message: "Ticket type not found"}
	}
	return apperr.System("get ticket type", err)
}
