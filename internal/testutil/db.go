package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"tixly-ticketing/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Epoch is a second-aligned UTC instant tests build their clocks from.
var Epoch = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

// NewSQLiteDB returns an in-memory database with every table created. The
// pool is pinned to one connection because each sqlite :memory: connection
// is its own database.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)
	sqldb.SetConnMaxLifetime(0)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.InventoryHold)(nil),
		(*models.Order)(nil),
		(*models.Payment)(nil),
		(*models.Ticket)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func InsertEvent(t *testing.T, db *bun.DB, event models.Event) models.Event {
	t.Helper()
	if event.Slug == "" {
		event.Slug = event.ID
	}
	if event.Currency == "" {
		event.Currency = "USD"
	}
	if event.Category == "" {
		event.Category = "concert"
	}
	if event.Status == "" {
		event.Status = models.EventStatusOnSale
	}
	if event.OrganizerID == "" {
		event.OrganizerID = "organizer-1"
	}
	if event.VenueName == "" {
		event.VenueName = "Main Hall"
	}
	if event.StartDate.IsZero() {
		event.StartDate = Epoch.Add(30 * 24 * time.Hour)
	}
	event.CreatedAt, event.UpdatedAt = Epoch, Epoch
	if _, err := db.NewInsert().Model(&event).Exec(context.Background()); err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return event
}

func InsertTicketType(t *testing.T, db *bun.DB, tt models.TicketType) models.TicketType {
	t.Helper()
	if tt.Currency == "" {
		tt.Currency = "USD"
	}
	if tt.MinPerOrder == 0 {
		tt.MinPerOrder = 1
	}
	if tt.MaxPerOrder == 0 {
		tt.MaxPerOrder = 10
	}
	if tt.Name == "" {
		tt.Name = tt.ID
	}
	tt.CreatedAt, tt.UpdatedAt = Epoch, Epoch
	if _, err := db.NewInsert().Model(&tt).Exec(context.Background()); err != nil {
		t.Fatalf("insert ticket type: %v", err)
	}
	return tt
}

func GetTicketType(t *testing.T, db *bun.DB, id string) models.TicketType {
	t.Helper()
	var tt models.TicketType
	if err := db.NewSelect().Model(&tt).Where("id = ?", id).Scan(context.Background()); err != nil {
		t.Fatalf("get ticket type %s: %v", id, err)
	}
	return tt
}
