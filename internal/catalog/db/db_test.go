package db_test

import (
	"context"
	"testing"

	"tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() *models.Event {
	return &models.Event{
		ID:          "evt-1",
		Slug:        "evt-1",
		Name:        "Harbor Lights",
		Category:    "concert",
		Status:      models.EventStatusDraft,
		StartDate:   testutil.Epoch.AddDate(0, 1, 0),
		VenueName:   "Pier 9",
		Currency:    "USD",
		OrganizerID: "organizer-1",
		CreatedAt:   testutil.Epoch,
		UpdatedAt:   testutil.Epoch,
	}
}

// The first row has every flag at its zero value; later rows must still
// keep their own values.
func sampleTypes() []models.TicketType {
	base := models.TicketType{EventID: "evt-1", Currency: "USD", UnitPrice: 10000, QuantityTotal: 100, MinPerOrder: 1, MaxPerOrder: 10, CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch}
	ga, crew, vip := base, base, base
	ga.ID, ga.Name = "tt-ga", "General Admission"
	crew.ID, crew.Name, crew.Hidden, crew.SortOrder, crew.MinPerOrder = "tt-crew", "Crew", true, 1, 2
	vip.ID, vip.Name, vip.Retired, vip.SortOrder = "tt-vip", "VIP", true, 2
	return []models.TicketType{ga, crew, vip}
}

func TestCreateEvent_KeepsPerRowFields(t *testing.T) {
	store := &db.DB{Bun: testutil.NewSQLiteDB(t)}
	ctx := context.Background()

	require.NoError(t, store.CreateEvent(ctx, sampleEvent(), sampleTypes()))

	types, err := store.ListTicketTypes(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, types, 3)

	assert.Equal(t, "tt-ga", types[0].ID)
	assert.False(t, types[0].Hidden)

	assert.Equal(t, "tt-crew", types[1].ID)
	assert.True(t, types[1].Hidden)
	assert.Equal(t, 1, types[1].SortOrder)
	assert.Equal(t, 2, types[1].MinPerOrder)

	assert.Equal(t, "tt-vip", types[2].ID)
	assert.True(t, types[2].Retired)
	assert.Equal(t, 2, types[2].SortOrder)
}

func TestUpsertEvent_KeepsPerRowFields(t *testing.T) {
	bunDB := testutil.NewSQLiteDB(t)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.UpsertEvent(ctx, sampleEvent(), sampleTypes()))
	require.NoError(t, store.UpsertEvent(ctx, sampleEvent(), sampleTypes()))

	crew := testutil.GetTicketType(t, bunDB, "tt-crew")
	assert.True(t, crew.Hidden)
	assert.Equal(t, 1, crew.SortOrder)
	assert.Equal(t, 2, testutil.GetTicketType(t, bunDB, "tt-vip").SortOrder)
}
