package tickets

import (
	"bytes"
	"testing"

	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPDF_WithoutQRCode(t *testing.T) {
	doc, err := RenderPDF(
		models.Ticket{ID: "t1", OrderID: "o1", TicketTypeName: "Général", AttendeeName: "Zoë Brontë", Barcode: "ABC123", PricePaid: 10000},
		models.Event{Name: "Harbor Jazz Night", VenueName: "Pier 9", VenueCity: "Portland", Currency: "USD", StartDate: testutil.Epoch},
	)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00 USD", formatAmount(10000, "USD"))
	assert.Equal(t, "0.05 EUR", formatAmount(5, "EUR"))
	assert.Equal(t, "-111.77 USD", formatAmount(-11177, "USD"))
}
