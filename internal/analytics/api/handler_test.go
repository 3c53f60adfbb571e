package analytics_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tixly-ticketing/internal/analytics"
	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/catalog"
	catalogdb "tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/testutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerVerifier struct{}

func (headerVerifier) Verify(ctx context.Context, raw string) (*auth.Identity, error) {
	return &auth.Identity{UserID: raw}, nil
}

func newRouter(t *testing.T) http.Handler {
	bunDB := testutil.NewSQLiteDB(t)
	testutil.InsertEvent(t, bunDB, models.Event{ID: "e1", OrganizerID: "org-1"})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "e1", UnitPrice: 1000, QuantityTotal: 20, QuantitySold: 5})

	cat := catalog.NewCatalogService(&catalogdb.DB{Bun: bunDB}, clock.NewFixed(testutil.Epoch), logger.Discard())
	h := NewHandler(analytics.NewService(analytics.NewDB(bunDB)), cat, logger.Discard())
	r := chi.NewRouter()
	h.RegisterRoutes(r, auth.NewAuthenticator(headerVerifier{}, logger.Discard()))
	return r
}

func get(h http.Handler, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetEventAnalytics_OrganizerOnly(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/events/e1/analytics", "").Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/events/e1/analytics", "someone").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/events/missing/analytics", "org-1").Code)

	rec := get(r, "/events/e1/analytics", "org-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data analytics.EventAnalytics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Data.TicketsSold)
	assert.Equal(t, 25, body.Data.PercentageSold)
}

func TestGetEventOrders_RejectsBadPaging(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, get(r, "/events/e1/orders?limit=0", "org-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/events/e1/orders?status=bogus", "org-1").Code)

	rec := get(r, "/events/e1/orders?sort_by=total&sort_desc=true", "org-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}
