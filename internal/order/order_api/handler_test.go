package order_api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tixly-ticketing/internal/auth"
	"tixly-ticketing/internal/cart"
	cartredis "tixly-ticketing/internal/cart/redis"
	"tixly-ticketing/internal/catalog"
	catalogdb "tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/inventory"
	inventorydb "tixly-ticketing/internal/inventory/db"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/order"
	orderdb "tixly-ticketing/internal/order/db"
	"tixly-ticketing/internal/payment"
	"tixly-ticketing/internal/pricing"
	"tixly-ticketing/internal/sse"
	"tixly-ticketing/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerVerifier treats the bearer token as the user ID.
type headerVerifier struct{}

func (headerVerifier) Verify(ctx context.Context, raw string) (*auth.Identity, error) {
	return &auth.Identity{UserID: raw}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

type testServer struct {
	router  http.Handler
	clk     *clock.Manual
	hub     *sse.SalesHub
	gateway *payment.SimulatedGateway
}

func newTestServer(t *testing.T) *testServer {
	bunDB := testutil.NewSQLiteDB(t)
	testutil.InsertEvent(t, bunDB, models.Event{ID: "e1", Name: "Harbor Lights", OrganizerID: "org-1"})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "ga", EventID: "e1", Name: "General Admission", UnitPrice: 10000, QuantityTotal: 10, SortOrder: 1})
	testutil.InsertTicketType(t, bunDB, models.TicketType{ID: "vip", EventID: "e1", Name: "VIP", UnitPrice: 5000, QuantityTotal: 5, SortOrder: 2})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	log := logger.Discard()
	clk := clock.NewManual(testutil.Epoch)
	catalogSvc := catalog.NewCatalogService(&catalogdb.DB{Bun: bunDB}, clk, log)
	ledger := inventory.NewLedger(&inventorydb.DB{Bun: bunDB}, inventory.NewLocalLocker(), clk, log)
	carts := cartredis.NewStore(client, clk)
	gateway := payment.NewSimulatedGateway(log)
	hub := sse.NewSalesHub(clk)

	svc := order.NewOrderService(&orderdb.DB{Bun: bunDB}, ledger, carts, pricing.NewCalculator(pricing.DefaultRates()), gateway, clk, log)
	svc.Sales = hub

	authn := auth.NewAuthenticator(headerVerifier{}, log)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewHandler(svc, cart.NewBuilder(catalogSvc, ledger, clk, 15*time.Minute), carts, catalogSvc, gateway, log).RegisterRoutes(r, authn)
		NewSSEHandler(hub, catalogSvc, log).RegisterRoutes(r, authn)
	})
	return &testServer{router: r, clk: clk, hub: hub, gateway: gateway}
}

func (s *testServer) do(t *testing.T, method, path, user, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

const customerJSON = `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}`

func (s *testServer) checkout(t *testing.T, user string) models.Order {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/carts", user, `{"eventId":"e1","items":{"ga":2,"vip":1}}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	priced := decode[models.PricedCart](t, env.Data)

	code, env = s.do(t, http.MethodPost, "/api/checkout", user, `{"cartId":"`+priced.ID+`","customer":`+customerJSON+`}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	return decode[models.Order](t, env.Data)
}

func TestCartPricing(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"ga":2,"vip":1}}`)
	require.Equal(t, http.StatusCreated, code)
	priced := decode[models.PricedCart](t, env.Data)
	assert.Equal(t, int64(25000), priced.Subtotal)
	assert.Equal(t, int64(922), priced.ServiceFee)
	assert.Equal(t, int64(2074), priced.Tax)
	assert.Equal(t, int64(27996), priced.Total)

	code, env = s.do(t, http.MethodGet, "/api/carts/"+priced.ID, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(27996), decode[models.PricedCart](t, env.Data).Total)

	s.clk.Advance(16 * time.Minute)
	code, env = s.do(t, http.MethodGet, "/api/carts/"+priced.ID, "", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cart_expired", env.Error.Code)

	code, env = s.do(t, http.MethodGet, "/api/carts/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "cart_not_found", env.Error.Code)
}

func TestCreateCart_Rejections(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"vip":6}}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "sold_out", env.Error.Code)
	assert.Equal(t, "VIP", env.Error.Details["ticketType"])
	assert.EqualValues(t, 5, env.Error.Details["available"])

	code, env = s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"ga":-1}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_request", env.Error.Code)

	code, env = s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"ga":0}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "empty_cart", env.Error.Code)

	code, _ = s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"ga":1},"coupon":"X"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"nope","items":{"ga":1}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "event_not_on_sale", env.Error.Code)
}

func TestCheckoutPayAndRefund(t *testing.T) {
	s := newTestServer(t)
	o := s.checkout(t, "u1")
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, int64(27996), o.Total)
	assert.Len(t, o.HoldIDs, 2)

	code, _ := s.do(t, http.MethodGet, "/api/orders/"+o.ID, "u2", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodGet, "/api/orders/"+o.ID, "", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/payment", "u1", `{"paymentMethod":"pm_card_visa"}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	paid := decode[models.Order](t, env.Data)
	assert.Equal(t, models.OrderStatusCompleted, paid.Status)

	code, _ = s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/refund", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/refund", "u1", "")
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/refund", "org-1", `{"items":{"ga":1}}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	refunded := decode[models.Order](t, env.Data)
	assert.Equal(t, models.OrderStatusPartiallyRefunded, refunded.Status)
	assert.Equal(t, int64(11177), refunded.RefundAmount)
	assert.Equal(t, int64(11177), s.gateway.Refunded(paid.PaymentReference))

	code, env = s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", "u1", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", env.Error.Code)
}

func TestPaymentDeclined(t *testing.T) {
	s := newTestServer(t)
	o := s.checkout(t, "")

	code, env := s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/payment", "", `{"paymentMethod":"pm_card_declined"}`)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "payment_failed", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "declined.")

	code, env = s.do(t, http.MethodGet, "/api/orders/"+o.ID, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderStatusFailed, decode[models.Order](t, env.Data).Status)

	code, _ = s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/payment", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAsyncPaymentWebhook(t *testing.T) {
	s := newTestServer(t)
	o := s.checkout(t, "")

	code, env := s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/payment", "", `{"paymentMethod":"pm_async"}`)
	require.Equal(t, http.StatusAccepted, code, env.Error)
	processing := decode[models.Order](t, env.Data)
	assert.Equal(t, models.OrderStatusProcessing, processing.Status)

	code, _ = s.do(t, http.MethodPost, "/api/payments/webhook", "", `{"reference":"sim_forged","succeeded":true}`)
	assert.Equal(t, http.StatusBadRequest, code)

	hook := `{"reference":"` + processing.PaymentReference + `","orderId":"` + o.ID + `","succeeded":true}`
	code, env = s.do(t, http.MethodPost, "/api/payments/webhook", "", hook)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true,"applied":true}`, string(env.Data))

	code, env = s.do(t, http.MethodPost, "/api/payments/webhook", "", hook)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"received":true,"applied":true}`, string(env.Data), "redelivery is accepted")

	code, env = s.do(t, http.MethodGet, "/api/orders/"+o.ID, "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderStatusCompleted, decode[models.Order](t, env.Data).Status)
}

func TestCancelReleasesHolds(t *testing.T) {
	s := newTestServer(t)
	o := s.checkout(t, "u1")

	code, env := s.do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", "u1", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, models.OrderStatusCancelled, decode[models.Order](t, env.Data).Status)

	code, env = s.do(t, http.MethodPost, "/api/carts", "", `{"eventId":"e1","items":{"vip":5}}`)
	assert.Equal(t, http.StatusCreated, code, env.Error)
}

func TestSalesStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/events/e1/sales/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/e1/sales/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer org-1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool { return s.hub.ClientCount("e1") == 1 }, 2*time.Second, 10*time.Millisecond)
	s.hub.OrderCompleted(models.Order{ID: "o-42", EventID: "e1", Total: 27996, Status: models.OrderStatusCompleted})

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 || !strings.HasPrefix(lines[len(lines)-1], "data: ") || !strings.HasPrefix(lines[len(lines)-2], "event: sale") {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: connected", lines[0])
	assert.Contains(t, lines[len(lines)-1], `"o-42"`)
}
