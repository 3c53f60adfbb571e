package payment

import (
	"context"
	"testing"
	"time"

	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

func TestSimulatedGateway_Outcomes(t *testing.T) {
	g := NewSimulatedGateway(logger.Discard())
	ctx := context.Background()

	ok, err := g.Charge(ctx, ChargeRequest{OrderID: "o1", Amount: 1000, PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, ok.Status)
	assert.Contains(t, ok.Reference, "sim_")

	declined, err := g.Charge(ctx, ChargeRequest{OrderID: "o2", Amount: 1000, PaymentMethod: SimulatedDecline})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusDeclined, declined.Status)
	assert.NotEmpty(t, declined.DeclineReason)

	async, err := g.Charge(ctx, ChargeRequest{OrderID: "o3", Amount: 1000, PaymentMethod: SimulatedAsync})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, async.Status)

	_, err = g.Charge(ctx, ChargeRequest{OrderID: "o4", Amount: 1000, PaymentMethod: SimulatedError})
	assert.Error(t, err)
}

func TestSimulatedGateway_IdempotencyKey(t *testing.T) {
	g := NewSimulatedGateway(logger.Discard())
	ctx := context.Background()

	req := ChargeRequest{OrderID: "o1", Amount: 1000, PaymentMethod: "pm_card_visa", IdempotencyKey: "k1"}
	first, err := g.Charge(ctx, req)
	require.NoError(t, err)
	second, err := g.Charge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)
}

func TestSimulatedGateway_Refund(t *testing.T) {
	g := NewSimulatedGateway(logger.Discard())
	ctx := context.Background()

	res, err := g.Charge(ctx, ChargeRequest{OrderID: "o1", Amount: 1000, PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)

	require.NoError(t, g.Refund(ctx, res.Reference, 400))
	require.NoError(t, g.Refund(ctx, res.Reference, 600))
	assert.Equal(t, int64(1000), g.Refunded(res.Reference))

	assert.Error(t, g.Refund(ctx, res.Reference, 1))
	assert.Error(t, g.Refund(ctx, "sim_unknown", 1))
}

func signedPayload(t *testing.T, body, secret string) (string, []byte) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(body),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header, signed.Payload
}

func TestParseStripeWebhook(t *testing.T) {
	const secret = "whsec_test"

	succeeded := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"order_id":"ord-1"}}}}`
	header, payload := signedPayload(t, succeeded, secret)
	ev, err := ParseStripeWebhook(payload, header, secret)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "pi_123", ev.Reference)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.True(t, ev.Succeeded)

	failed := `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed",
		"data":{"object":{"id":"pi_456","object":"payment_intent","last_payment_error":{"message":"insufficient funds"}}}}`
	header, payload = signedPayload(t, failed, secret)
	ev, err = ParseStripeWebhook(payload, header, secret)
	require.NoError(t, err)
	assert.False(t, ev.Succeeded)
	assert.Equal(t, "insufficient funds", ev.Reason)

	other := `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`
	header, payload = signedPayload(t, other, secret)
	ev, err = ParseStripeWebhook(payload, header, secret)
	require.NoError(t, err)
	assert.Nil(t, ev)

	_, err = ParseStripeWebhook(payload, header, "whsec_other")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestSimulatedWebhook(t *testing.T) {
	g := NewSimulatedGateway(logger.Discard())
	res, err := g.Charge(context.Background(), ChargeRequest{OrderID: "o1", Amount: 500, PaymentMethod: SimulatedAsync})
	require.NoError(t, err)

	ev, err := g.ParseWebhook([]byte(`{"reference":"`+res.Reference+`","orderId":"o1","succeeded":false}`), "")
	require.NoError(t, err)
	assert.Equal(t, "o1", ev.OrderID)
	assert.False(t, ev.Succeeded)
	assert.Equal(t, "payment failed", ev.Reason)

	_, err = g.ParseWebhook([]byte(`{"reference":"sim_unknown","succeeded":true}`), "")
	assert.ErrorIs(t, err, ErrWebhookPayload)
	_, err = g.ParseWebhook([]byte(`not json`), "")
	assert.ErrorIs(t, err, ErrWebhookPayload)
}
