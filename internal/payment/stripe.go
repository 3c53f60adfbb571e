package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrWebhookSignature       = errors.New("webhook signature verification failed")
	ErrWebhookPayload         = errors.New("invalid webhook payload")
)

// StripeGateway charges through confirmed PaymentIntents.
type StripeGateway struct {
	client        *client.API
	webhookSecret string
	log           *logger.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, log *logger.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(secretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeGateway{client: sc, webhookSecret: webhookSecret, log: log}, nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("invalid payment amount: %d", req.Amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Description:   stripe.String("Order " + req.OrderNumber),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("order_number", req.OrderNumber)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	g.log.LogPayment("CHARGE", req.OrderID, fmt.Sprintf("Creating payment intent for %d %s", req.Amount, req.Currency))
	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			g.log.LogPayment("DECLINED", req.OrderID, stripeErr.Msg)
			ref := ""
			if stripeErr.PaymentIntent != nil {
				ref = stripeErr.PaymentIntent.ID
			}
			return &ChargeResult{Reference: ref, Status: models.PaymentStatusDeclined, DeclineReason: stripeErr.Msg}, nil
		}
		g.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	result := &ChargeResult{Reference: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = models.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresAction:
		result.Status = models.PaymentStatusProcessing
	default:
		result.Status = models.PaymentStatusDeclined
		result.DeclineReason = fmt.Sprintf("payment intent status %s", pi.Status)
		if pi.LastPaymentError != nil {
			result.DeclineReason = pi.LastPaymentError.Msg
		}
	}
	g.log.LogPayment(strings.ToUpper(string(result.Status)), req.OrderID, fmt.Sprintf("Payment intent %s", pi.ID))
	return result, nil
}

func (g *StripeGateway) Refund(ctx context.Context, reference string, amount int64) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(reference),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx

	r, err := g.client.Refunds.New(params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to refund %s: %v", reference, err))
		return fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}
	g.log.LogPayment("REFUND", reference, fmt.Sprintf("Refund %s for %d", r.ID, amount))
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the
// settlement of a payment intent. Events other than succeeded and
// payment_failed return (nil, nil).
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return ParseStripeWebhook(payload, signature, g.webhookSecret)
}

func ParseStripeWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrWebhookSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
		succeeded = false
	default:
		return nil, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}

	out := &WebhookEvent{
		Reference: pi.ID,
		OrderID:   pi.Metadata["order_id"],
		Succeeded: succeeded,
	}
	if !succeeded {
		out.Reason = "payment failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			out.Reason = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}
