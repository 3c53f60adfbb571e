package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"

	"github.com/google/uuid"
)

// Payment methods the simulated gateway treats specially. Anything else is
// charged successfully.
const (
	SimulatedDecline = "pm_card_declined"
	SimulatedAsync   = "pm_async"
	SimulatedError   = "pm_error"
)

// SimulatedGateway stands in for Stripe in development and tests.
type SimulatedGateway struct {
	log *logger.Logger

	mu       sync.Mutex
	charges  map[string]int64
	refunded map[string]int64
	byKey    map[string]*ChargeResult
}

func NewSimulatedGateway(log *logger.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		log:      log,
		charges:  make(map[string]int64),
		refunded: make(map[string]int64),
		byKey:    make(map[string]*ChargeResult),
	}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.IdempotencyKey != "" {
		if prev, ok := g.byKey[req.IdempotencyKey]; ok {
			out := *prev
			return &out, nil
		}
	}

	var result *ChargeResult
	switch req.PaymentMethod {
	case SimulatedError:
		return nil, fmt.Errorf("simulated processor outage")
	case SimulatedDecline, "tok_chargeDeclined":
		result = &ChargeResult{Reference: "sim_" + uuid.NewString(), Status: models.PaymentStatusDeclined, DeclineReason: "Your card was declined."}
	case SimulatedAsync:
		result = &ChargeResult{Reference: "sim_" + uuid.NewString(), Status: models.PaymentStatusProcessing}
		g.charges[result.Reference] = req.Amount
	default:
		result = &ChargeResult{Reference: "sim_" + uuid.NewString(), Status: models.PaymentStatusSucceeded}
		g.charges[result.Reference] = req.Amount
	}

	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = result
	}
	g.log.LogPayment(string(result.Status), req.OrderID, fmt.Sprintf("Simulated charge %s for %d", result.Reference, req.Amount))
	out := *result
	return &out, nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, reference string, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	charged, ok := g.charges[reference]
	if !ok {
		return fmt.Errorf("unknown charge %s", reference)
	}
	if g.refunded[reference]+amount > charged {
		return fmt.Errorf("refund of %d exceeds remaining %d on %s", amount, charged-g.refunded[reference], reference)
	}
	g.refunded[reference] += amount
	g.log.LogPayment("REFUND", reference, fmt.Sprintf("Simulated refund of %d", amount))
	return nil
}

// Refunded returns the total refunded against reference.
func (g *SimulatedGateway) Refunded(reference string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunded[reference]
}

// ParseWebhook reads an unsigned settlement posted by hand, for finishing
// pm_async charges in development. The reference must belong to a charge
// this gateway made.
func (g *SimulatedGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	var ev struct {
		Reference string `json:"reference"`
		OrderID   string `json:"orderId"`
		Succeeded bool   `json:"succeeded"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayload, err)
	}

	g.mu.Lock()
	_, known := g.charges[ev.Reference]
	g.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: unknown charge %q", ErrWebhookPayload, ev.Reference)
	}

	if !ev.Succeeded && ev.Reason == "" {
		ev.Reason = "payment failed"
	}
	return &WebhookEvent{Reference: ev.Reference, OrderID: ev.OrderID, Succeeded: ev.Succeeded, Reason: ev.Reason}, nil
}
