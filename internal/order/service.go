package order

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
	"tixly-ticketing/internal/payment"
)

const (
	DefaultProcessingTimeout = 15 * time.Minute
	reconcileBatchSize       = 200
)

// Event types published for order changes.
const (
	EventOrderCreated   = "order.created"
	EventOrderCompleted = "order.completed"
	EventOrderFailed    = "order.failed"
	EventOrderCancelled = "order.cancelled"
	EventOrderRefunded  = "order.refunded"
)

type DBLayer interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
	// SaveOrder writes the mutable fields of order only while its stored
	// status is still from, and reports whether it did.
	SaveOrder(ctx context.Context, order *models.Order, from models.OrderStatus) (bool, error)
	// SwapRefundAmount claims or releases a refund on a completed order.
	SwapRefundAmount(ctx context.Context, id string, expect, amount int64) (bool, error)
	ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	ListProcessingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type Inventory interface {
	PlaceHold(ctx context.Context, ticketTypeID string, quantity int, ttl time.Duration, cartID string) (*models.InventoryHold, error)
	CommitHolds(ctx context.Context, holdIDs []string, then func(ctx context.Context) error) error
	ReleaseAll(ctx context.Context, holdIDs []string) error
	ExpireHolds(ctx context.Context, now time.Time) ([]string, error)
	Restock(ctx context.Context, ticketTypeID string, quantity int) error
}

// CartStore hands a cart to exactly one checkout. Save returns a cart whose
// checkout did not go through.
type CartStore interface {
	Take(ctx context.Context, id string) (*models.Cart, error)
	Save(ctx context.Context, c *models.Cart) error
}

type Pricer interface {
	Price(cart models.Cart) models.PricedCart
}

type KafkaPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, order models.Order) error
	PublishInventoryReleased(ctx context.Context, msg models.InventoryReleasedMessage) error
}

// TicketIssuer creates the tickets of a completed order. It runs inside the
// completing transaction.
type TicketIssuer interface {
	IssueTickets(ctx context.Context, order *models.Order) ([]models.Ticket, error)
}

type SalesNotifier interface {
	OrderCompleted(order models.Order)
}

type PaymentRecorder interface {
	SavePayment(ctx context.Context, payment *models.Payment) error
}

type OrderService struct {
	DB        DBLayer
	Inventory Inventory
	Carts     CartStore
	Pricer    Pricer
	Gateway   payment.Gateway
	Clock     clock.Clock
	Logger    *logger.Logger

	// Optional collaborators; nil disables them.
	Kafka    KafkaPublisher
	Tickets  TicketIssuer
	Sales    SalesNotifier
	Payments PaymentRecorder

	ProcessingTimeout time.Duration
	RestockOnRefund   bool
}

func NewOrderService(db DBLayer, inventory Inventory, carts CartStore, pricer Pricer, gateway payment.Gateway, clk clock.Clock, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:                db,
		Inventory:         inventory,
		Carts:             carts,
		Pricer:            pricer,
		Gateway:           gateway,
		Clock:             clk,
		Logger:            log,
		ProcessingTimeout: DefaultProcessingTimeout,
	}
}

// ---------------- TRANSITIONS ----------------

var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusCompleted, models.OrderStatusFailed, models.OrderStatusCancelled},
	models.OrderStatusCompleted:  {models.OrderStatusRefunded, models.OrderStatusPartiallyRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves order to status to. The write is conditional on the
// status the caller observed, so two racing transitions cannot both win.
func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus) error {
	from := order.Status
	if !CanTransition(from, to) {
		return apperr.InvalidTransition(order.ID, string(from), string(to))
	}

	next := *order
	next.Status = to
	next.UpdatedAt = s.Clock.Now()
	if to == models.OrderStatusCompleted {
		next.CompletedAt = next.UpdatedAt
	}

	ok, err := s.DB.SaveOrder(ctx, &next, from)
	if err != nil {
		return apperr.System("save order", err)
	}
	if !ok {
		current, err := s.DB.GetOrderByID(ctx, order.ID)
		if err != nil {
			return apperr.System("reload order", err)
		}
		return apperr.InvalidTransition(order.ID, string(current.Status), string(to))
	}

	*order = next
	s.Logger.LogOrder(string(to), order.ID, fmt.Sprintf("%s -> %s", from, to))
	return nil
}

// ---------------- ORDERS ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.OrderNotFound(id)
	}
	if err != nil {
		return nil, apperr.System("get order", err)
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order models.Order) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishOrderEvent(ctx, eventType, order); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", eventType, order.ID, err))
	}
}

func (s *OrderService) recordPayment(ctx context.Context, order *models.Order, status models.PaymentStatus, reference string, amount int64, reason string) {
	if s.Payments == nil {
		return
	}
	p := &models.Payment{
		ID:            newID(),
		OrderID:       order.ID,
		Provider:      s.Gateway.Name(),
		Reference:     reference,
		Status:        status,
		Amount:        amount,
		Currency:      order.Currency,
		FailureReason: reason,
		CreatedAt:     s.Clock.Now(),
	}
	if err := s.Payments.SavePayment(ctx, p); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to record payment for order %s: %v", order.ID, err))
	}
}

// release returns every hold of order to sale, logging failures. Holds that
// are already gone are skipped by the ledger.
func (s *OrderService) release(ctx context.Context, order *models.Order) {
	if err := s.Inventory.ReleaseAll(ctx, order.HoldIDs); err != nil {
		s.Logger.Error("INVENTORY", fmt.Sprintf("Failed to release holds of order %s: %v", order.ID, err))
	}
}
