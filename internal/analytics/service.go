package analytics

import (
	"context"
	"fmt"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/query"
)

// DBLayer is the read side the analytics service aggregates over.
type DBLayer interface {
	GetStatusTotals(ctx context.Context, eventID string) ([]StatusTotals, error)
	GetTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	GetRevenueByTicketType(ctx context.Context, eventID string) ([]TypeRevenue, error)
	GetDailySalesByEventID(ctx context.Context, eventID string) ([]DailySalesData, error)
	GetEventOrders(ctx context.Context, eventID string, options EventOrderOptions) ([]models.Order, error)
}

// Service handles analytics operations
type Service struct {
	DB DBLayer
}

// NewService creates a new analytics service
func NewService(db DBLayer) *Service {
	return &Service{DB: db}
}

// EventAnalytics represents aggregated sales data for an event
type EventAnalytics struct {
	EventID        string                     `json:"eventId"`
	Currency       string                     `json:"currency"`
	GrossRevenue   int64                      `json:"grossRevenue"`
	RefundedAmount int64                      `json:"refundedAmount"`
	NetRevenue     int64                      `json:"netRevenue"`
	TicketsSold    int                        `json:"ticketsSold"`
	TicketsHeld    int                        `json:"ticketsHeld"`
	Capacity       int                        `json:"capacity"`
	PercentageSold int                        `json:"percentageSold"`
	SoldDisplay    string                     `json:"soldDisplay"`
	CheckedIn      int                        `json:"checkedIn"`
	Availability   query.Status               `json:"availability"`
	OrdersByStatus map[models.OrderStatus]int `json:"ordersByStatus"`
	SalesByType    []TicketTypeSales          `json:"salesByType"`
	DailySales     []DailySalesMetrics        `json:"dailySales"`
}

// TicketTypeSales contains sales metrics for one ticket type
type TicketTypeSales struct {
	TicketTypeID   string       `json:"ticketTypeId"`
	Name           string       `json:"name"`
	UnitPrice      int64        `json:"unitPrice"`
	Total          int          `json:"total"`
	Sold           int          `json:"sold"`
	Held           int          `json:"held"`
	Available      int          `json:"available"`
	PercentageSold int          `json:"percentageSold"`
	Availability   query.Status `json:"availability"`
	TicketsIssued  int          `json:"ticketsIssued"`
	Revenue        int64        `json:"revenue"`
	CheckedIn      int          `json:"checkedIn"`
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date        string `json:"date"`
	Revenue     int64  `json:"revenue"`
	TicketsSold int    `json:"ticketsSold"`
}

// GetEventAnalytics returns sales analytics for an event. Gross revenue is
// the total of every order that was paid, including the ones later
// refunded; net revenue subtracts what went back.
func (s *Service) GetEventAnalytics(ctx context.Context, event models.Event) (*EventAnalytics, error) {
	totals, err := s.DB.GetStatusTotals(ctx, event.ID)
	if err != nil {
		return nil, apperr.System("order totals", err)
	}
	types, err := s.DB.GetTicketTypes(ctx, event.ID)
	if err != nil {
		return nil, apperr.System("ticket types", err)
	}
	revenue, err := s.DB.GetRevenueByTicketType(ctx, event.ID)
	if err != nil {
		return nil, apperr.System("ticket type revenue", err)
	}
	daily, err := s.DB.GetDailySalesByEventID(ctx, event.ID)
	if err != nil {
		return nil, apperr.System("daily sales", err)
	}

	a := &EventAnalytics{
		EventID:        event.ID,
		Currency:       event.Currency,
		OrdersByStatus: make(map[models.OrderStatus]int, len(totals)),
		SalesByType:    make([]TicketTypeSales, 0, len(types)),
		DailySales:     make([]DailySalesMetrics, 0, len(daily)),
	}

	for _, t := range totals {
		a.OrdersByStatus[t.Status] = t.Orders
		switch t.Status {
		case models.OrderStatusCompleted, models.OrderStatusPartiallyRefunded, models.OrderStatusRefunded:
			a.GrossRevenue += t.Revenue
			a.RefundedAmount += t.Refunded
		}
	}
	a.NetRevenue = a.GrossRevenue - a.RefundedAmount

	byType := make(map[string]TypeRevenue, len(revenue))
	for _, r := range revenue {
		byType[r.TicketTypeID] = r
		a.CheckedIn += r.CheckedIn
	}

	for _, tt := range types {
		r := byType[tt.ID]
		a.SalesByType = append(a.SalesByType, TicketTypeSales{
			TicketTypeID:   tt.ID,
			Name:           tt.Name,
			UnitPrice:      tt.UnitPrice,
			Total:          tt.QuantityTotal,
			Sold:           tt.QuantitySold,
			Held:           tt.QuantityHeld,
			Available:      tt.Available(),
			PercentageSold: query.PercentageSold(tt.QuantitySold, tt.QuantityTotal),
			Availability:   query.TicketTypeAvailability(tt),
			TicketsIssued:  r.Tickets,
			Revenue:        r.Revenue,
			CheckedIn:      r.CheckedIn,
		})
		a.TicketsSold += tt.QuantitySold
		a.TicketsHeld += tt.QuantityHeld
		a.Capacity += tt.QuantityTotal
	}
	a.PercentageSold = query.PercentageSold(a.TicketsSold, a.Capacity)
	a.SoldDisplay = query.FormatCompactNumber(int64(a.TicketsSold))
	a.Availability = query.AvailabilityStatus(a.TicketsSold, a.Capacity)

	for _, d := range daily {
		a.DailySales = append(a.DailySales, DailySalesMetrics{
			Date:        d.SalesDate,
			Revenue:     d.DailyRevenue,
			TicketsSold: d.DailyQuantity,
		})
	}

	return a, nil
}

// GetEventOrders lists the orders of an event for its organizer.
func (s *Service) GetEventOrders(ctx context.Context, eventID string, options EventOrderOptions) ([]models.Order, error) {
	if options.Status != "" && !knownOrderStatus(models.OrderStatus(options.Status)) {
		return nil, apperr.Validation(fmt.Sprintf("Unknown order status %q", options.Status))
	}
	orders, err := s.DB.GetEventOrders(ctx, eventID, options)
	if err != nil {
		return nil, apperr.System("event orders", err)
	}
	return orders, nil
}

func knownOrderStatus(status models.OrderStatus) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusProcessing, models.OrderStatusCompleted,
		models.OrderStatusFailed, models.OrderStatusCancelled, models.OrderStatusRefunded,
		models.OrderStatusPartiallyRefunded:
		return true
	}
	return false
}
