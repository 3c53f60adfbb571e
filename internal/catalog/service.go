package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tixly-ticketing/internal/apperr"
	catalogdb "tixly-ticketing/internal/catalog/db"
	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/logger"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/query"
	"tixly-ticketing/internal/utils"

	"github.com/google/uuid"
)

type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	ListEvents(ctx context.Context, filter catalogdb.EventFilter) ([]models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event, ticketTypes []models.TicketType) error
	UpsertEvent(ctx context.Context, event *models.Event, ticketTypes []models.TicketType) error
	UpdateEventStatus(ctx context.Context, id string, from []models.EventStatus, to models.EventStatus, now time.Time) (bool, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error)
	ListTicketTypesForEvents(ctx context.Context, eventIDs []string) (map[string][]models.TicketType, error)
	GetTicketType(ctx context.Context, id string) (*models.TicketType, error)
}

// Events listed publicly. Drafts and events under review stay private.
var publicStatuses = []models.EventStatus{
	models.EventStatusScheduled,
	models.EventStatusOnSale,
	models.EventStatusPaused,
	models.EventStatusSoldOut,
	models.EventStatusPostponed,
}

var publishableFrom = []models.EventStatus{
	models.EventStatusDraft,
	models.EventStatusPending,
	models.EventStatusScheduled,
	models.EventStatusPaused,
}

type CatalogService struct {
	DB     DBLayer
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewCatalogService(db DBLayer, clk clock.Clock, log *logger.Logger) *CatalogService {
	return &CatalogService{DB: db, Clock: clk, Logger: log}
}

// EventDetail is an event page: the event, its purchasable ticket types with
// live availability and the listing summary.
type EventDetail struct {
	Event       models.Event           `json:"event"`
	TicketTypes []query.TicketTypeView `json:"ticketTypes"`
	Summary     query.EventSummary     `json:"summary"`
}

type TicketTypeInput struct {
	Name        string    `json:"name" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=1000"`
	UnitPrice   int64     `json:"unitPrice" validate:"gte=0"`
	Quantity    int       `json:"quantity" validate:"gte=1"`
	MinPerOrder int       `json:"minPerOrder" validate:"gte=0"`
	MaxPerOrder int       `json:"maxPerOrder" validate:"gte=0"`
	SaleStart   time.Time `json:"saleStart"`
	SaleEnd     time.Time `json:"saleEnd"`
	Hidden      bool      `json:"hidden"`
}

type CreateEventInput struct {
	Name             string            `json:"name" validate:"required,max=200"`
	ShortDescription string            `json:"shortDescription" validate:"max=300"`
	Description      string            `json:"description"`
	Category         string            `json:"category" validate:"required"`
	StartDate        time.Time         `json:"startDate" validate:"required"`
	EndDate          time.Time         `json:"endDate"`
	VenueName        string            `json:"venueName" validate:"required"`
	VenueCity        string            `json:"venueCity"`
	VenueState       string            `json:"venueState"`
	Currency         string            `json:"currency" validate:"omitempty,len=3"`
	TicketTypes      []TicketTypeInput `json:"ticketTypes" validate:"required,min=1,dive"`
}

// ---------------- READS ----------------

// GetEvent satisfies the cart builder's catalog.
func (s *CatalogService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.DB.GetEvent(ctx, id)
}

func (s *CatalogService) ListTicketTypes(ctx context.Context, eventID string) ([]models.TicketType, error) {
	return s.DB.ListTicketTypes(ctx, eventID)
}

// FindEvent looks an event up by ID, then by slug.
func (s *CatalogService) FindEvent(ctx context.Context, idOrSlug string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, idOrSlug)
	if errors.Is(err, sql.ErrNoRows) {
		event, err = s.DB.GetEventBySlug(ctx, idOrSlug)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.Error{Code: apperr.CodeEventNotFound, Kind: apperr.KindNotFound, Entity: idOrSlug, Message: "Event not found"}
	}
	if err != nil {
		return nil, apperr.System("get event", err)
	}
	return event, nil
}

// ListEvents returns summaries of public events, optionally narrowed by
// category and a free-text query over name and venue.
func (s *CatalogService) ListEvents(ctx context.Context, category, q string) ([]query.EventSummary, error) {
	events, err := s.DB.ListEvents(ctx, catalogdb.EventFilter{
		Category: category,
		Query:    strings.TrimSpace(q),
		Statuses: publicStatuses,
	})
	if err != nil {
		return nil, apperr.System("list events", err)
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	types, err := s.DB.ListTicketTypesForEvents(ctx, ids)
	if err != nil {
		return nil, apperr.System("list ticket types", err)
	}

	summaries := make([]query.EventSummary, 0, len(events))
	for _, e := range events {
		summaries = append(summaries, query.BuildEventSummary(e, types[e.ID]))
	}
	return summaries, nil
}

// GetEventDetail returns the event page. Unpublished events are only shown
// to their organizer.
func (s *CatalogService) GetEventDetail(ctx context.Context, idOrSlug, userID string) (*EventDetail, error) {
	event, err := s.FindEvent(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if !isPublic(event.Status) && event.OrganizerID != userID {
		return nil, &apperr.Error{Code: apperr.CodeEventNotFound, Kind: apperr.KindNotFound, Entity: idOrSlug, Message: "Event not found"}
	}

	types, err := s.DB.ListTicketTypes(ctx, event.ID)
	if err != nil {
		return nil, apperr.System("list ticket types", err)
	}
	views := make([]query.TicketTypeView, 0, len(types))
	for _, tt := range types {
		if tt.Purchasable() {
			views = append(views, query.BuildTicketTypeView(tt))
		}
	}
	return &EventDetail{Event: *event, TicketTypes: views, Summary: query.BuildEventSummary(*event, types)}, nil
}

// TicketTypeAvailability returns live availability of one ticket type.
func (s *CatalogService) TicketTypeAvailability(ctx context.Context, id string) (query.TicketTypeView, error) {
	tt, err := s.DB.GetTicketType(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return query.TicketTypeView{}, &apperr.Error{Code: apperr.CodeTicketTypeNotFound, Kind: apperr.KindNotFound, Entity: id, Message: "Ticket type not found"}
	}
	if err != nil {
		return query.TicketTypeView{}, apperr.System("get ticket type", err)
	}
	return query.BuildTicketTypeView(*tt), nil
}

// RequireOrganizer loads an event and checks userID organizes it.
func (s *CatalogService) RequireOrganizer(ctx context.Context, eventID, userID string) (*models.Event, error) {
	event, err := s.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if userID == "" || event.OrganizerID != userID {
		s.Logger.LogSecurity("NOT_ORGANIZER", fmt.Sprintf("User %q denied access to event %s", userID, event.ID))
		return nil, apperr.New(apperr.CodeForbidden, apperr.KindForbidden, "Only the event organizer can do this")
	}
	return event, nil
}

// ---------------- WRITES ----------------

// CreateEvent stores a draft event with its ticket types, attributed to
// organizerID.
func (s *CatalogService) CreateEvent(ctx context.Context, organizerID string, in CreateEventInput) (*EventDetail, error) {
	if !query.KnownCategory(in.Category) {
		return nil, apperr.Validation(fmt.Sprintf("Unknown category %q", in.Category))
	}
	if !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return nil, apperr.Validation("End date must not be before the start date")
	}

	now := s.Clock.Now()
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = "USD"
	}
	event := &models.Event{
		ID:               uuid.NewString(),
		Slug:             utils.Slugify(in.Name, now),
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		Category:         in.Category,
		Status:           models.EventStatusDraft,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		VenueName:        in.VenueName,
		VenueCity:        in.VenueCity,
		VenueState:       in.VenueState,
		Currency:         currency,
		OrganizerID:      organizerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	types := make([]models.TicketType, 0, len(in.TicketTypes))
	for i, t := range in.TicketTypes {
		minPer, maxPer := t.MinPerOrder, t.MaxPerOrder
		if minPer == 0 {
			minPer = 1
		}
		if maxPer == 0 {
			maxPer = 10
		}
		if maxPer < minPer {
			return nil, apperr.Validation(fmt.Sprintf("%s: maximum per order must be at least the minimum", t.Name))
		}
		if !t.SaleEnd.IsZero() && !t.SaleEnd.After(t.SaleStart) {
			return nil, apperr.Validation(fmt.Sprintf("%s: sale end must be after sale start", t.Name))
		}
		types = append(types, models.TicketType{
			ID:            uuid.NewString(),
			EventID:       event.ID,
			Name:          t.Name,
			Description:   t.Description,
			UnitPrice:     t.UnitPrice,
			Currency:      currency,
			QuantityTotal: t.Quantity,
			MinPerOrder:   minPer,
			MaxPerOrder:   maxPer,
			SaleStart:     t.SaleStart,
			SaleEnd:       t.SaleEnd,
			Hidden:        t.Hidden,
			SortOrder:     i,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := s.DB.CreateEvent(ctx, event, types); err != nil {
		return nil, apperr.System("create event", err)
	}
	s.Logger.Info("CATALOG", fmt.Sprintf("Event %s (%s) created by %s with %d ticket types", event.ID, event.Slug, organizerID, len(types)))

	views := make([]query.TicketTypeView, 0, len(types))
	for _, tt := range types {
		views = append(views, query.BuildTicketTypeView(tt))
	}
	return &EventDetail{Event: *event, TicketTypes: views, Summary: query.BuildEventSummary(*event, types)}, nil
}

// Publish puts an event on sale. Only its organizer may do so.
func (s *CatalogService) Publish(ctx context.Context, eventID, userID string) (*models.Event, error) {
	event, err := s.RequireOrganizer(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusOnSale {
		return event, nil
	}

	now := s.Clock.Now()
	ok, err := s.DB.UpdateEventStatus(ctx, event.ID, publishableFrom, models.EventStatusOnSale, now)
	if err != nil {
		return nil, apperr.System("publish event", err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidRequest, apperr.KindConflict,
			fmt.Sprintf("An event that is %s cannot be put on sale", event.Status))
	}

	event.Status = models.EventStatusOnSale
	event.UpdatedAt = now
	s.Logger.Info("CATALOG", fmt.Sprintf("Event %s is on sale", event.ID))
	return event, nil
}

func isPublic(status models.EventStatus) bool {
	for _, s := range publicStatuses {
		if s == status {
			return true
		}
	}
	return false
}
