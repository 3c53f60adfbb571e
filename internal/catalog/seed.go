package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tixly-ticketing/internal/apperr"
	"tixly-ticketing/internal/models"
	"tixly-ticketing/internal/query"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the seed command.
type SeedFile struct {
	Events []SeedEvent `yaml:"events"`
}

type SeedEvent struct {
	ID               string           `yaml:"id"`
	Slug             string           `yaml:"slug"`
	Name             string           `yaml:"name"`
	ShortDescription string           `yaml:"shortDescription"`
	Description      string           `yaml:"description"`
	Category         string           `yaml:"category"`
	Status           string           `yaml:"status"`
	StartDate        time.Time        `yaml:"startDate"`
	EndDate          time.Time        `yaml:"endDate"`
	VenueName        string           `yaml:"venueName"`
	VenueCity        string           `yaml:"venueCity"`
	VenueState       string           `yaml:"venueState"`
	Currency         string           `yaml:"currency"`
	OrganizerID      string           `yaml:"organizerId"`
	Featured         bool             `yaml:"featured"`
	TicketTypes      []SeedTicketType `yaml:"ticketTypes"`
}

type SeedTicketType struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	UnitPrice   int64     `yaml:"unitPrice"`
	Quantity    int       `yaml:"quantity"`
	MinPerOrder int       `yaml:"minPerOrder"`
	MaxPerOrder int       `yaml:"maxPerOrder"`
	SaleStart   time.Time `yaml:"saleStart"`
	SaleEnd     time.Time `yaml:"saleEnd"`
	Hidden      bool      `yaml:"hidden"`
}

// ParseSeed decodes a seed document. Unknown keys are rejected so typos do
// not silently drop fields.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file SeedFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &file, nil
}

func (e SeedEvent) toModels(now time.Time) (*models.Event, []models.TicketType, error) {
	if e.ID == "" || e.Name == "" || e.VenueName == "" || e.StartDate.IsZero() {
		return nil, nil, apperr.Validation(fmt.Sprintf("Seed event %q needs id, name, venueName and startDate", e.ID))
	}
	if !query.KnownCategory(e.Category) {
		return nil, nil, apperr.Validation(fmt.Sprintf("Seed event %s: unknown category %q", e.ID, e.Category))
	}

	status := models.EventStatus(e.Status)
	if status == "" {
		status = models.EventStatusOnSale
	}
	currency := strings.ToUpper(e.Currency)
	if currency == "" {
		currency = "USD"
	}
	slug := e.Slug
	if slug == "" {
		slug = e.ID
	}
	organizer := e.OrganizerID
	if organizer == "" {
		organizer = "seed"
	}

	event := &models.Event{
		ID:               e.ID,
		Slug:             slug,
		Name:             e.Name,
		ShortDescription: e.ShortDescription,
		Description:      e.Description,
		Category:         e.Category,
		Status:           status,
		StartDate:        e.StartDate.UTC(),
		EndDate:          e.EndDate.UTC(),
		VenueName:        e.VenueName,
		VenueCity:        e.VenueCity,
		VenueState:       e.VenueState,
		Currency:         currency,
		OrganizerID:      organizer,
		IsFeatured:       e.Featured,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	types := make([]models.TicketType, 0, len(e.TicketTypes))
	for i, t := range e.TicketTypes {
		if t.ID == "" || t.Name == "" {
			return nil, nil, apperr.Validation(fmt.Sprintf("Seed event %s: ticket type %d needs id and name", e.ID, i))
		}
		if t.UnitPrice < 0 || t.Quantity < 1 {
			return nil, nil, apperr.Validation(fmt.Sprintf("Seed ticket type %s: price must be non-negative and quantity positive", t.ID))
		}
		minPer, maxPer := t.MinPerOrder, t.MaxPerOrder
		if minPer == 0 {
			minPer = 1
		}
		if maxPer == 0 {
			maxPer = 10
		}
		if maxPer < minPer {
			return nil, nil, apperr.Validation(fmt.Sprintf("Seed ticket type %s: maximum per order must be at least the minimum", t.ID))
		}
		types = append(types, models.TicketType{
			ID:            t.ID,
			EventID:       e.ID,
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
	return event, types, nil
}

// Seed upserts every event of file. Running it twice leaves sold and held
// counts untouched. The whole file is checked before anything is written.
func (s *CatalogService) Seed(ctx context.Context, file *SeedFile) (int, error) {
	now := s.Clock.Now()

	type row struct {
		event *models.Event
		types []models.TicketType
	}
	rows := make([]row, 0, len(file.Events))
	for _, e := range file.Events {
		event, types, err := e.toModels(now)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row{event, types})
	}

	for _, r := range rows {
		if err := s.DB.UpsertEvent(ctx, r.event, r.types); err != nil {
			return 0, apperr.System("seed event "+r.event.ID, err)
		}
		s.Logger.Info("SEED", fmt.Sprintf("Event %s seeded with %d ticket types", r.event.ID, len(r.types)))
	}
	return len(rows), nil
}
