package query

import (
	"fmt"
	"strconv"
	"time"

	"tixly-ticketing/internal/models"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityPrimary Severity = "primary"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Status struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

const lowStockThreshold = 10

// PercentageSold is sold/total*100 rounded half up, or 0 for an empty pool.
func PercentageSold(sold, total int) int {
	if total <= 0 || sold <= 0 {
		return 0
	}
	return (sold*200 + total) / (2 * total)
}

// AvailabilityStatus is the urgency label for an inventory pool.
func AvailabilityStatus(sold, total int) Status {
	remaining := total - sold
	switch pct := PercentageSold(sold, total); {
	case remaining <= 0:
		return Status{Text: "Sold Out", Severity: SeverityError}
	case remaining <= lowStockThreshold:
		return Status{Text: fmt.Sprintf("Only %d left!", remaining), Severity: SeverityWarning}
	case pct >= 75:
		return Status{Text: "Selling fast", Severity: SeverityWarning}
	case pct >= 50:
		return Status{Text: "Popular", Severity: SeverityPrimary}
	default:
		return Status{Text: "Available", Severity: SeveritySuccess}
	}
}

// TicketTypeAvailability counts held units as gone for the scarcity labels,
// then falls back to the sold-based status.
func TicketTypeAvailability(tt models.TicketType) Status {
	available := tt.Available()
	if available <= 0 {
		return Status{Text: "Sold Out", Severity: SeverityError}
	}
	if available <= lowStockThreshold {
		return Status{Text: fmt.Sprintf("Only %d left!", available), Severity: SeverityWarning}
	}
	return AvailabilityStatus(tt.QuantitySold, tt.QuantityTotal)
}

// FormatCompactNumber renders 1500 as "1.5K" and 2000000 as "2M".
func FormatCompactNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return compact((n+50_000)/100_000, "M")
	case n >= 1_000:
		return compact((n+50)/100, "K")
	default:
		return strconv.FormatInt(n, 10)
	}
}

func compact(tenths int64, suffix string) string {
	if tenths%10 == 0 {
		return strconv.FormatInt(tenths/10, 10) + suffix
	}
	return fmt.Sprintf("%d.%d%s", tenths/10, tenths%10, suffix)
}

var categoryNames = map[string]string{
	"concert":    "Concert",
	"sports":     "Sports",
	"conference": "Conference",
	"festival":   "Festival",
	"theater":    "Theater",
	"comedy":     "Comedy",
	"workshop":   "Workshop",
	"other":      "Other",
}

func CategoryDisplayName(category string) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return category
}

func KnownCategory(category string) bool {
	_, ok := categoryNames[category]
	return ok
}

type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type EventSummary struct {
	ID             string             `json:"id"`
	Slug           string             `json:"slug"`
	Name           string             `json:"name"`
	Category       string             `json:"category"`
	CategoryName   string             `json:"categoryName"`
	Status         models.EventStatus `json:"status"`
	StartDate      time.Time          `json:"startDate"`
	VenueName      string             `json:"venueName"`
	VenueCity      string             `json:"venueCity,omitempty"`
	Currency       string             `json:"currency"`
	PriceRange     *PriceRange        `json:"priceRange,omitempty"`
	Sold           int                `json:"sold"`
	Capacity       int                `json:"capacity"`
	PercentageSold int                `json:"percentageSold"`
	SoldDisplay    string             `json:"soldDisplay"`
	Availability   Status             `json:"availability"`
	IsFeatured     bool               `json:"isFeatured"`
}

// BuildEventSummary projects an event and its ticket types for listings.
// Hidden and retired types are left out of prices and counts.
func BuildEventSummary(event models.Event, ticketTypes []models.TicketType) EventSummary {
	s := EventSummary{
		ID:           event.ID,
		Slug:         event.Slug,
		Name:         event.Name,
		Category:     event.Category,
		CategoryName: CategoryDisplayName(event.Category),
		Status:       event.Status,
		StartDate:    event.StartDate,
		VenueName:    event.VenueName,
		VenueCity:    event.VenueCity,
		Currency:     event.Currency,
		IsFeatured:   event.IsFeatured,
	}

	for _, tt := range ticketTypes {
		if !tt.Purchasable() {
			continue
		}
		if s.PriceRange == nil {
			s.PriceRange = &PriceRange{Min: tt.UnitPrice, Max: tt.UnitPrice}
		} else {
			s.PriceRange.Min = min(s.PriceRange.Min, tt.UnitPrice)
			s.PriceRange.Max = max(s.PriceRange.Max, tt.UnitPrice)
		}
		s.Sold += tt.QuantitySold
		s.Capacity += tt.QuantityTotal
	}

	s.PercentageSold = PercentageSold(s.Sold, s.Capacity)
	s.SoldDisplay = FormatCompactNumber(int64(s.Sold))
	s.Availability = AvailabilityStatus(s.Sold, s.Capacity)
	return s
}

type TicketTypeView struct {
	models.TicketType
	Available    int    `json:"available"`
	Availability Status `json:"availability"`
}

func BuildTicketTypeView(tt models.TicketType) TicketTypeView {
	return TicketTypeView{
		TicketType:   tt,
		Available:    tt.Available(),
		Availability: TicketTypeAvailability(tt),
	}
}
