// Package pricing turns a cart into a priced cart. All amounts are integer
// minor currency units and every rate is parts per million, so each rounding
// step is exact and happens once per breakdown.
package pricing

import "tixly-ticketing/internal/models"

const ppmScale = 1_000_000

// DefaultRates is 2.5% service fee, 0.99 per ticket and 8% tax.
func DefaultRates() models.FeeRates {
	return models.FeeRates{
		ServiceFeePPM: 25_000,
		PerTicketFee:  99,
		TaxPPM:        80_000,
	}
}

type Calculator struct {
	rates models.FeeRates
}

func NewCalculator(rates models.FeeRates) *Calculator {
	return &Calculator{rates: rates}
}

func (c *Calculator) Rates() models.FeeRates {
	return c.rates
}

// Breakdown is the monetary part of a priced cart.
type Breakdown struct {
	Lines      []models.PricedLine
	ItemCount  int
	Subtotal   int64
	ServiceFee int64
	Tax        int64
	Total      int64
}

// Price computes the breakdown of cart with the calculator's rates.
func (c *Calculator) Price(cart models.Cart) models.PricedCart {
	b := Compute(cart.Items, c.rates)
	return models.PricedCart{
		Cart:       cart,
		Lines:      b.Lines,
		ItemCount:  b.ItemCount,
		Subtotal:   b.Subtotal,
		ServiceFee: b.ServiceFee,
		Tax:        b.Tax,
		Total:      b.Total,
		Rates:      c.rates,
	}
}

// Compute prices items under rates:
//
//	subtotal   = sum(quantity * unitPrice)
//	serviceFee = round(subtotal * serviceFeeRate) + itemCount * perTicketFee
//	tax        = round((subtotal + serviceFee) * taxRate)
//	total      = subtotal + serviceFee + tax
func Compute(items []models.CartItem, rates models.FeeRates) Breakdown {
	b := Breakdown{Lines: make([]models.PricedLine, 0, len(items))}
	for _, item := range items {
		line := int64(item.Quantity) * item.UnitPrice
		b.Lines = append(b.Lines, models.PricedLine{
			TicketTypeID: item.TicketTypeID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineTotal:    line,
		})
		b.Subtotal += line
		b.ItemCount += item.Quantity
	}

	b.ServiceFee = applyRate(b.Subtotal, rates.ServiceFeePPM) + int64(b.ItemCount)*rates.PerTicketFee
	b.Tax = applyRate(b.Subtotal+b.ServiceFee, rates.TaxPPM)
	b.Total = b.Subtotal + b.ServiceFee + b.Tax
	return b
}

// applyRate returns amount*ppm/1e6 rounded half up.
func applyRate(amount, ppm int64) int64 {
	if amount <= 0 || ppm <= 0 {
		return 0
	}
	return (amount*ppm + ppmScale/2) / ppmScale
}
