package tickets

import (
	"bytes"
	"fmt"

	"tixly-ticketing/internal/models"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays out a single-page e-ticket for t with its QR code.
func RenderPDF(t models.Ticket, event models.Event) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// --- Header ---
	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 15, "TIXLY eTICKET")
	pdf.Ln(18)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(event.Name))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, event.StartDate.UTC().Format("Monday, 2 January 2006 15:04 MST"))
	pdf.Ln(6)
	venue := event.VenueName
	if event.VenueCity != "" {
		venue += ", " + event.VenueCity
	}
	pdf.Cell(0, 8, tr(venue))
	pdf.Ln(12)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)

	// --- Ticket details + QR ---
	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 55, "F")

	pdf.SetXY(20, yStart+7)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, tr(t.TicketTypeName))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 12)
	for _, line := range []string{
		"Attendee: " + t.AttendeeName,
		"Order: " + t.OrderID,
		"Barcode: " + t.Barcode,
		"Price: " + formatAmount(t.PricePaid, event.Currency),
	} {
		pdf.SetX(20)
		pdf.Cell(0, 8, tr(line))
		pdf.Ln(6)
	}

	if len(t.QRCode) > 0 {
		opts := gofpdf.ImageOptions{ImageType: "png"}
		pdf.RegisterImageOptionsReader("qr-"+t.ID, opts, bytes.NewReader(t.QRCode))
		pdf.ImageOptions("qr-"+t.ID, 145, yStart+5, 45, 0, false, opts, 0, "")
	}

	// --- Footer ---
	pdf.SetXY(15, 270)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.Cell(0, 6, "Present this QR code at the entrance. Each ticket admits one person once.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render ticket pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}
