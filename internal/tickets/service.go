package tickets

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
	qr "tixly-ticketing/internal/tickets/qr_genrator"
	"tixly-ticketing/internal/utils"

	"github.com/google/uuid"
)

type TicketDBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	CheckIn(ctx context.Context, id string, at time.Time) (bool, error)
	CountCheckedIn(ctx context.Context, eventID string) (int, error)
}

type TicketService struct {
	DB     TicketDBLayer
	QR     *qr.QRGenerator
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewTicketService(db TicketDBLayer, gen *qr.QRGenerator, clk clock.Clock, log *logger.Logger) *TicketService {
	return &TicketService{DB: db, QR: gen, Clock: clk, Logger: log}
}

// IssueTickets creates one ticket per purchased unit of a completed order.
// It runs inside the transaction that completes the order, so a failure
// here undoes the completion.
func (s *TicketService) IssueTickets(ctx context.Context, order *models.Order) ([]models.Ticket, error) {
	now := s.Clock.Now()
	attendee := order.Customer.FullName()

	tickets := make([]models.Ticket, 0, order.Cart.ItemCount)
	for _, item := range order.Cart.Items {
		for i := 0; i < item.Quantity; i++ {
			ticket := models.Ticket{
				ID:             uuid.NewString(),
				OrderID:        order.ID,
				EventID:        order.EventID,
				TicketTypeID:   item.TicketTypeID,
				TicketTypeName: item.Name,
				UserID:         order.UserID,
				AttendeeName:   attendee,
				AttendeeEmail:  order.Customer.Email,
				Barcode:        utils.GenerateBarcode(),
				PricePaid:      item.UnitPrice,
				IssuedAt:       now,
			}
			png, err := s.QR.GenerateEncryptedQR(payloadOf(ticket))
			if err != nil {
				return nil, fmt.Errorf("generate QR: %w", err)
			}
			ticket.QRCode = png
			tickets = append(tickets, ticket)
		}
	}

	if err := s.DB.CreateTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("store tickets: %w", err)
	}
	s.Logger.Info("TICKETS", fmt.Sprintf("Issued %d tickets for order %s", len(tickets), order.ID))
	return tickets, nil
}

func (s *TicketService) GetTicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.System("list order tickets", err)
	}
	return tickets, nil
}

func (s *TicketService) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.System("list user tickets", err)
	}
	return tickets, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.Error{Code: apperr.CodeTicketNotFound, Kind: apperr.KindNotFound, Entity: id, Message: "Ticket not found"}
	}
	if err != nil {
		return nil, apperr.System("get ticket", err)
	}
	return ticket, nil
}

// CheckIn admits the holder of a scanned QR token at the door of eventID.
func (s *TicketService) CheckIn(ctx context.Context, token, eventID string) (*models.Ticket, error) {
	payload, err := s.QR.DecryptQRData(token)
	if err != nil {
		s.Logger.LogSecurity("QR_REJECTED", fmt.Sprintf("Undecodable ticket token for event %s", eventID))
		return nil, apperr.New(apperr.CodeInvalidTicket, apperr.KindValidation, "Ticket code is not valid")
	}

	ticket, err := s.DB.GetTicketByID(ctx, payload.TicketID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.Error{Code: apperr.CodeTicketNotFound, Kind: apperr.KindNotFound, Entity: payload.TicketID, Message: "Ticket not found"}
	}
	if err != nil {
		return nil, apperr.System("get ticket", err)
	}
	if ticket.Barcode != payload.Barcode || ticket.EventID != eventID {
		s.Logger.LogSecurity("QR_MISMATCH", fmt.Sprintf("Ticket %s presented for event %s", ticket.ID, eventID))
		return nil, apperr.New(apperr.CodeInvalidTicket, apperr.KindValidation, "Ticket is not valid for this event")
	}

	now := s.Clock.Now()
	ok, err := s.DB.CheckIn(ctx, ticket.ID, now)
	if err != nil {
		return nil, apperr.System("check in ticket", err)
	}
	if !ok {
		return nil, &apperr.Error{Code: apperr.CodeAlreadyCheckedIn, Kind: apperr.KindConflict, Entity: ticket.ID, Message: "Ticket has already been used"}
	}

	ticket.CheckedIn = true
	ticket.CheckedInAt = now
	s.Logger.Info("TICKETS", fmt.Sprintf("Ticket %s checked in for event %s", ticket.ID, eventID))
	return ticket, nil
}

func (s *TicketService) CountCheckedIn(ctx context.Context, eventID string) (int, error) {
	return s.DB.CountCheckedIn(ctx, eventID)
}

func payloadOf(t models.Ticket) models.QRPayload {
	return models.QRPayload{
		TicketID:     t.ID,
		OrderID:      t.OrderID,
		EventID:      t.EventID,
		TicketTypeID: t.TicketTypeID,
		Barcode:      t.Barcode,
	}
}

// Token returns the encrypted check-in token of a ticket, the same value its
// QR code carries.
func (s *TicketService) Token(t models.Ticket) (string, error) {
	return s.QR.Token(payloadOf(t))
}
