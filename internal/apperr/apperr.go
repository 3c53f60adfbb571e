// Package apperr defines the error taxonomy shared by the ticketing core and
// its HTTP surface. Every failure the core returns on purpose is an *Error
// carrying a stable Code, the Kind it belongs to and, where relevant, the
// entity (ticket type, order, hold) it is about.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindSystem Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindPayment
	KindTransition
	KindUnauthorized
	KindForbidden
)

type Code string

const (
	CodeInvalidRequest        Code = "invalid_request"
	CodeInvalidQuantity       Code = "invalid_quantity"
	CodeEventNotFound         Code = "event_not_found"
	CodeEventNotOnSale        Code = "event_not_on_sale"
	CodeUnknownTicketType     Code = "unknown_ticket_type"
	CodeTicketTypeNotOnSale   Code = "ticket_type_not_on_sale"
	CodeBelowMinimum          Code = "below_minimum"
	CodeAboveMaximum          Code = "above_maximum"
	CodeSoldOut               Code = "sold_out"
	CodeEmptyCart             Code = "empty_cart"
	CodeCartNotFound          Code = "cart_not_found"
	CodeCartExpired           Code = "cart_expired"
	CodeInsufficientInventory Code = "insufficient_inventory"
	CodeHoldNotFound          Code = "hold_not_found"
	CodeHoldExpired           Code = "hold_expired"
	CodeOrderNotFound         Code = "order_not_found"
	CodeTicketTypeNotFound    Code = "ticket_type_not_found"
	CodeInvalidTransition     Code = "invalid_transition"
	CodePaymentFailed         Code = "payment_failed"
	CodeTicketNotFound        Code = "ticket_not_found"
	CodeInvalidTicket         Code = "invalid_ticket"
	CodeAlreadyCheckedIn      Code = "already_checked_in"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeInternal              Code = "internal_error"
)

// GenericPaymentMessage is shown to buyers for every declined charge.
const GenericPaymentMessage = "Payment could not be processed. Please try again."

// GenericSystemMessage replaces the detail of system errors at the edge.
const GenericSystemMessage = "Something went wrong. Please try again."

type Error struct {
	Code      Code
	Kind      Kind
	Message   string
	Entity    string
	Available int
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can compare against
// the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest        = &Error{Code: CodeInvalidRequest, Kind: KindValidation}
	ErrEventNotOnSale        = &Error{Code: CodeEventNotOnSale, Kind: KindValidation}
	ErrUnknownTicketType     = &Error{Code: CodeUnknownTicketType, Kind: KindValidation}
	ErrTicketTypeNotOnSale   = &Error{Code: CodeTicketTypeNotOnSale, Kind: KindValidation}
	ErrBelowMinimum          = &Error{Code: CodeBelowMinimum, Kind: KindValidation}
	ErrAboveMaximum          = &Error{Code: CodeAboveMaximum, Kind: KindValidation}
	ErrSoldOut               = &Error{Code: CodeSoldOut, Kind: KindConflict}
	ErrEmptyCart             = &Error{Code: CodeEmptyCart, Kind: KindValidation}
	ErrCartNotFound          = &Error{Code: CodeCartNotFound, Kind: KindNotFound}
	ErrCartExpired           = &Error{Code: CodeCartExpired, Kind: KindConflict}
	ErrInsufficientInventory = &Error{Code: CodeInsufficientInventory, Kind: KindConflict}
	ErrHoldNotFound          = &Error{Code: CodeHoldNotFound, Kind: KindConflict}
	ErrHoldExpired           = &Error{Code: CodeHoldExpired, Kind: KindConflict}
	ErrOrderNotFound         = &Error{Code: CodeOrderNotFound, Kind: KindNotFound}
	ErrEventNotFound         = &Error{Code: CodeEventNotFound, Kind: KindNotFound}
	ErrTicketTypeNotFound    = &Error{Code: CodeTicketTypeNotFound, Kind: KindNotFound}
	ErrInvalidTransition     = &Error{Code: CodeInvalidTransition, Kind: KindTransition}
	ErrPaymentFailed         = &Error{Code: CodePaymentFailed, Kind: KindPayment}
	ErrInvalidQuantity       = &Error{Code: CodeInvalidQuantity, Kind: KindValidation}
	ErrTicketNotFound        = &Error{Code: CodeTicketNotFound, Kind: KindNotFound}
	ErrInvalidTicket         = &Error{Code: CodeInvalidTicket, Kind: KindValidation}
	ErrAlreadyCheckedIn      = &Error{Code: CodeAlreadyCheckedIn, Kind: KindConflict}
	ErrUnauthorized          = &Error{Code: CodeUnauthorized, Kind: KindUnauthorized}
	ErrForbidden             = &Error{Code: CodeForbidden, Kind: KindForbidden}
)

func New(code Code, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

func Validation(message string) *Error {
	return &Error{Code: CodeInvalidRequest, Kind: KindValidation, Message: message}
}

func EventNotOnSale(eventID string) *Error {
	return &Error{Code: CodeEventNotOnSale, Kind: KindValidation, Entity: eventID, Message: "Event is not on sale"}
}

func UnknownTicketType(ticketTypeID string) *Error {
	return &Error{Code: CodeUnknownTicketType, Kind: KindValidation, Entity: ticketTypeID,
		Message: fmt.Sprintf("Ticket type %s is not available for this event", ticketTypeID)}
}

func TicketTypeNotOnSale(name string) *Error {
	return &Error{Code: CodeTicketTypeNotOnSale, Kind: KindValidation, Entity: name,
		Message: fmt.Sprintf("%s is not on sale right now", name)}
}

func BelowMinimum(name string, min int) *Error {
	return &Error{Code: CodeBelowMinimum, Kind: KindValidation, Entity: name,
		Message: fmt.Sprintf("Minimum %d tickets per order for %s", min, name)}
}

func AboveMaximum(name string, max int) *Error {
	return &Error{Code: CodeAboveMaximum, Kind: KindValidation, Entity: name,
		Message: fmt.Sprintf("Maximum %d tickets per order for %s", max, name)}
}

func SoldOut(name string, available int) *Error {
	msg := fmt.Sprintf("%s is sold out", name)
	if available > 0 {
		msg = fmt.Sprintf("Only %d left for %s", available, name)
	}
	return &Error{Code: CodeSoldOut, Kind: KindConflict, Entity: name, Available: available, Message: msg}
}

func InsufficientInventory(name string, available int) *Error {
	msg := fmt.Sprintf("%s is sold out", name)
	if available > 0 {
		msg = fmt.Sprintf("Only %d left for %s", available, name)
	}
	return &Error{Code: CodeInsufficientInventory, Kind: KindConflict, Entity: name, Available: available, Message: msg}
}

func HoldNotFound(holdID string) *Error {
	return &Error{Code: CodeHoldNotFound, Kind: KindConflict, Entity: holdID, Message: "Reservation no longer exists"}
}

func HoldExpired(holdID string) *Error {
	return &Error{Code: CodeHoldExpired, Kind: KindConflict, Entity: holdID, Message: "Reservation has expired"}
}

func OrderNotFound(orderID string) *Error {
	return &Error{Code: CodeOrderNotFound, Kind: KindNotFound, Entity: orderID, Message: "Order not found"}
}

func InvalidTransition(orderID, from, to string) *Error {
	return &Error{Code: CodeInvalidTransition, Kind: KindTransition, Entity: orderID,
		Message: fmt.Sprintf("Order cannot move from %s to %s", from, to)}
}

// PaymentFailed keeps the processor's reason in Err for logs; Message is
// always the generic buyer-facing text.
func PaymentFailed(orderID string, cause error) *Error {
	return &Error{Code: CodePaymentFailed, Kind: KindPayment, Entity: orderID, Message: GenericPaymentMessage, Err: cause}
}

// System wraps an unexpected failure.
func System(op string, err error) *Error {
	return &Error{Code: CodeInternal, Kind: KindSystem, Message: op, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindTransition:
		return http.StatusConflict
	case KindPayment:
		return http.StatusPaymentRequired
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show a user for err.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindSystem {
		return GenericSystemMessage
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}
