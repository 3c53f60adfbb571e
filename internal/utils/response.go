package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"tixly-ticketing/internal/apperr"
)

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

func SuccessResponse(data interface{}) APIResponse {
	return APIResponse{Success: true, Data: data}
}

func ErrorResponse(code, message string, details interface{}) APIResponse {
	return APIResponse{Success: false, Error: &APIError{Code: code, Message: message, Details: details}}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, SuccessResponse(data))
}

// WriteError answers with the status and public message of err. Inventory
// errors carry the ticket type and what is left as details.
func WriteError(w http.ResponseWriter, err error) {
	var details interface{}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind != apperr.KindSystem && appErr.Entity != "" {
		switch appErr.Code {
		case apperr.CodeSoldOut, apperr.CodeInsufficientInventory:
			details = map[string]interface{}{"ticketType": appErr.Entity, "available": appErr.Available}
		case apperr.CodeBelowMinimum, apperr.CodeAboveMaximum, apperr.CodeTicketTypeNotOnSale, apperr.CodeUnknownTicketType:
			details = map[string]interface{}{"ticketType": appErr.Entity}
		}
	}
	WriteJSON(w, apperr.HTTPStatus(err), ErrorResponse(string(apperr.CodeOf(err)), apperr.PublicMessage(err), details))
}
