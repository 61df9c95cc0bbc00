package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	respondError(w, appErr, nil, details)
}

func respondError(w http.ResponseWriter, appErr *AppError, data, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    data,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	appErr, ok := appErrorFor(err)
	if !ok {
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}
	RespondAppError(w, appErr, nil)
}

var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrIdempotencyConflict, ErrIdempotencyConflict},
	{domain.ErrScaNotRequired, ErrScaNotRequired},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidCurrency, ErrInvalidCurrency},
	{domain.ErrInvalidPhoneNumber, ErrInvalidPhoneNumber},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrAccountInactive, ErrAccountInactive},
	{domain.ErrAccountNotFound, ErrAccountNotFound},
	{domain.ErrRecipientNotFound, ErrRecipientNotFound},
	{domain.ErrSelfTransfer, ErrSelfTransfer},
	{domain.ErrForbidden, ErrForbidden},
	{domain.ErrMissingSourceIBAN, ErrMissingSourceIBAN},
	{domain.ErrLimitExceeded, ErrLimitExceeded},
	{domain.ErrSanctionsHit, ErrSanctionsHit},
	{domain.ErrUnknownOperator, ErrUnknownOperator},
	{domain.ErrFraudBlocked, ErrFraudBlocked},
	{domain.ErrInvalidOTP, ErrInvalidOTP},
}

func appErrorFor(err error) (*AppError, bool) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.appErr, true
		}
	}
	return nil, false
}
