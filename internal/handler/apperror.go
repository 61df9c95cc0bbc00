package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency       = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrInvalidPhoneNumber    = &AppError{http.StatusBadRequest, "INVALID_PHONE_NUMBER", "Invalid phone number"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency key is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrScaNotRequired        = &AppError{http.StatusConflict, "SCA_NOT_REQUIRED", "Payment is not awaiting authorization"}

	ErrInsufficientFunds = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountInactive   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_INACTIVE", "Account is not active"}
	ErrAccountNotFound   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrRecipientNotFound = &AppError{http.StatusUnprocessableEntity, "RECIPIENT_NOT_FOUND", "Recipient not found"}
	ErrSelfTransfer      = &AppError{http.StatusUnprocessableEntity, "SELF_TRANSFER_NOT_ALLOWED", "Cannot transfer to the same account"}
	ErrForbidden         = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_OWNED", "Source account does not belong to the caller"}
	ErrMissingSourceIBAN = &AppError{http.StatusUnprocessableEntity, "SOURCE_IBAN_MISSING", "Source account has no IBAN"}
	ErrLimitExceeded     = &AppError{http.StatusUnprocessableEntity, "TRANSACTION_LIMIT_EXCEEDED", "Transaction limit exceeded"}
	ErrSanctionsHit      = &AppError{http.StatusUnprocessableEntity, "SANCTIONS_HIT", "Beneficiary failed sanctions screening"}
	ErrUnknownOperator   = &AppError{http.StatusUnprocessableEntity, "UNKNOWN_OPERATOR", "Mobile operator could not be determined"}
	ErrFraudBlocked      = &AppError{http.StatusUnprocessableEntity, "FRAUD_BLOCKED", "Payment blocked by fraud screening"}
	ErrInvalidOTP        = &AppError{http.StatusUnprocessableEntity, "INVALID_SCA_OTP", "Invalid SCA one-time code"}
	ErrPaymentRejected   = &AppError{http.StatusUnprocessableEntity, "PAYMENT_REJECTED", "Payment was rejected"}

	ErrUpstreamFailure = &AppError{http.StatusBadGateway, "PAYMENT_PROCESSING_FAILED", "Payment could not be processed"}
)
