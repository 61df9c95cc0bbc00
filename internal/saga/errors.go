package saga

import (
	"errors"
	"fmt"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

// ExternalError carries the rejection details returned by a downstream
// system. It unwraps to the matching domain sentinel.
type ExternalError struct {
	Code   string
	Reason string
	Err    error
}

func (e *ExternalError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %s (%s)", e.Err, e.Reason, e.Code)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Reason)
}

func (e *ExternalError) Unwrap() error { return e.Err }

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrFraudBlocked, "FRAUD_BLOCKED"},
	{domain.ErrInvalidOTP, "INVALID_SCA_OTP"},
	{domain.ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
	{domain.ErrAccountInactive, "ACCOUNT_INACTIVE"},
	{domain.ErrAccountNotFound, "ACCOUNT_NOT_FOUND"},
	{domain.ErrClearingTimeout, "CLEARING_TIMEOUT"},
	{domain.ErrClearingRejected, "CLEARING_REJECTED"},
	{domain.ErrOperatorRejected, "OPERATOR_REJECTED"},
	{domain.ErrCompensationFailed, "COMPENSATION_FAILED"},
	{domain.ErrLedgerUnavailable, "LEDGER_UNAVAILABLE"},
}

// ErrorCode maps a failure cause to the code published in payment.failed.
func ErrorCode(err error) string {
	var ext *ExternalError
	if errors.As(err, &ext) && ext.Code != "" {
		return ext.Code
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "PAYMENT_FAILED"
}

// isBusinessRejection reports whether err is a decision by a counterparty
// rather than a technical fault.
func isBusinessRejection(err error) bool {
	for _, target := range []error{
		domain.ErrClearingRejected,
		domain.ErrClearingTimeout,
		domain.ErrOperatorRejected,
		domain.ErrInsufficientFunds,
		domain.ErrAccountInactive,
		domain.ErrAccountNotFound,
		domain.ErrInvalidOTP,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
