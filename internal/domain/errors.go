package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrAccountInactive         = errors.New("account is not active")
	ErrSelfTransfer            = errors.New("cannot transfer to same account")
	ErrInvalidCurrency         = errors.New("invalid currency")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrRecipientNotFound       = errors.New("recipient not found")
	ErrAccountNotFound         = errors.New("account not found")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrPaymentTerminal         = errors.New("payment already in terminal state")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrIdempotencyConflict     = errors.New("idempotency key reused with different request")
	ErrForbidden               = errors.New("payment does not belong to user")

	ErrLimitExceeded = errors.New("transaction limit exceeded")
	ErrSanctionsHit  = errors.New("beneficiary failed sanctions screening")

	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStaleState             = errors.New("payment state changed concurrently")

	ErrFraudBlocked      = errors.New("payment blocked by fraud screening")
	ErrScaNotRequired    = errors.New("payment is not awaiting authorization")
	ErrInvalidOTP        = errors.New("invalid SCA OTP")
	ErrMissingSourceIBAN = errors.New("source account has no IBAN")

	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrUnknownOperator    = errors.New("unknown mobile operator")

	ErrClearingRejected   = errors.New("clearing rejected payment")
	ErrClearingTimeout    = errors.New("clearing did not answer in time")
	ErrOperatorRejected   = errors.New("operator rejected recharge")
	ErrLedgerUnavailable  = errors.New("ledger unavailable")
	ErrCompensationFailed = errors.New("compensation failed")
)

var (
	ErrDailyLimitExceeded   error = &limitError{"daily limit exceeded"}
	ErrMonthlyLimitExceeded error = &limitError{"monthly limit exceeded"}
	ErrInstantLimitExceeded error = &limitError{"amount exceeds instant transfer maximum"}
)

// limitError is a specific limit breach that also matches ErrLimitExceeded.
type limitError struct{ msg string }

func (e *limitError) Error() string { return e.msg }

func (e *limitError) Is(target error) bool { return target == ErrLimitExceeded }
