package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account is the ledger's view of a customer account. Accounts are owned by
// the account service; this service only reads them.
type Account struct {
	ID            uuid.UUID
	AccountNumber string
	IBAN          *string
	UserID        uuid.UUID
	Balance       decimal.Decimal
	Currency      string
	Type          string
	Status        AccountStatus
}

func (a *Account) Active() bool {
	return a.Status == AccountStatusActive
}
