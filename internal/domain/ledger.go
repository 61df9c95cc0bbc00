package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

// Posting is a single debit or credit instruction sent to the ledger.
// The ledger deduplicates postings by IdempotencyKey.
type Posting struct {
	AccountID      uuid.UUID
	EntryType      EntryType
	Amount         decimal.Decimal
	Currency       string
	TransactionID  string
	IdempotencyKey string
	Description    string
}

type PostingReceipt struct {
	TransactionID string
	BalanceAfter  decimal.Decimal
}
