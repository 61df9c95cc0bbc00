package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/events"
)

// NewPayment returns an unsaved payment with the fields every type needs.
func NewPayment(t domain.PaymentType, fromAccountID uuid.UUID, amount string) *domain.Payment {
	id := uuid.New()
	return &domain.Payment{
		ID:             id,
		TransactionID:  "TXN-" + id.String()[:8],
		IdempotencyKey: uuid.NewString(),
		Type:           t,
		UserID:         uuid.New(),
		FromAccountID:  fromAccountID,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "EUR",
		Fees:           decimal.Zero,
	}
}

// NewAccount returns an active account holding balance.
func NewAccount(userID uuid.UUID, balance string) *domain.Account {
	id := uuid.New()
	iban := "FR1420041010050500013M02606"
	return &domain.Account{
		ID:            id,
		AccountNumber: "ACC-" + id.String()[:8],
		IBAN:          &iban,
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		Currency:      "EUR",
		Type:          "CHECKING",
		Status:        domain.AccountStatusActive,
	}
}

// FakeLedger is an in-memory account service. Postings are idempotent per
// IdempotencyKey, like the real one.
type FakeLedger struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	applied  map[string]domain.PostingReceipt

	Debits  []domain.Posting
	Credits []domain.Posting
	Lookups int

	// DebitErrs are returned by successive Debit calls; a nil entry succeeds.
	DebitErrs  []error
	CreditErrs []error
	GetErr     error
}

func NewFakeLedger(accounts ...*domain.Account) *FakeLedger {
	l := &FakeLedger{
		accounts: make(map[uuid.UUID]*domain.Account),
		applied:  make(map[string]domain.PostingReceipt),
	}
	for _, a := range accounts {
		l.accounts[a.ID] = a
	}
	return l
}

func (l *FakeLedger) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Lookups++
	if l.GetErr != nil {
		return nil, l.GetErr
	}
	a, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("GetAccount: %w", domain.ErrAccountNotFound)
	}
	c := *a
	return &c, nil
}

func (l *FakeLedger) GetAccountByNumber(_ context.Context, number string) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Lookups++
	for _, a := range l.accounts {
		if a.AccountNumber == number {
			c := *a
			return &c, nil
		}
	}
	return nil, fmt.Errorf("GetAccountByNumber: %w", domain.ErrAccountNotFound)
}

func (l *FakeLedger) Debit(_ context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Debits = append(l.Debits, p)
	if err := pop(&l.DebitErrs); err != nil {
		return nil, err
	}
	return l.post(p, p.Amount.Neg())
}

func (l *FakeLedger) Credit(_ context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Credits = append(l.Credits, p)
	if err := pop(&l.CreditErrs); err != nil {
		return nil, err
	}
	return l.post(p, p.Amount)
}

func (l *FakeLedger) post(p domain.Posting, delta decimal.Decimal) (*domain.PostingReceipt, error) {
	if r, ok := l.applied[p.IdempotencyKey]; ok {
		return &r, nil
	}
	a, ok := l.accounts[p.AccountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if delta.IsNegative() && a.Balance.Add(delta).IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}
	a.Balance = a.Balance.Add(delta)
	r := domain.PostingReceipt{TransactionID: "LED-" + p.TransactionID, BalanceAfter: a.Balance}
	l.applied[p.IdempotencyKey] = r
	return &r, nil
}

// Balance returns the current balance of an account.
func (l *FakeLedger) Balance(id uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[id].Balance
}

func (l *FakeLedger) PostingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Debits) + len(l.Credits)
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *RecordingPublisher) Types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func CountTransitions(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM payment_transitions WHERE payment_id = $1`, paymentID).Scan(&count)
	if err != nil {
		t.Fatalf("count transitions for payment %s: %v", paymentID, err)
	}
	return count
}
