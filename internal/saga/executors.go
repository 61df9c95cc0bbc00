package saga

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
)

// Executor performs the type-specific external step of a payment. It runs
// while the payment is RESERVED and returns the changes to persist with the
// move to SENT.
type Executor interface {
	Execute(ctx context.Context, p *domain.Payment) (Result, error)
}

type Result struct {
	Changes []statemachine.Change
	// Settled is set when the external system confirmed settlement
	// synchronously. Only meaningful under ViaSettlement.
	Settled bool
}

type ExecutorFunc func(ctx context.Context, p *domain.Payment) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, p *domain.Payment) (Result, error) {
	return f(ctx, p)
}

// SwiftExecutor assesses the flat fee and assigns a UETR. Settlement is
// confirmed later by callback.
type SwiftExecutor struct {
	fee decimal.Decimal
}

func NewSwiftExecutor(fee decimal.Decimal) *SwiftExecutor {
	return &SwiftExecutor{fee: fee}
}

func (e *SwiftExecutor) Execute(_ context.Context, p *domain.Payment) (Result, error) {
	fee := e.fee
	uetr := uuid.NewString()
	return Result{Changes: []statemachine.Change{func(next *domain.Payment) {
		next.Fees = fee
		next.UETR = &uetr
	}}}, nil
}

// MerchantExecutor records the settlement marker the merchant acquirer uses
// to reconcile the payment.
type MerchantExecutor struct{}

func (MerchantExecutor) Execute(_ context.Context, p *domain.Payment) (Result, error) {
	if p.MerchantID == nil || *p.MerchantID == "" {
		return Result{}, fmt.Errorf("MerchantExecutor.Execute: %w: merchant id missing", domain.ErrInvalidRequest)
	}

	short := strings.ToUpper(strings.ReplaceAll(p.ID.String(), "-", "")[:8])
	ref := fmt.Sprintf("MRC-%s-%s", *p.MerchantID, short)

	return Result{Changes: []statemachine.Change{func(next *domain.Payment) {
		next.ExternalTransactionID = &ref
		if next.Reference == nil && next.InvoiceReference != nil {
			invoice := *next.InvoiceReference
			next.Reference = &invoice
		}
	}}}, nil
}
