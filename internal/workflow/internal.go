package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
)

const creditPrefix = "CRD-"

type accountPoster interface {
	Credit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error)
}

type internalStrategy struct {
	intake *Intake
	orch   *saga.Orchestrator
}

func (s *internalStrategy) Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	p, out, ok := s.intake.Admit(ctx, req, admission{resolve: s.resolveDestination})
	if !ok {
		return out
	}
	return s.orch.ExecutePayment(ctx, p, saga.ScreenOptions{})
}

func (s *internalStrategy) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	return s.orch.Resume(ctx, p)
}

func (s *internalStrategy) resolveDestination(ctx context.Context, req *domain.PaymentRequest, p *domain.Payment, source *domain.Account) error {
	var (
		dest *domain.Account
		err  error
	)
	if req.ToAccountID != nil {
		dest, err = s.intake.accounts.GetAccount(ctx, *req.ToAccountID)
	} else {
		dest, err = s.intake.accounts.GetAccountByNumber(ctx, *req.ToAccountNumber)
	}
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("resolveDestination: %w", domain.ErrRecipientNotFound)
		}
		return fmt.Errorf("resolveDestination: %w", err)
	}

	if dest.ID == source.ID {
		return fmt.Errorf("resolveDestination: %w", domain.ErrSelfTransfer)
	}
	if !dest.Active() {
		return fmt.Errorf("resolveDestination: recipient: %w", domain.ErrAccountInactive)
	}

	p.ToAccountID = &dest.ID
	number := dest.AccountNumber
	p.ToAccountNumber = &number
	return nil
}

// InternalExecutor credits the destination account of an internal transfer.
type InternalExecutor struct {
	ledger accountPoster
}

func (e *InternalExecutor) Execute(ctx context.Context, p *domain.Payment) (saga.Result, error) {
	if p.ToAccountID == nil {
		return saga.Result{}, fmt.Errorf("InternalExecutor.Execute: %w: destination missing", domain.ErrInvalidRequest)
	}

	receipt, err := e.ledger.Credit(ctx, domain.Posting{
		AccountID:      *p.ToAccountID,
		EntryType:      domain.EntryTypeCredit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  creditPrefix + p.TransactionID,
		IdempotencyKey: creditPrefix + p.IdempotencyKey,
		Description:    "Internal transfer " + p.TransactionID,
	})
	if err != nil {
		return saga.Result{}, fmt.Errorf("InternalExecutor.Execute: credit: %w", err)
	}

	ref := receipt.TransactionID
	return saga.Result{Changes: []statemachine.Change{func(next *domain.Payment) {
		next.CreditTransactionID = &ref
	}}}, nil
}
