package saga

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
)

const (
	compensationPrefix = "COMP-"
	reversalPrefix     = "REV-"
)

type ledgerPoster interface {
	Debit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error)
	Credit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error)
}

// Compensator credits a failed payment's debit back to its source account.
type Compensator struct {
	machine *statemachine.Machine
	ledger  ledgerPoster
}

func NewCompensator(machine *statemachine.Machine, ledger ledgerPoster) *Compensator {
	return &Compensator{machine: machine, ledger: ledger}
}

// Needed reports whether p holds a debit that has not been credited back.
// Terminal payments are never compensated here; a FAILED payment with
// CompensationPending set is left for manual reconciliation.
func Needed(p *domain.Payment) bool {
	return p.DebitTransactionID != nil &&
		p.CompensationTransactionID == nil &&
		!p.Status.Terminal()
}

// Compensate reverses the physical effects of p and moves it to COMPENSATED,
// or to FAILED when COMPENSATED is not reachable from its current state.
// A failed credit-back leaves the payment FAILED with CompensationPending set
// and returns domain.ErrCompensationFailed. It is a no-op when Needed is false.
func (c *Compensator) Compensate(ctx context.Context, p *domain.Payment, reason string) error {
	log := logging.FromContext(ctx)

	if !Needed(p) {
		return nil
	}

	reversed := true
	if p.Type == domain.PaymentTypeInternalTransfer && p.CreditTransactionID != nil && p.ToAccountID != nil {
		reversed = c.reverseInternalCredit(ctx, p)
	}

	receipt, err := c.ledger.Credit(ctx, domain.Posting{
		AccountID:      p.FromAccountID,
		EntryType:      domain.EntryTypeCredit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  compensationPrefix + p.TransactionID,
		IdempotencyKey: compensationPrefix + p.IdempotencyKey,
		Description:    "Compensation for failed payment: " + p.TransactionID,
	})
	if err != nil {
		log.Error("compensation credit failed, funds debited but not returned",
			"severity", "CRITICAL",
			"alert", "compensation_failed",
			"payment_id", p.ID,
			"transaction_id", p.TransactionID,
			"account_id", p.FromAccountID,
			"amount", p.Amount.StringFixed(2),
			"currency", p.Currency,
			"debit_transaction_id", *p.DebitTransactionID,
			"error", err,
		)

		failure := fmt.Sprintf("compensation failed: %s (original failure: %s)", err, reason)
		if statemachine.CanTransition(p.Status, domain.PaymentStatusFailed) {
			if terr := c.machine.Transition(ctx, p, domain.PaymentStatusFailed,
				statemachine.WithFailureReason(failure),
				func(next *domain.Payment) { next.CompensationPending = true },
			); terr != nil {
				log.Error("could not record pending compensation",
					"severity", "CRITICAL",
					"payment_id", p.ID,
					"error", terr,
				)
			}
		}
		return fmt.Errorf("Compensate: %w: %v", domain.ErrCompensationFailed, err)
	}

	target := domain.PaymentStatusCompensated
	if !statemachine.CanTransition(p.Status, target) {
		target = domain.PaymentStatusFailed
	}

	compRef := receipt.TransactionID
	if err := c.machine.Transition(ctx, p, target,
		statemachine.WithFailureReason(reason),
		func(next *domain.Payment) {
			next.CompensationTransactionID = &compRef
			next.CompensationPending = !reversed
		},
	); err != nil {
		log.Error("compensation credited but state not recorded",
			"severity", "CRITICAL",
			"payment_id", p.ID,
			"compensation_transaction_id", compRef,
			"error", err,
		)
		return fmt.Errorf("Compensate: %w", err)
	}

	log.Info("payment compensated",
		"payment_id", p.ID,
		"transaction_id", p.TransactionID,
		"compensation_transaction_id", compRef,
		"status", p.Status,
	)
	return nil
}

// reverseInternalCredit takes back the destination leg of an internal
// transfer. A failure does not stop the source credit-back, but the payment
// is flagged for reconciliation since both accounts now hold the amount.
func (c *Compensator) reverseInternalCredit(ctx context.Context, p *domain.Payment) bool {
	_, err := c.ledger.Debit(ctx, domain.Posting{
		AccountID:      *p.ToAccountID,
		EntryType:      domain.EntryTypeDebit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  reversalPrefix + p.TransactionID,
		IdempotencyKey: reversalPrefix + p.IdempotencyKey,
		Description:    "Reversal of credit for failed payment: " + p.TransactionID,
	})
	if err != nil {
		logging.FromContext(ctx).Error("internal credit reversal failed, destination still holds funds",
			"severity", "CRITICAL",
			"alert", "compensation_failed",
			"payment_id", p.ID,
			"transaction_id", p.TransactionID,
			"to_account_id", *p.ToAccountID,
			"amount", p.Amount.StringFixed(2),
			"currency", p.Currency,
			"credit_transaction_id", *p.CreditTransactionID,
			"error", err,
		)
		return false
	}
	return true
}
