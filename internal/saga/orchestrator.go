package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/events"
	"github.com/josh-kwaku/payment-orchestrator/internal/fraud"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
)

const (
	awaitingSettlement = "awaiting settlement confirmation"
	detachedTimeout    = 2 * time.Minute
)

type ledgerClient interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ledgerPoster
}

type fraudChecker interface {
	Check(ctx context.Context, p *domain.Payment) (fraud.Result, error)
}

// ScreenOptions tunes the screening phase per payment type.
type ScreenOptions struct {
	// FailClosed rejects the payment when the fraud detector itself errors.
	// Otherwise the payment is held for strong customer authentication.
	FailClosed bool
}

// Orchestrator drives a payment through screen, reserve, execute and
// finalize, compensating when a later step fails.
type Orchestrator struct {
	machine     *statemachine.Machine
	ledger      ledgerClient
	fraud       fraudChecker
	publisher   events.Publisher
	compensator *Compensator
	executors   map[domain.PaymentType]Executor
	now         func() time.Time
}

func NewOrchestrator(
	machine *statemachine.Machine,
	ledger ledgerClient,
	fraud fraudChecker,
	publisher events.Publisher,
	executors map[domain.PaymentType]Executor,
) *Orchestrator {
	return &Orchestrator{
		machine:     machine,
		ledger:      ledger,
		fraud:       fraud,
		publisher:   publisher,
		compensator: NewCompensator(machine, ledger),
		executors:   executors,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Machine exposes the state machine the orchestrator records moves with.
func (o *Orchestrator) Machine() *statemachine.Machine {
	return o.machine
}

// ExecutePayment runs the whole saga on a freshly created payment.
func (o *Orchestrator) ExecutePayment(ctx context.Context, p *domain.Payment, opts ScreenOptions) domain.Outcome {
	if out, ok := o.Screen(ctx, p, opts); !ok {
		return out
	}
	return o.Proceed(ctx, p)
}

// Screen takes p from CREATED to AUTHORIZED. When it returns false the
// outcome is final for this request: the payment was refused, blocked, or
// is waiting for strong customer authentication.
func (o *Orchestrator) Screen(ctx context.Context, p *domain.Payment, opts ScreenOptions) (domain.Outcome, bool) {
	log := logging.FromContext(ctx)

	account, err := o.ledger.GetAccount(ctx, p.FromAccountID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return o.reject(ctx, p, domain.ErrAccountNotFound), false
	case err != nil:
		log.Error("source account lookup failed", "payment_id", p.ID, "error", err)
		out := o.reject(ctx, p, err)
		return domain.TechnicalFailure(out.Payment, err), false
	case !account.Active():
		return o.reject(ctx, p, domain.ErrAccountInactive), false
	case account.Balance.LessThan(p.Amount):
		return o.reject(ctx, p, domain.ErrInsufficientFunds), false
	}

	if err := o.machine.Transition(ctx, p, domain.PaymentStatusValidated); err != nil {
		return o.fail(ctx, p, err), false
	}

	result, err := o.fraud.Check(ctx, p)
	if err != nil {
		if opts.FailClosed {
			log.Error("fraud screening unavailable, rejecting", "payment_id", p.ID, "error", err)
			return o.reject(ctx, p, fmt.Errorf("fraud screening unavailable: %w", err)), false
		}
		log.Warn("fraud screening unavailable, holding for authentication", "payment_id", p.ID, "error", err)
		result = fraud.Result{Decision: fraud.DecisionRequireMFA}
	}

	switch result.Decision {
	case fraud.DecisionBlock:
		reason := fmt.Sprintf("%s: %s", domain.ErrFraudBlocked, strings.Join(result.Indicators, ","))
		if err := o.machine.Transition(ctx, p, domain.PaymentStatusRejected,
			statemachine.WithFailureReason(reason),
		); err != nil {
			return o.fail(ctx, p, err), false
		}
		o.publisher.Publish(ctx, events.FraudDetected(p, result.Indicators))
		o.publisher.Publish(ctx, events.PaymentFailed(p, reason, ErrorCode(domain.ErrFraudBlocked)))
		return domain.Blocked(p, result.Indicators), false

	case fraud.DecisionRequireMFA:
		if err := o.machine.Annotate(ctx, p, func(next *domain.Payment) { next.ScaRequired = true }); err != nil {
			return o.fail(ctx, p, err), false
		}
		log.Info("payment held for strong customer authentication",
			"payment_id", p.ID,
			"indicators", result.Indicators,
		)
		return domain.AuthorizationRequired(p, result.Indicators), false
	}

	if err := o.machine.Transition(ctx, p, domain.PaymentStatusAuthorized, func(next *domain.Payment) {
		next.FraudCheckPassed = true
	}); err != nil {
		return o.fail(ctx, p, err), false
	}
	return domain.Outcome{}, true
}

// Proceed reserves funds, runs the executor for p.Type and finalizes
// according to the type's completion policy. p must be AUTHORIZED.
func (o *Orchestrator) Proceed(ctx context.Context, p *domain.Payment) domain.Outcome {
	if p.Status != domain.PaymentStatusAuthorized {
		return domain.TechnicalFailure(p, fmt.Errorf("Proceed: payment is %s: %w", p.Status, domain.ErrInvalidStateTransition))
	}

	exec, ok := o.executors[p.Type]
	if !ok {
		return o.fail(ctx, p, fmt.Errorf("Proceed: no executor for %s", p.Type))
	}

	// Money moves from here on. A caller that goes away must not strand a debit.
	ctx, cancel := detach(ctx)
	defer cancel()

	if out, ok := o.reserve(ctx, p); !ok {
		return out
	}

	result, err := exec.Execute(ctx, p)
	if err != nil {
		return o.fail(ctx, p, err)
	}

	if err := o.machine.Transition(ctx, p, domain.PaymentStatusSent, result.Changes...); err != nil {
		// The external step already happened; compensate with its refs.
		return o.fail(ctx, applied(p, result.Changes), err)
	}

	return o.finalize(ctx, p, result.Settled)
}

// Resume continues a payment that passed strong customer authentication.
func (o *Orchestrator) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	return o.Proceed(ctx, p)
}

// Settle completes a SENT payment after the clearing system confirmed it.
func (o *Orchestrator) Settle(ctx context.Context, p *domain.Payment, externalRef string) domain.Outcome {
	if p.Status != domain.PaymentStatusSent {
		return domain.TechnicalFailure(p, fmt.Errorf("Settle: payment is %s: %w", p.Status, domain.ErrInvalidStateTransition))
	}
	if err := o.machine.Transition(ctx, p, domain.PaymentStatusSettled, func(next *domain.Payment) {
		if externalRef != "" {
			next.ExternalTransactionID = &externalRef
		}
	}); err != nil {
		return o.fail(ctx, p, err)
	}
	return o.complete(ctx, p)
}

// RejectSettlement compensates a SENT payment the clearing system refused.
func (o *Orchestrator) RejectSettlement(ctx context.Context, p *domain.Payment, reason string) domain.Outcome {
	if p.Status != domain.PaymentStatusSent {
		return domain.TechnicalFailure(p, fmt.Errorf("RejectSettlement: payment is %s: %w", p.Status, domain.ErrInvalidStateTransition))
	}
	return o.fail(ctx, p, &ExternalError{Reason: reason, Err: domain.ErrClearingRejected})
}

// Reject moves p to REJECTED and publishes payment.failed. Used for refusals
// decided outside the saga, such as a failed OTP.
func (o *Orchestrator) Reject(ctx context.Context, p *domain.Payment, cause error) domain.Outcome {
	return o.reject(ctx, p, cause)
}

// Fail runs the global failure handling for p.
func (o *Orchestrator) Fail(ctx context.Context, p *domain.Payment, cause error) domain.Outcome {
	return o.fail(ctx, p, cause)
}

func (o *Orchestrator) reserve(ctx context.Context, p *domain.Payment) (domain.Outcome, bool) {
	log := logging.FromContext(ctx)

	posting := domain.Posting{
		AccountID:      p.FromAccountID,
		EntryType:      domain.EntryTypeDebit,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  p.TransactionID,
		IdempotencyKey: p.IdempotencyKey,
		Description:    debitDescription(p),
	}

	receipt, err := o.ledger.Debit(ctx, posting)
	if err != nil && !isBusinessRejection(err) {
		log.Warn("debit failed, retrying with same idempotency key", "payment_id", p.ID, "error", err)
		receipt, err = o.ledger.Debit(ctx, posting)
	}
	if err != nil {
		if isBusinessRejection(err) {
			return o.reject(ctx, p, err), false
		}
		log.Error("debit outcome unknown, manual reconciliation required",
			"payment_id", p.ID,
			"transaction_id", p.TransactionID,
			"idempotency_key", p.IdempotencyKey,
			"error", err,
		)
		return o.fail(ctx, p, err), false
	}

	debitRef := receipt.TransactionID
	debited := func(next *domain.Payment) { next.DebitTransactionID = &debitRef }
	if err := o.machine.Transition(ctx, p, domain.PaymentStatusReserved, debited); err != nil {
		return o.fail(ctx, applied(p, []statemachine.Change{debited}), err), false
	}

	log.Info("funds reserved", "payment_id", p.ID, "debit_transaction_id", debitRef)
	return domain.Outcome{}, true
}

func (o *Orchestrator) finalize(ctx context.Context, p *domain.Payment, settled bool) domain.Outcome {
	switch PolicyFor(p.Type) {
	case ViaSettlement:
		if !settled {
			return domain.Success(p, awaitingSettlement)
		}
		if err := o.machine.Transition(ctx, p, domain.PaymentStatusSettled); err != nil {
			return o.fail(ctx, p, err)
		}
	case AwaitSettlement:
		logging.FromContext(ctx).Info("payment sent, awaiting settlement", "payment_id", p.ID)
		return domain.Success(p, awaitingSettlement)
	}
	return o.complete(ctx, p)
}

func (o *Orchestrator) complete(ctx context.Context, p *domain.Payment) domain.Outcome {
	if err := o.machine.Transition(ctx, p, domain.PaymentStatusCompleted,
		statemachine.WithCompletedAt(o.now()),
	); err != nil {
		return o.fail(ctx, p, err)
	}
	o.publisher.Publish(ctx, events.TransactionCompleted(p))
	return domain.Success(p, "payment completed")
}

func (o *Orchestrator) reject(ctx context.Context, p *domain.Payment, cause error) domain.Outcome {
	reason := cause.Error()
	if err := o.machine.Transition(ctx, p, domain.PaymentStatusRejected,
		statemachine.WithFailureReason(reason),
	); err != nil {
		logging.FromContext(ctx).Error("could not record rejection",
			"payment_id", p.ID,
			"cause", cause,
			"error", err,
		)
		return domain.TechnicalFailure(p, err)
	}
	o.publisher.Publish(ctx, events.PaymentFailed(p, reason, ErrorCode(cause)))
	return domain.Rejected(p, cause)
}

// fail is the single failure path once a payment exists: compensate when a
// debit is outstanding, otherwise mark FAILED.
func (o *Orchestrator) fail(ctx context.Context, p *domain.Payment, cause error) domain.Outcome {
	ctx, cancel := detach(ctx)
	defer cancel()

	log := logging.FromContext(ctx)
	reason := cause.Error()
	code := ErrorCode(cause)

	switch {
	case Needed(p):
		if err := o.compensator.Compensate(ctx, p, reason); err != nil {
			code = ErrorCode(err)
			o.publisher.Publish(ctx, events.PaymentFailed(p, reason, code))
			return domain.TechnicalFailure(p, err)
		}
	case p.Status == domain.PaymentStatusSettled:
		log.Error("settled payment cannot be compensated",
			"severity", "CRITICAL",
			"payment_id", p.ID,
			"cause", cause,
		)
		return domain.TechnicalFailure(p, cause)
	case statemachine.CanTransition(p.Status, domain.PaymentStatusFailed):
		if err := o.machine.Transition(ctx, p, domain.PaymentStatusFailed,
			statemachine.WithFailureReason(reason),
		); err != nil {
			log.Error("could not record failure", "payment_id", p.ID, "cause", cause, "error", err)
		}
	default:
		log.Warn("payment failure left in current state", "payment_id", p.ID, "status", p.Status, "cause", cause)
	}

	o.publisher.Publish(ctx, events.PaymentFailed(p, reason, code))

	if isBusinessRejection(cause) {
		return domain.Rejected(p, cause)
	}
	return domain.TechnicalFailure(p, cause)
}

// detach keeps ctx values such as the request logger but drops the caller's
// cancellation, bounding the remaining work by detachedTimeout instead.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}

// applied writes changes onto p in memory, for when an external effect
// happened but its move could not be recorded.
func applied(p *domain.Payment, changes []statemachine.Change) *domain.Payment {
	for _, c := range changes {
		c(p)
	}
	return p
}

func debitDescription(p *domain.Payment) string {
	if p.Description != nil && *p.Description != "" {
		return *p.Description
	}
	return fmt.Sprintf("%s %s", p.Type, p.TransactionID)
}
