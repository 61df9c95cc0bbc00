package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
	"github.com/josh-kwaku/payment-orchestrator/internal/validation"
)

type paymentLookup interface {
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
}

type requestValidator interface {
	Validate(ctx context.Context, req *domain.PaymentRequest) error
}

type accountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
}

// Intake turns a request into a recorded CREATED payment, or refuses it
// before anything is written.
type Intake struct {
	payments  paymentLookup
	validator requestValidator
	accounts  accountReader
	machine   *statemachine.Machine
}

func NewIntake(payments paymentLookup, validator requestValidator, accounts accountReader, machine *statemachine.Machine) *Intake {
	return &Intake{
		payments:  payments,
		validator: validator,
		accounts:  accounts,
		machine:   machine,
	}
}

// admission holds the type-specific intake hooks.
type admission struct {
	// precheck runs before any collaborator is called.
	precheck func(req *domain.PaymentRequest) error
	// resolve fills in counterpart fields once the source account is known.
	resolve func(ctx context.Context, req *domain.PaymentRequest, p *domain.Payment, source *domain.Account) error
}

// Admit records the payment. When ok is false the outcome is final: the
// request was a replay or was refused, and no new payment exists.
func (in *Intake) Admit(ctx context.Context, req *domain.PaymentRequest, a admission) (*domain.Payment, domain.Outcome, bool) {
	log := logging.FromContext(ctx)

	if err := validation.CheckSyntax(req); err != nil {
		return nil, domain.Rejected(nil, err), false
	}

	if out, done := in.replay(ctx, req); done {
		return nil, out, false
	}

	if a.precheck != nil {
		if err := a.precheck(req); err != nil {
			log.Info("payment refused", "type", req.Type, "reason", err)
			return nil, domain.Rejected(nil, err), false
		}
	}

	if err := in.validator.Validate(ctx, req); err != nil {
		log.Info("payment refused", "type", req.Type, "reason", err)
		return nil, refusal(nil, err), false
	}

	source, err := in.accounts.GetAccount(ctx, req.FromAccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.Rejected(nil, domain.ErrAccountNotFound), false
		}
		return nil, domain.TechnicalFailure(nil, fmt.Errorf("Admit: %w", err)), false
	}
	if source.UserID != req.UserID {
		log.Warn("source account not owned by caller", "account_id", source.ID, "user_id", req.UserID)
		return nil, domain.Rejected(nil, domain.ErrForbidden), false
	}

	p := newPayment(req)
	if a.resolve != nil {
		if err := a.resolve(ctx, req, p, source); err != nil {
			log.Info("payment refused", "type", req.Type, "reason", err)
			return nil, refusal(nil, err), false
		}
	}

	if err := in.machine.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// Lost the race with a concurrent request carrying the same key.
			if out, done := in.replay(ctx, req); done {
				return nil, out, false
			}
		}
		return nil, domain.TechnicalFailure(nil, fmt.Errorf("Admit: %w", err)), false
	}

	return p, domain.Outcome{}, true
}

// replay reports whether the idempotency key was already used and, if so,
// the outcome to return for it.
func (in *Intake) replay(ctx context.Context, req *domain.PaymentRequest) (domain.Outcome, bool) {
	existing, err := in.payments.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.Outcome{}, false
	case err != nil:
		return domain.TechnicalFailure(nil, fmt.Errorf("replay: %w", err)), true
	}

	if !sameIntent(existing, req) {
		logging.FromContext(ctx).Warn("idempotency key reused with a different request",
			"idempotency_key", req.IdempotencyKey,
			"payment_id", existing.ID,
		)
		return domain.Rejected(nil, domain.ErrIdempotencyConflict), true
	}

	logging.FromContext(ctx).Info("idempotent replay",
		"idempotency_key", req.IdempotencyKey,
		"payment_id", existing.ID,
		"status", existing.Status,
	)
	return domain.Replay(existing), true
}

func sameIntent(p *domain.Payment, req *domain.PaymentRequest) bool {
	return p.UserID == req.UserID &&
		p.FromAccountID == req.FromAccountID &&
		p.Amount.Equal(req.Amount) &&
		p.Currency == req.Currency &&
		p.Type == req.Type
}

func newPayment(req *domain.PaymentRequest) *domain.Payment {
	p := &domain.Payment{
		ID:                  uuid.New(),
		TransactionID:       uuid.NewString(),
		IdempotencyKey:      req.IdempotencyKey,
		Type:                req.Type,
		UserID:              req.UserID,
		FromAccountID:       req.FromAccountID,
		ToAccountID:         req.ToAccountID,
		ToAccountNumber:     req.ToAccountNumber,
		BeneficiaryName:     req.BeneficiaryName,
		BeneficiarySwiftBIC: req.BeneficiarySwiftBIC,
		PhoneNumber:         req.PhoneNumber,
		MerchantID:          req.MerchantID,
		InvoiceReference:    req.InvoiceReference,
		Amount:              req.Amount,
		Currency:            req.Currency,
		Fees:                decimal.Zero,
		Reference:           req.EndToEndID,
		Description:         req.Description,
		IPAddress:           req.IPAddress,
		UserAgent:           req.UserAgent,
	}
	if req.ToIBAN != nil {
		iban := validation.NormalizeIBAN(*req.ToIBAN)
		p.ToIBAN = &iban
	}
	if req.CorrelationID != "" {
		corr := req.CorrelationID
		p.CorrelationID = &corr
	}
	return p
}

var refusals = []error{
	domain.ErrInvalidRequest,
	domain.ErrInvalidAmount,
	domain.ErrInvalidCurrency,
	domain.ErrLimitExceeded,
	domain.ErrSanctionsHit,
	domain.ErrRecipientNotFound,
	domain.ErrAccountNotFound,
	domain.ErrAccountInactive,
	domain.ErrSelfTransfer,
	domain.ErrForbidden,
	domain.ErrMissingSourceIBAN,
	domain.ErrInvalidPhoneNumber,
	domain.ErrUnknownOperator,
}

// refusal classifies an intake error as a business refusal or a fault.
func refusal(p *domain.Payment, err error) domain.Outcome {
	for _, target := range refusals {
		if errors.Is(err, target) {
			return domain.Rejected(p, err)
		}
	}
	return domain.TechnicalFailure(p, err)
}

// sourceIBAN copies the source account IBAN onto p, which clearing needs.
func sourceIBAN(p *domain.Payment, source *domain.Account) error {
	if source.IBAN == nil || *source.IBAN == "" {
		return fmt.Errorf("sourceIBAN: %w", domain.ErrMissingSourceIBAN)
	}
	iban := validation.NormalizeIBAN(*source.IBAN)
	p.FromIBAN = &iban
	return nil
}
