package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
)

// Strategy runs one payment type from request to outcome.
type Strategy interface {
	Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome
	// Resume continues a payment that was held for strong customer
	// authentication and is now AUTHORIZED.
	Resume(ctx context.Context, p *domain.Payment) domain.Outcome
}

type Registry map[domain.PaymentType]Strategy

func (r Registry) Lookup(t domain.PaymentType) (Strategy, error) {
	s, ok := r[t]
	if !ok {
		return nil, fmt.Errorf("Lookup: %w: unsupported payment type %q", domain.ErrInvalidRequest, t)
	}
	return s, nil
}

type Settings struct {
	InstantMaxAmount decimal.Decimal
	InstantTimeout   time.Duration
	OperatorTimeout  time.Duration
	SwiftFee         decimal.Decimal
	SEPACutoff       time.Duration
	SEPALocation     *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

func (s Settings) clock() func() time.Time {
	if s.Now != nil {
		return s.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

func (s Settings) location() *time.Location {
	if s.SEPALocation != nil {
		return s.SEPALocation
	}
	return time.UTC
}

// Collaborators are the external systems the executors call.
type Collaborators struct {
	Ledger    accountPoster
	Clearing  clearingSubmitter
	Operators recharger
}

// Executors builds the per-type execute step used by the saga.
func Executors(c Collaborators, s Settings) map[domain.PaymentType]saga.Executor {
	return map[domain.PaymentType]saga.Executor{
		domain.PaymentTypeInternalTransfer: &InternalExecutor{ledger: c.Ledger},
		domain.PaymentTypeSEPATransfer:     &SEPAExecutor{clearing: c.Clearing, loc: s.location(), now: s.clock()},
		domain.PaymentTypeInstantTransfer:  &InstantExecutor{clearing: c.Clearing, timeout: s.InstantTimeout},
		domain.PaymentTypeMobileRecharge:   &MobileExecutor{gateway: c.Operators, timeout: s.OperatorTimeout},
		domain.PaymentTypeSwiftTransfer:    saga.NewSwiftExecutor(s.SwiftFee),
		domain.PaymentTypeMerchantPayment:  saga.MerchantExecutor{},
	}
}

// NewRegistry wires one strategy per payment type. SWIFT and merchant
// payments share the generic saga.
func NewRegistry(intake *Intake, orch *saga.Orchestrator, s Settings) Registry {
	generic := &genericStrategy{intake: intake, orch: orch}
	return Registry{
		domain.PaymentTypeInternalTransfer: &internalStrategy{intake: intake, orch: orch},
		domain.PaymentTypeSEPATransfer: &sepaStrategy{
			intake: intake,
			orch:   orch,
			cutoff: s.SEPACutoff,
			loc:    s.location(),
			now:    s.clock(),
		},
		domain.PaymentTypeInstantTransfer: &instantStrategy{intake: intake, orch: orch, maxAmount: s.InstantMaxAmount},
		domain.PaymentTypeMobileRecharge:  &mobileStrategy{intake: intake, orch: orch},
		domain.PaymentTypeSwiftTransfer:   generic,
		domain.PaymentTypeMerchantPayment: generic,
	}
}
