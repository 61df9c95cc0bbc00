package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/auth"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/workflow"
)

type paymentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error)
}

type transitionRepo interface {
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transition, error)
}

type strategyRegistry interface {
	Lookup(t domain.PaymentType) (workflow.Strategy, error)
}

// Service is the entry point for payment operations. It routes requests to
// the workflow for their type and owns the operations that act on an
// existing payment.
type Service struct {
	payments    paymentRepo
	transitions transitionRepo
	registry    strategyRegistry
	orch        *saga.Orchestrator
	otp         auth.OTPVerifier
}

func NewService(
	payments paymentRepo,
	transitions transitionRepo,
	registry strategyRegistry,
	orch *saga.Orchestrator,
	otp auth.OTPVerifier,
) *Service {
	return &Service{
		payments:    payments,
		transitions: transitions,
		registry:    registry,
		orch:        orch,
		otp:         otp,
	}
}

func (s *Service) CreatePayment(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	strategy, err := s.registry.Lookup(req.Type)
	if err != nil {
		return domain.Rejected(nil, err)
	}

	out := strategy.Execute(ctx, req)
	logOutcome(ctx, "payment processed", out)
	return out
}

// AuthorizePayment completes step-up authentication for a payment held in
// VALIDATED. A wrong code rejects the payment; there is no retry.
func (s *Service) AuthorizePayment(ctx context.Context, userID, paymentID uuid.UUID, otpCode string) domain.Outcome {
	p, err := s.GetPaymentForUser(ctx, paymentID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Rejected(nil, domain.ErrNotFound)
		}
		return domain.TechnicalFailure(nil, fmt.Errorf("AuthorizePayment: %w", err))
	}

	if p.Status != domain.PaymentStatusValidated || !p.ScaRequired {
		return domain.Rejected(p, domain.ErrScaNotRequired)
	}

	if err := s.otp.Verify(otpCode); err != nil {
		if !errors.Is(err, domain.ErrInvalidOTP) {
			return domain.TechnicalFailure(p, fmt.Errorf("AuthorizePayment: %w", err))
		}
		logging.FromContext(ctx).Warn("sca verification failed", "payment_id", p.ID, "user_id", userID)
		out := s.orch.Reject(ctx, p, domain.ErrInvalidOTP)
		logOutcome(ctx, "payment authorization refused", out)
		return out
	}

	if err := s.orch.Machine().Transition(ctx, p, domain.PaymentStatusAuthorized, func(next *domain.Payment) {
		next.ScaVerified = true
	}); err != nil {
		return s.orch.Fail(ctx, p, fmt.Errorf("AuthorizePayment: %w", err))
	}

	strategy, err := s.registry.Lookup(p.Type)
	if err != nil {
		return s.orch.Fail(ctx, p, fmt.Errorf("AuthorizePayment: %w", err))
	}

	out := strategy.Resume(ctx, p)
	logOutcome(ctx, "payment authorized", out)
	return out
}

func (s *Service) GetPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentByID: %w", err)
	}
	return p, nil
}

// GetPaymentForUser hides payments owned by someone else behind ErrNotFound.
func (s *Service) GetPaymentForUser(ctx context.Context, paymentID, userID uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetPaymentForUser: %w", err)
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("GetPaymentForUser: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (s *Service) GetUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	payments, err := s.payments.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("GetUserPayments: %w", err)
	}
	return payments, nil
}

func (s *Service) GetTransitions(ctx context.Context, paymentID, userID uuid.UUID) ([]domain.Transition, error) {
	if _, err := s.GetPaymentForUser(ctx, paymentID, userID); err != nil {
		return nil, fmt.Errorf("GetTransitions: %w", err)
	}
	transitions, err := s.transitions.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetTransitions: %w", err)
	}
	return transitions, nil
}

// ConfirmSettlement completes a SENT payment once clearing confirms it.
func (s *Service) ConfirmSettlement(ctx context.Context, paymentID uuid.UUID, externalRef string) (domain.Outcome, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("ConfirmSettlement: %w", err)
	}
	if p.Status.Terminal() {
		return domain.Outcome{}, fmt.Errorf("ConfirmSettlement: %w", domain.ErrPaymentTerminal)
	}

	out := s.orch.Settle(ctx, p, externalRef)
	logOutcome(ctx, "settlement confirmed", out)
	return out, nil
}

// FailSettlement compensates a SENT payment that clearing rejected.
func (s *Service) FailSettlement(ctx context.Context, paymentID uuid.UUID, reason string) (domain.Outcome, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("FailSettlement: %w", err)
	}
	if p.Status.Terminal() {
		return domain.Outcome{}, fmt.Errorf("FailSettlement: %w", domain.ErrPaymentTerminal)
	}

	out := s.orch.RejectSettlement(ctx, p, reason)
	logOutcome(ctx, "settlement rejected", out)
	return out, nil
}

func logOutcome(ctx context.Context, msg string, out domain.Outcome) {
	args := []any{"outcome", out.Kind}
	if out.Payment != nil {
		args = append(args,
			"payment_id", out.Payment.ID,
			"transaction_id", out.Payment.TransactionID,
			"status", out.Payment.Status,
		)
	}
	if out.Replayed {
		args = append(args, "replayed", true)
	}

	log := logging.FromContext(ctx)
	if out.Kind == domain.OutcomeTechnicalFailure {
		log.Error(msg, append(args, "error", out.Err)...)
		return
	}
	log.Info(msg, args...)
}
