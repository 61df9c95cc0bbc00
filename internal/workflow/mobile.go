package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
	"github.com/josh-kwaku/payment-orchestrator/internal/telco"
)

type recharger interface {
	Recharge(ctx context.Context, req telco.RechargeRequest) (*telco.RechargeResult, error)
}

type mobileStrategy struct {
	intake *Intake
	orch   *saga.Orchestrator
}

func (s *mobileStrategy) Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	p, out, ok := s.intake.Admit(ctx, req, admission{
		precheck: func(req *domain.PaymentRequest) error {
			_, err := detectOperator(req)
			return err
		},
		resolve: func(_ context.Context, req *domain.PaymentRequest, p *domain.Payment, _ *domain.Account) error {
			op, err := detectOperator(req)
			if err != nil {
				return err
			}
			national, err := telco.NormalizeFR(*req.PhoneNumber)
			if err != nil {
				return err
			}
			code := string(op)
			p.OperatorCode = &code
			p.PhoneNumber = &national
			return nil
		},
	})
	if !ok {
		return out
	}
	return s.orch.ExecutePayment(ctx, p, saga.ScreenOptions{})
}

func (s *mobileStrategy) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	return s.orch.Resume(ctx, p)
}

func detectOperator(req *domain.PaymentRequest) (telco.Operator, error) {
	var country string
	if req.CountryCode != nil {
		country = *req.CountryCode
	}
	op, err := telco.DetectOperator(*req.PhoneNumber, country)
	if err != nil {
		return "", fmt.Errorf("detectOperator: %w", err)
	}
	return op, nil
}

// MobileExecutor tops up the prepaid line through the operator gateway.
type MobileExecutor struct {
	gateway recharger
	timeout time.Duration
}

func (e *MobileExecutor) Execute(ctx context.Context, p *domain.Payment) (saga.Result, error) {
	if p.OperatorCode == nil || p.PhoneNumber == nil {
		return saga.Result{}, fmt.Errorf("MobileExecutor.Execute: %w: operator or phone missing", domain.ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.gateway.Recharge(ctx, telco.RechargeRequest{
		Operator:       telco.Operator(*p.OperatorCode),
		PhoneNumber:    *p.PhoneNumber,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  p.TransactionID,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return saga.Result{}, &saga.ExternalError{
				Code:   "OPERATOR_TIMEOUT",
				Reason: fmt.Sprintf("operator did not answer within %s", e.timeout),
				Err:    domain.ErrOperatorRejected,
			}
		}
		if errors.Is(err, domain.ErrOperatorRejected) {
			reason := err.Error()
			if res != nil && res.Message != "" {
				reason = res.Message
			}
			return saga.Result{}, &saga.ExternalError{Code: "OPERATOR_REJECTED", Reason: reason, Err: domain.ErrOperatorRejected}
		}
		return saga.Result{}, fmt.Errorf("MobileExecutor.Execute: %w", err)
	}

	ref := res.OperatorReference
	return saga.Result{Changes: []statemachine.Change{func(next *domain.Payment) {
		if ref != "" {
			next.ExternalTransactionID = &ref
		}
	}}}, nil
}
