package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/clearing"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
)

type instantStrategy struct {
	intake    *Intake
	orch      *saga.Orchestrator
	maxAmount decimal.Decimal
}

func (s *instantStrategy) Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	p, out, ok := s.intake.Admit(ctx, req, admission{
		precheck: s.checkCeiling,
		resolve: func(_ context.Context, _ *domain.PaymentRequest, p *domain.Payment, source *domain.Account) error {
			return sourceIBAN(p, source)
		},
	})
	if !ok {
		return out
	}
	return s.orch.ExecutePayment(ctx, p, saga.ScreenOptions{FailClosed: true})
}

func (s *instantStrategy) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	return s.orch.Resume(ctx, p)
}

func (s *instantStrategy) checkCeiling(req *domain.PaymentRequest) error {
	if req.Amount.GreaterThan(s.maxAmount) {
		return fmt.Errorf("checkCeiling: %s > %s: %w", req.Amount.StringFixed(2), s.maxAmount.StringFixed(2), domain.ErrInstantLimitExceeded)
	}
	return nil
}

// InstantExecutor submits an SCT Inst transfer and waits for the scheme
// answer within the instant settlement window.
type InstantExecutor struct {
	clearing clearingSubmitter
	timeout  time.Duration
}

func (e *InstantExecutor) Execute(ctx context.Context, p *domain.Payment) (saga.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.clearing.SubmitInstant(ctx, clearing.FromPayment(p))
	if err != nil {
		if errors.Is(err, domain.ErrClearingTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return saga.Result{}, &saga.ExternalError{
				Code:   "CLEARING_TIMEOUT",
				Reason: fmt.Sprintf("no answer within %s", e.timeout),
				Err:    domain.ErrClearingTimeout,
			}
		}
		return saga.Result{}, fmt.Errorf("InstantExecutor.Execute: %w", err)
	}

	switch res.Status {
	case clearing.StatusAck:
		return saga.Result{Changes: clearingRefs(res)}, nil
	case clearing.StatusTimeout:
		return saga.Result{}, &saga.ExternalError{Code: "CLEARING_TIMEOUT", Reason: res.Message, Err: domain.ErrClearingTimeout}
	}

	code := res.ErrorCode
	if code == "" {
		code = "INSTANT_REJECTED"
	}
	return saga.Result{}, &saga.ExternalError{Code: code, Reason: res.RejectionReason, Err: domain.ErrClearingRejected}
}
