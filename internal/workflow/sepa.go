package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/josh-kwaku/payment-orchestrator/internal/clearing"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
)

const (
	batchDelay    = 24 * time.Hour
	queuedMessage = "Payment queued for next batch processing"
)

type clearingSubmitter interface {
	SubmitSEPA(ctx context.Context, t clearing.Transfer) (*clearing.Result, error)
	SubmitInstant(ctx context.Context, t clearing.Transfer) (*clearing.Result, error)
}

type sepaStrategy struct {
	intake *Intake
	orch   *saga.Orchestrator
	cutoff time.Duration
	loc    *time.Location
	now    func() time.Time
}

func (s *sepaStrategy) Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	p, out, ok := s.intake.Admit(ctx, req, admission{
		resolve: func(_ context.Context, _ *domain.PaymentRequest, p *domain.Payment, source *domain.Account) error {
			return sourceIBAN(p, source)
		},
	})
	if !ok {
		return out
	}

	if out, ok := s.orch.Screen(ctx, p, saga.ScreenOptions{}); !ok {
		return out
	}
	return s.Resume(ctx, p)
}

// Resume re-checks the cut-off, since authentication may complete after it.
func (s *sepaStrategy) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	if s.afterCutoff() {
		return s.queue(ctx, p)
	}
	return s.orch.Proceed(ctx, p)
}

func (s *sepaStrategy) afterCutoff() bool {
	local := s.now().In(s.loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return local.Sub(midnight) > s.cutoff
}

// queue parks an AUTHORIZED payment for the next clearing batch. No funds
// move until the batch runs.
func (s *sepaStrategy) queue(ctx context.Context, p *domain.Payment) domain.Outcome {
	eta := s.now().Add(batchDelay)
	if err := s.orch.Machine().Transition(ctx, p, domain.PaymentStatusReserved, func(next *domain.Payment) {
		next.EstimatedCompletionDate = &eta
	}); err != nil {
		return s.orch.Fail(ctx, p, err)
	}

	logging.FromContext(ctx).Info("sepa transfer queued after cut-off",
		"payment_id", p.ID,
		"estimated_completion", eta,
	)
	return domain.Success(p, queuedMessage)
}

// SEPAExecutor submits a reserved transfer to the clearing adapter.
type SEPAExecutor struct {
	clearing clearingSubmitter
	loc      *time.Location
	now      func() time.Time
}

func (e *SEPAExecutor) Execute(ctx context.Context, p *domain.Payment) (saga.Result, error) {
	transfer := clearing.FromPayment(p)
	transfer.ExecutionDate = e.now().In(e.loc).Format(time.DateOnly)

	res, err := e.clearing.SubmitSEPA(ctx, transfer)
	if err != nil {
		return saga.Result{}, fmt.Errorf("SEPAExecutor.Execute: %w", err)
	}

	if res.Status == clearing.StatusAccepted {
		return saga.Result{Changes: clearingRefs(res), Settled: true}, nil
	}

	// Anything short of ACCEPTED is a rejection; the debit is compensated.
	code := res.ErrorCode
	if code == "" {
		code = "SEPA_REJECTED"
	}
	reason := res.RejectionReason
	if reason == "" {
		reason = fmt.Sprintf("clearing returned %s", res.Status)
	}
	logging.FromContext(ctx).Warn("sepa transfer not accepted",
		"payment_id", p.ID,
		"clearing_status", res.Status,
		"error_code", code,
	)
	return saga.Result{}, &saga.ExternalError{Code: code, Reason: reason, Err: domain.ErrClearingRejected}
}

func clearingRefs(res *clearing.Result) []statemachine.Change {
	return []statemachine.Change{func(next *domain.Payment) {
		if res.ExternalTransactionID != "" {
			ext := res.ExternalTransactionID
			next.ExternalTransactionID = &ext
		}
		if res.ISO20022Reference != "" {
			msg := res.ISO20022Reference
			next.ISO20022MessageReference = &msg
		}
	}}
}
