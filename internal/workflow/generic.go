package workflow

import (
	"context"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
)

// genericStrategy runs the plain saga with no type-specific intake. The
// executor registered for the type does the rest.
type genericStrategy struct {
	intake *Intake
	orch   *saga.Orchestrator
}

func (s *genericStrategy) Execute(ctx context.Context, req *domain.PaymentRequest) domain.Outcome {
	p, out, ok := s.intake.Admit(ctx, req, admission{})
	if !ok {
		return out
	}
	return s.orch.ExecutePayment(ctx, p, saga.ScreenOptions{})
}

func (s *genericStrategy) Resume(ctx context.Context, p *domain.Payment) domain.Outcome {
	return s.orch.Resume(ctx, p)
}
