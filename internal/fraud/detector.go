package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const (
	IndicatorHighAmount   = "HIGH_AMOUNT"
	IndicatorHighVelocity = "HIGH_VELOCITY"

	velocityWindow = time.Hour
)

type Decision string

const (
	DecisionAllow      Decision = "ALLOW"
	DecisionRequireMFA Decision = "REQUIRE_MFA"
	DecisionBlock      Decision = "BLOCK"
)

type Result struct {
	Decision   Decision
	Indicators []string
}

type paymentCounter interface {
	CountSince(ctx context.Context, accountID uuid.UUID, since time.Time, exclude uuid.UUID) (int, error)
}

type Config struct {
	HighAmountThreshold    decimal.Decimal
	MaxTransactionsPerHour int
}

type Detector struct {
	counter paymentCounter
	cfg     Config
	now     func() time.Time
}

func NewDetector(counter paymentCounter, cfg Config) *Detector {
	return &Detector{
		counter: counter,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Check screens a recorded payment. Velocity breaches always block;
// any other indicator only asks for step-up authentication.
func (d *Detector) Check(ctx context.Context, p *domain.Payment) (Result, error) {
	var indicators []string

	if p.Amount.GreaterThan(d.cfg.HighAmountThreshold) {
		indicators = append(indicators, IndicatorHighAmount)
	}

	recent, err := d.counter.CountSince(ctx, p.FromAccountID, d.now().Add(-velocityWindow), p.ID)
	if err != nil {
		return Result{}, fmt.Errorf("Check: %w", err)
	}
	velocity := recent > d.cfg.MaxTransactionsPerHour
	if velocity {
		indicators = append(indicators, IndicatorHighVelocity)
	}

	res := Result{Decision: DecisionAllow, Indicators: indicators}
	switch {
	case velocity:
		res.Decision = DecisionBlock
	case len(indicators) > 0:
		res.Decision = DecisionRequireMFA
	}

	if res.Decision != DecisionAllow {
		logging.FromContext(ctx).Warn("fraud indicators raised",
			"payment_id", p.ID,
			"account_id", p.FromAccountID,
			"decision", res.Decision,
			"indicators", indicators,
			"recent_payments", recent,
		)
	}
	return res, nil
}
