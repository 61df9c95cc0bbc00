package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

type mockCounter struct {
	count   int
	err     error
	since   time.Time
	exclude uuid.UUID
}

func (m *mockCounter) CountSince(_ context.Context, _ uuid.UUID, since time.Time, exclude uuid.UUID) (int, error) {
	m.since = since
	m.exclude = exclude
	return m.count, m.err
}

func TestDetector_Check(t *testing.T) {
	tests := []struct {
		name           string
		amount         string
		recent         int
		wantDecision   Decision
		wantIndicators []string
	}{
		{name: "clean", amount: "100.00", recent: 0, wantDecision: DecisionAllow},
		{name: "at threshold is not high", amount: "5000.00", recent: 0, wantDecision: DecisionAllow},
		{name: "high amount requires mfa", amount: "5000.01", recent: 0, wantDecision: DecisionRequireMFA, wantIndicators: []string{IndicatorHighAmount}},
		{name: "at velocity max is allowed", amount: "10.00", recent: 10, wantDecision: DecisionAllow},
		{name: "velocity over max blocks", amount: "10.00", recent: 11, wantDecision: DecisionBlock, wantIndicators: []string{IndicatorHighVelocity}},
		{name: "both indicators block", amount: "9000.00", recent: 25, wantDecision: DecisionBlock, wantIndicators: []string{IndicatorHighAmount, IndicatorHighVelocity}},
	}

	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &mockCounter{count: tt.recent}
			d := NewDetector(counter, Config{
				HighAmountThreshold:    decimal.RequireFromString("5000.00"),
				MaxTransactionsPerHour: 10,
			}).WithClock(func() time.Time { return now })

			p := &domain.Payment{ID: uuid.New(), FromAccountID: uuid.New(), Amount: decimal.RequireFromString(tt.amount)}
			res, err := d.Check(context.Background(), p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDecision, res.Decision)
			assert.Equal(t, tt.wantIndicators, res.Indicators)
			assert.Equal(t, now.Add(-time.Hour), counter.since)
			assert.Equal(t, p.ID, counter.exclude)
		})
	}
}

func TestDetector_CounterError(t *testing.T) {
	d := NewDetector(&mockCounter{err: errors.New("timeout")}, Config{
		HighAmountThreshold:    decimal.RequireFromString("5000.00"),
		MaxTransactionsPerHour: 10,
	})

	_, err := d.Check(context.Background(), &domain.Payment{ID: uuid.New(), Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
}
