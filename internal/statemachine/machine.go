package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

var transitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusCreated: {
		domain.PaymentStatusValidated, domain.PaymentStatusRejected, domain.PaymentStatusCancelled,
	},
	domain.PaymentStatusValidated: {
		domain.PaymentStatusAuthorized, domain.PaymentStatusRejected, domain.PaymentStatusFailed,
	},
	domain.PaymentStatusAuthorized: {
		domain.PaymentStatusReserved, domain.PaymentStatusSent, domain.PaymentStatusRejected,
		domain.PaymentStatusFailed, domain.PaymentStatusCompleted,
	},
	domain.PaymentStatusReserved: {
		domain.PaymentStatusSent, domain.PaymentStatusFailed, domain.PaymentStatusCompensated,
	},
	domain.PaymentStatusSent: {
		domain.PaymentStatusSettled, domain.PaymentStatusFailed,
		domain.PaymentStatusCompensated, domain.PaymentStatusCompleted,
	},
	domain.PaymentStatusSettled: {
		domain.PaymentStatusCompleted,
	},
}

// CanTransition reports whether from -> to is a legal move. Terminal states
// have no outgoing moves.
func CanTransition(from, to domain.PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store persists a payment together with the audit row of the move that
// produced it. Apply must fail with domain.ErrStaleState when the stored
// status is no longer from. A nil transition means no status change.
type Store interface {
	Insert(ctx context.Context, p *domain.Payment, t *domain.Transition) error
	Apply(ctx context.Context, p *domain.Payment, from domain.PaymentStatus, t *domain.Transition) error
}

// Change mutates the working copy of a payment as part of a transition.
type Change func(p *domain.Payment)

type Machine struct {
	store Store
	actor string
	now   func() time.Time
}

func New(store Store) *Machine {
	return &Machine{
		store: store,
		actor: "payment-orchestrator",
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for UpdatedAt and audit rows.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Create records a new payment in CREATED.
func (m *Machine) Create(ctx context.Context, p *domain.Payment) error {
	now := m.now()
	p.Status = domain.PaymentStatusCreated
	p.CreatedAt = now
	p.UpdatedAt = now

	t := &domain.Transition{
		ID:        uuid.New(),
		PaymentID: p.ID,
		To:        domain.PaymentStatusCreated,
		Actor:     m.actor,
		CreatedAt: now,
	}
	if err := m.store.Insert(ctx, p, t); err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	logging.FromContext(ctx).Info("payment created",
		"payment_id", p.ID,
		"transaction_id", p.TransactionID,
		"type", p.Type,
	)
	return nil
}

// Transition moves p to the target status, applying changes to the stored
// row in the same write. p is only updated once the write succeeds.
func (m *Machine) Transition(ctx context.Context, p *domain.Payment, to domain.PaymentStatus, changes ...Change) error {
	from := p.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("Transition: %s -> %s: %w", from, to, domain.ErrInvalidStateTransition)
	}

	next := p.Clone()
	for _, c := range changes {
		c(next)
	}
	next.Status = to
	next.UpdatedAt = m.now()

	t := &domain.Transition{
		ID:        uuid.New(),
		PaymentID: p.ID,
		From:      &from,
		To:        to,
		Actor:     m.actor,
		Reason:    next.FailureReason,
		CreatedAt: next.UpdatedAt,
	}
	if !to.Unsuccessful() {
		t.Reason = nil
	}

	if err := m.store.Apply(ctx, next, from, t); err != nil {
		return fmt.Errorf("Transition: %s -> %s: %w", from, to, err)
	}

	*p = *next

	logging.FromContext(ctx).Info("payment transitioned",
		"payment_id", p.ID,
		"from", from,
		"to", to,
	)
	return nil
}

// Annotate persists changes to p without moving it. The status is guarded
// like Transition but no audit row is written.
func (m *Machine) Annotate(ctx context.Context, p *domain.Payment, changes ...Change) error {
	next := p.Clone()
	for _, c := range changes {
		c(next)
	}
	next.Status = p.Status
	next.UpdatedAt = m.now()

	if err := m.store.Apply(ctx, next, p.Status, nil); err != nil {
		return fmt.Errorf("Annotate: %w", err)
	}
	*p = *next
	return nil
}

func WithFailureReason(reason string) Change {
	return func(p *domain.Payment) { p.FailureReason = &reason }
}

func WithCompletedAt(t time.Time) Change {
	return func(p *domain.Payment) { p.CompletedAt = &t }
}
