package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

// MemoryStore is an in-memory payment store with the same guarantees as the
// Postgres-backed one: unique idempotency keys and status-guarded updates.
type MemoryStore struct {
	mu          sync.Mutex
	payments    map[uuid.UUID]*domain.Payment
	byKey       map[string]uuid.UUID
	transitions map[uuid.UUID][]domain.Transition

	// ApplyErr, when set, is returned by the next Apply call.
	ApplyErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:    make(map[uuid.UUID]*domain.Payment),
		byKey:       make(map[string]uuid.UUID),
		transitions: make(map[uuid.UUID][]domain.Transition),
	}
}

func (s *MemoryStore) Insert(_ context.Context, p *domain.Payment, t *domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[p.IdempotencyKey]; ok {
		return fmt.Errorf("Insert: %w", domain.ErrDuplicateIdempotencyKey)
	}
	s.payments[p.ID] = p.Clone()
	s.byKey[p.IdempotencyKey] = p.ID
	s.transitions[p.ID] = append(s.transitions[p.ID], *t)
	return nil
}

func (s *MemoryStore) Apply(_ context.Context, p *domain.Payment, from domain.PaymentStatus, t *domain.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ApplyErr != nil {
		err := s.ApplyErr
		s.ApplyErr = nil
		return err
	}

	cur, ok := s.payments[p.ID]
	if !ok {
		return fmt.Errorf("Apply: %w", domain.ErrNotFound)
	}
	if cur.Status != from {
		return fmt.Errorf("Apply: %w", domain.ErrStaleState)
	}
	s.payments[p.ID] = p.Clone()
	if t != nil {
		s.transitions[p.ID] = append(s.transitions[p.ID], *t)
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetByIdempotencyKey(_ context.Context, key string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrNotFound)
	}
	return s.payments[id].Clone(), nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, *p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SumAmountSince(_ context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, p := range s.payments {
		if p.FromAccountID == accountID && !p.CreatedAt.Before(since) && !p.Status.Unsuccessful() {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (s *MemoryStore) CountSince(_ context.Context, accountID uuid.UUID, since time.Time, exclude uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.payments {
		if p.FromAccountID == accountID && !p.CreatedAt.Before(since) && p.ID != exclude {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]domain.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Transition(nil), s.transitions[paymentID]...), nil
}

// Statuses returns the ordered status path recorded for a payment.
func (s *MemoryStore) Statuses(paymentID uuid.UUID) []domain.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.PaymentStatus
	for _, t := range s.transitions[paymentID] {
		out = append(out, t.To)
	}
	return out
}

// Seed stores p as-is, bypassing the state machine.
func (s *MemoryStore) Seed(p *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments[p.ID] = p.Clone()
	s.byKey[p.IdempotencyKey] = p.ID
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}
