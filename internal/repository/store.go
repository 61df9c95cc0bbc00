package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

// PaymentStore persists payment state changes together with their audit row.
type PaymentStore struct {
	db          *DB
	payments    *PaymentRepository
	transitions *TransitionRepository
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{
		db:          NewDB(db),
		payments:    NewPaymentRepository(db),
		transitions: NewTransitionRepository(db),
	}
}

func (s *PaymentStore) Insert(ctx context.Context, p *domain.Payment, t *domain.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	if err := s.transitions.Create(ctx, tx, t); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Insert: commit: %w", err)
	}
	return nil
}

func (s *PaymentStore) Apply(ctx context.Context, p *domain.Payment, from domain.PaymentStatus, t *domain.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Apply: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Update(ctx, tx, p, from); err != nil {
		return fmt.Errorf("Apply: %w", err)
	}
	if t != nil {
		if err := s.transitions.Create(ctx, tx, t); err != nil {
			return fmt.Errorf("Apply: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Apply: commit: %w", err)
	}
	return nil
}
