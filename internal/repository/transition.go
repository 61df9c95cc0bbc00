package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

const transitionColumns = `id, payment_id, from_status, to_status, actor, reason, created_at`

type TransitionRepository struct {
	db *sql.DB
}

func NewTransitionRepository(db *sql.DB) *TransitionRepository {
	return &TransitionRepository{db: db}
}

func (r *TransitionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transition) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payment_transitions (`+transitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.PaymentID, t.From, t.To, t.Actor, t.Reason, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransitionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.Transition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transitionColumns+` FROM payment_transitions
		WHERE payment_id = $1 ORDER BY created_at, id`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPayment: %w", err)
	}
	defer rows.Close()

	var transitions []domain.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPayment: scan: %w", err)
		}
		transitions = append(transitions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPayment: rows: %w", err)
	}
	return transitions, nil
}

func scanTransition(s scanner) (*domain.Transition, error) {
	var t domain.Transition
	err := s.Scan(&t.ID, &t.PaymentID, &t.From, &t.To, &t.Actor, &t.Reason, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
