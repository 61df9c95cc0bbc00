package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

const settlementEventColumns = `id, idempotency_key, event_type, payload, status,
	attempts, last_attempt, created_at`

type SettlementEventRepository struct {
	db *sql.DB
}

func NewSettlementEventRepository(db *sql.DB) *SettlementEventRepository {
	return &SettlementEventRepository{db: db}
}

func (r *SettlementEventRepository) Create(ctx context.Context, event *domain.SettlementEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settlement_events (`+settlementEventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.IdempotencyKey, event.EventType, event.Payload,
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateIdempotencyKey)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events inside tx. Rows stay locked
// until tx ends, so concurrent processors never claim the same event.
func (r *SettlementEventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.SettlementEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+settlementEventColumns+` FROM settlement_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.SettlementEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.SettlementEvent
	for rows.Next() {
		e, err := scanSettlementEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *SettlementEventRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SettlementEventStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE settlement_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanSettlementEvent(s scanner) (*domain.SettlementEvent, error) {
	var e domain.SettlementEvent
	err := s.Scan(
		&e.ID, &e.IdempotencyKey, &e.EventType, &e.Payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
