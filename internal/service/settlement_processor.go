package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const (
	SettlementStatusSettled  = "settled"
	SettlementStatusRejected = "rejected"

	claimBatchSize = 10
)

type settlementEventRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.SettlementEvent, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SettlementEventStatus) error
}

type settlementHandler interface {
	ConfirmSettlement(ctx context.Context, paymentID uuid.UUID, externalRef string) (domain.Outcome, error)
	FailSettlement(ctx context.Context, paymentID uuid.UUID, reason string) (domain.Outcome, error)
}

// SettlementProcessor drains stored clearing callbacks and applies them to
// the payments waiting on them.
type SettlementProcessor struct {
	events   settlementEventRepo
	payments settlementHandler
	db       *sql.DB
	logger   *slog.Logger
	interval time.Duration
}

func NewSettlementProcessor(
	events settlementEventRepo,
	payments settlementHandler,
	db *sql.DB,
	logger *slog.Logger,
	interval time.Duration,
) *SettlementProcessor {
	return &SettlementProcessor{
		events:   events,
		payments: payments,
		db:       db,
		logger:   logger,
		interval: interval,
	}
}

func (p *SettlementProcessor) Start(ctx context.Context) {
	p.logger.Info("settlement processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("settlement processor stopped")
			return
		case <-ticker.C:
			if _, err := p.Poll(ctx); err != nil {
				p.logger.Error("settlement poll failed", "error", err)
			}
		}
	}
}

// Poll claims one batch of pending events and processes it. Claimed rows stay
// locked until the batch commits, so several instances can poll the same
// table. It returns the number of events whose status was settled.
func (p *SettlementProcessor) Poll(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("Poll: begin tx: %w", err)
	}
	defer tx.Rollback()

	pending, err := p.events.ClaimPending(ctx, tx, claimBatchSize)
	if err != nil {
		return 0, fmt.Errorf("Poll: %w", err)
	}

	handled := 0
	for _, event := range pending {
		status, err := p.processEvent(ctx, event)
		if err != nil {
			p.logger.Error("failed to process settlement event, will retry",
				"settlement_event_id", event.ID,
				"error", err,
			)
			continue
		}
		if err := p.events.UpdateStatus(ctx, tx, event.ID, status); err != nil {
			return handled, fmt.Errorf("Poll: %w", err)
		}
		handled++
	}

	if err := tx.Commit(); err != nil {
		return handled, fmt.Errorf("Poll: commit: %w", err)
	}
	return handled, nil
}

// processEvent returns the status to record for event. An error leaves the
// event pending for the next poll.
func (p *SettlementProcessor) processEvent(ctx context.Context, event domain.SettlementEvent) (domain.SettlementEventStatus, error) {
	var payload domain.SettlementPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		p.logger.Error("malformed settlement payload", "settlement_event_id", event.ID, "error", err)
		return domain.SettlementEventStatusFailed, nil
	}

	paymentID, err := uuid.Parse(payload.PaymentID)
	if err != nil {
		p.logger.Error("invalid payment_id in settlement event", "settlement_event_id", event.ID, "payment_id", payload.PaymentID)
		return domain.SettlementEventStatusFailed, nil
	}

	log := p.logger.With("settlement_event_id", event.ID, "payment_id", paymentID)
	ctx = logging.WithLogger(ctx, log)

	var out domain.Outcome
	switch payload.Status {
	case SettlementStatusSettled:
		out, err = p.payments.ConfirmSettlement(ctx, paymentID, payload.ExternalRef)
	case SettlementStatusRejected:
		out, err = p.payments.FailSettlement(ctx, paymentID, payload.Reason)
	default:
		log.Error("unknown settlement status", "status", payload.Status)
		return domain.SettlementEventStatusFailed, nil
	}

	switch {
	case errors.Is(err, domain.ErrPaymentTerminal):
		log.Info("payment already in terminal state, skipping")
		return domain.SettlementEventStatusDispatched, nil
	case errors.Is(err, domain.ErrNotFound):
		log.Warn("payment not found for settlement event")
		return domain.SettlementEventStatusFailed, nil
	case err != nil:
		return "", fmt.Errorf("processEvent: %w", err)
	}

	if errors.Is(out.Err, domain.ErrInvalidStateTransition) {
		log.Warn("payment is not awaiting settlement", "status", out.Payment.Status)
		return domain.SettlementEventStatusFailed, nil
	}

	log.Info("settlement event applied", "outcome", out.Kind, "status", out.Payment.Status)
	return domain.SettlementEventStatusDispatched, nil
}
