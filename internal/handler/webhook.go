package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const signatureHeader = "X-Webhook-Signature"

type settlementEventRepository interface {
	Create(ctx context.Context, event *domain.SettlementEvent) error
}

// WebhookHandler accepts clearing settlement callbacks and stores them for
// the settlement processor.
type WebhookHandler struct {
	events settlementEventRepository
	secret string
}

func NewWebhookHandler(events settlementEventRepository, secret string) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret}
}

type settlementCallback domain.SettlementPayload

func (p settlementCallback) validate() []FieldError {
	var errs []FieldError

	if p.EventID == "" {
		errs = append(errs, FieldError{Field: "event_id", Message: "required"})
	} else if _, err := uuid.Parse(p.EventID); err != nil {
		errs = append(errs, FieldError{Field: "event_id", Message: "must be a valid UUID"})
	}

	if p.PaymentID == "" {
		errs = append(errs, FieldError{Field: "payment_id", Message: "required"})
	} else if _, err := uuid.Parse(p.PaymentID); err != nil {
		errs = append(errs, FieldError{Field: "payment_id", Message: "must be a valid UUID"})
	}

	switch p.Status {
	case "":
		errs = append(errs, FieldError{Field: "status", Message: "required"})
	case "settled":
	case "rejected":
		if p.Reason == "" {
			errs = append(errs, FieldError{Field: "reason", Message: "required when status is rejected"})
		}
	default:
		errs = append(errs, FieldError{Field: "status", Message: "must be settled or rejected"})
	}

	return errs
}

func (p settlementCallback) eventType() domain.SettlementEventType {
	if p.Status == "settled" {
		return domain.SettlementEventTypeConfirmed
	}
	return domain.SettlementEventTypeRejected
}

func (h *WebhookHandler) ReceiveSettlement(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read settlement callback body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if !verifyHMAC(body, r.Header.Get(signatureHeader), h.secret) {
		log.Warn("settlement callback signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload settlementCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse settlement callback", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	event := &domain.SettlementEvent{
		ID:             uuid.New(),
		IdempotencyKey: payload.EventID,
		EventType:      payload.eventType(),
		Payload:        body,
		Status:         domain.SettlementEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.events.Create(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			log.Info("duplicate settlement callback received", "event_id", payload.EventID, "payment_id", payload.PaymentID)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store settlement event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("settlement event stored",
		"settlement_event_id", event.ID,
		"clearing_event_id", payload.EventID,
		"payment_id", payload.PaymentID,
		"event_type", event.EventType,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
