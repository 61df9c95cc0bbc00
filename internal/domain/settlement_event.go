package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SettlementEventStatus string

const (
	SettlementEventStatusPending    SettlementEventStatus = "pending"
	SettlementEventStatusDispatched SettlementEventStatus = "dispatched"
	SettlementEventStatusFailed     SettlementEventStatus = "failed"
)

type SettlementEventType string

const (
	SettlementEventTypeConfirmed SettlementEventType = "settlement.confirmed"
	SettlementEventTypeRejected  SettlementEventType = "settlement.rejected"
)

// SettlementEvent is a clearing callback stored for asynchronous processing.
type SettlementEvent struct {
	ID             uuid.UUID
	IdempotencyKey string
	EventType      SettlementEventType
	Payload        json.RawMessage
	Status         SettlementEventStatus
	Attempts       int
	LastAttempt    *time.Time
	CreatedAt      time.Time
}

type SettlementPayload struct {
	EventID     string `json:"event_id"`
	PaymentID   string `json:"payment_id"`
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Timestamp   string `json:"timestamp"`
}
