package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

type Type string

const (
	TypeTransactionCompleted Type = "transaction.completed"
	TypePaymentFailed        Type = "payment.failed"
	TypeFraudDetected        Type = "fraud.detected"
)

const (
	source  = "payment-service"
	version = "1.0"
)

// Event is the envelope shared by every published domain event.
type Event struct {
	EventID       string    `json:"eventId"`
	Timestamp     time.Time `json:"timestamp"`
	EventType     Type      `json:"eventType"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Version       string    `json:"version"`
	Payload       any       `json:"payload"`
}

type TransactionCompletedPayload struct {
	TransactionID   string          `json:"transactionId"`
	PaymentID       string          `json:"paymentId"`
	UserID          string          `json:"userId"`
	FromAccountID   string          `json:"fromAccountId"`
	ToAccountID     string          `json:"toAccountId,omitempty"`
	ToAccountNumber string          `json:"toAccountNumber,omitempty"`
	ToIBAN          string          `json:"toIban,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionType string          `json:"transactionType"`
	Status          string          `json:"status"`
	Description     string          `json:"description,omitempty"`
}

type PaymentFailedPayload struct {
	TransactionID string          `json:"transactionId"`
	PaymentID     string          `json:"paymentId"`
	UserID        string          `json:"userId"`
	AccountID     string          `json:"accountId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failureReason"`
	ErrorCode     string          `json:"errorCode"`
}

type FraudDetectedPayload struct {
	TransactionID string          `json:"transactionId"`
	PaymentID     string          `json:"paymentId"`
	UserID        string          `json:"userId"`
	AccountID     string          `json:"accountId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FraudType     string          `json:"fraudType"`
	Severity      string          `json:"severity"`
	Indicators    []string        `json:"indicators"`
	Description   string          `json:"description"`
}

func newEvent(t Type, p *domain.Payment, payload any) Event {
	e := Event{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: t,
		Source:    source,
		Version:   version,
		Payload:   payload,
	}
	if p.CorrelationID != nil {
		e.CorrelationID = *p.CorrelationID
	}
	return e
}

func TransactionCompleted(p *domain.Payment) Event {
	payload := TransactionCompletedPayload{
		TransactionID:   p.TransactionID,
		PaymentID:       p.ID.String(),
		UserID:          p.UserID.String(),
		FromAccountID:   p.FromAccountID.String(),
		ToAccountNumber: deref(p.ToAccountNumber),
		ToIBAN:          deref(p.ToIBAN),
		Amount:          p.Amount,
		Currency:        p.Currency,
		TransactionType: string(p.Type),
		Status:          string(domain.PaymentStatusCompleted),
		Description:     deref(p.Description),
	}
	if p.ToAccountID != nil {
		payload.ToAccountID = p.ToAccountID.String()
	}
	return newEvent(TypeTransactionCompleted, p, payload)
}

func PaymentFailed(p *domain.Payment, reason, errorCode string) Event {
	return newEvent(TypePaymentFailed, p, PaymentFailedPayload{
		TransactionID: p.TransactionID,
		PaymentID:     p.ID.String(),
		UserID:        p.UserID.String(),
		AccountID:     p.FromAccountID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		FailureReason: reason,
		ErrorCode:     errorCode,
	})
}

func FraudDetected(p *domain.Payment, indicators []string) Event {
	return newEvent(TypeFraudDetected, p, FraudDetectedPayload{
		TransactionID: p.TransactionID,
		PaymentID:     p.ID.String(),
		UserID:        p.UserID.String(),
		AccountID:     p.FromAccountID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		FraudType:     "FRAUD_BLOCKED",
		Severity:      "HIGH",
		Indicators:    indicators,
		Description:   "payment blocked by fraud screening",
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
