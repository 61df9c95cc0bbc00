package clearing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/httpclient"
)

type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusSent     Status = "SENT"
	StatusPending  Status = "PENDING"
	StatusRejected Status = "REJECTED"
	StatusAck      Status = "ACK"
	StatusNack     Status = "NACK"
	StatusTimeout  Status = "TIMEOUT"
)

type Transfer struct {
	FromIBAN        string          `json:"fromIban"`
	ToIBAN          string          `json:"toIban"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	BeneficiaryName string          `json:"beneficiaryName,omitempty"`
	Description     string          `json:"description,omitempty"`
	TransactionID   string          `json:"transactionId"`
	IdempotencyKey  string          `json:"idempotencyKey"`
	ExecutionDate   string          `json:"executionDate,omitempty"`
}

type Result struct {
	Status                  Status `json:"status"`
	ExternalTransactionID   string `json:"externalTransactionId"`
	ISO20022Reference       string `json:"iso20022Reference"`
	RejectionReason         string `json:"rejectionReason"`
	ErrorCode               string `json:"errorCode"`
	Message                 string `json:"message"`
	EstimatedCompletionDate string `json:"estimatedCompletionDate"`
}

// Client submits transfers to the legacy core-banking adapter.
type Client struct {
	http *httpclient.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{http: httpclient.New("clearing", baseURL, timeout)}
}

func FromPayment(p *domain.Payment) Transfer {
	t := Transfer{
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  p.TransactionID,
		IdempotencyKey: p.IdempotencyKey,
	}
	if p.FromIBAN != nil {
		t.FromIBAN = *p.FromIBAN
	}
	if p.ToIBAN != nil {
		t.ToIBAN = *p.ToIBAN
	}
	if p.BeneficiaryName != nil {
		t.BeneficiaryName = *p.BeneficiaryName
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return t
}

func (c *Client) SubmitSEPA(ctx context.Context, t Transfer) (*Result, error) {
	var res Result
	if err := c.http.Post(ctx, "/api/legacy/sepa", t, &res); err != nil {
		return nil, fmt.Errorf("SubmitSEPA: %w", mapError(err))
	}
	return &res, nil
}

func (c *Client) SubmitInstant(ctx context.Context, t Transfer) (*Result, error) {
	var res Result
	if err := c.http.Post(ctx, "/api/legacy/instant", t, &res); err != nil {
		return nil, fmt.Errorf("SubmitInstant: %w", mapError(err))
	}
	return &res, nil
}

func mapError(err error) error {
	if httpclient.IsTimeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrClearingTimeout, err)
	}
	return err
}
