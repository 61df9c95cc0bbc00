package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/httpclient"
)

// Client talks to the account service, which owns balances. Every posting
// carries an idempotency key so retries never double-apply.
type Client struct {
	http *httpclient.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{http: httpclient.New("ledger", baseURL, timeout)}
}

type accountResponse struct {
	ID            uuid.UUID       `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	IBAN          *string         `json:"iban"`
	UserID        uuid.UUID       `json:"userId"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
}

func (r accountResponse) toDomain() *domain.Account {
	return &domain.Account{
		ID:            r.ID,
		AccountNumber: r.AccountNumber,
		IBAN:          r.IBAN,
		UserID:        r.UserID,
		Balance:       r.Balance,
		Currency:      r.Currency,
		Type:          r.Type,
		Status:        domain.AccountStatus(r.Status),
	}
}

type postingRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	TransactionID  string          `json:"transactionId"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Description    string          `json:"description,omitempty"`
}

type postingResponse struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
}

func (c *Client) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var resp accountResponse
	if err := c.http.Get(ctx, "/api/accounts/"+id.String(), &resp); err != nil {
		return nil, fmt.Errorf("GetAccount: %w", mapError(err, domain.ErrAccountNotFound))
	}
	return resp.toDomain(), nil
}

func (c *Client) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	path := "/api/accounts/lookup?accountNumber=" + url.QueryEscape(accountNumber)
	var resp accountResponse
	if err := c.http.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("GetAccountByNumber: %w", mapError(err, domain.ErrAccountNotFound))
	}
	return resp.toDomain(), nil
}

func (c *Client) Debit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	receipt, err := c.post(ctx, p, "debit")
	if err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	return receipt, nil
}

func (c *Client) Credit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	receipt, err := c.post(ctx, p, "credit")
	if err != nil {
		return nil, fmt.Errorf("Credit: %w", err)
	}
	return receipt, nil
}

func (c *Client) post(ctx context.Context, p domain.Posting, op string) (*domain.PostingReceipt, error) {
	req := postingRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  p.TransactionID,
		IdempotencyKey: p.IdempotencyKey,
		Description:    p.Description,
	}
	var resp postingResponse
	if err := c.http.Post(ctx, "/api/accounts/"+p.AccountID.String()+"/"+op, req, &resp); err != nil {
		return nil, mapError(err, domain.ErrAccountNotFound)
	}

	txID := resp.TransactionID
	if txID == "" {
		txID = p.TransactionID
	}
	return &domain.PostingReceipt{TransactionID: txID, BalanceAfter: resp.BalanceAfter}, nil
}

func mapError(err error, notFound error) error {
	switch {
	case httpclient.IsStatus(err, http.StatusNotFound):
		return fmt.Errorf("%w: %v", notFound, err)
	case httpclient.IsStatus(err, http.StatusUnprocessableEntity):
		return fmt.Errorf("%w: %v", domain.ErrInsufficientFunds, err)
	case httpclient.IsStatus(err, http.StatusConflict):
		return fmt.Errorf("%w: %v", domain.ErrAccountInactive, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
}
