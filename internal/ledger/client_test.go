package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

func TestClient_GetAccount(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts/"+id.String(), r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"id":            id,
			"accountNumber": "ACC-0001",
			"iban":          "FR7630006000011234567890189",
			"userId":        uuid.New(),
			"balance":       "1500.50",
			"currency":      "EUR",
			"type":          "CHECKING",
			"status":        "ACTIVE",
		})
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, time.Second).GetAccount(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, acct.ID)
	assert.True(t, acct.Active())
	assert.True(t, decimal.RequireFromString("1500.5").Equal(acct.Balance))
	require.NotNil(t, acct.IBAN)
}

func TestClient_GetAccountByNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts/lookup", r.URL.Path)
		assert.Equal(t, "ACC 7", r.URL.Query().Get("accountNumber"))
		json.NewEncoder(w).Encode(map[string]any{"id": uuid.New(), "accountNumber": "ACC 7", "status": "ACTIVE", "balance": "0"})
	}))
	defer srv.Close()

	acct, err := NewClient(srv.URL, time.Second).GetAccountByNumber(context.Background(), "ACC 7")
	require.NoError(t, err)
	assert.Equal(t, "ACC 7", acct.AccountNumber)
}

func TestClient_Debit(t *testing.T) {
	accountID := uuid.New()
	var got postingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/accounts/"+accountID.String()+"/debit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"transactionId": "DEB-123", "status": "SUCCESS"})
	}))
	defer srv.Close()

	receipt, err := NewClient(srv.URL, time.Second).Debit(context.Background(), domain.Posting{
		AccountID:      accountID,
		EntryType:      domain.EntryTypeDebit,
		Amount:         decimal.RequireFromString("100.00"),
		TransactionID:  "TXN-1",
		IdempotencyKey: "key-1",
		Description:    "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, "DEB-123", receipt.TransactionID)
	assert.Equal(t, "TXN-1", got.TransactionID)
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.True(t, decimal.RequireFromString("100").Equal(got.Amount))
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrAccountNotFound},
		{name: "insufficient funds", status: http.StatusUnprocessableEntity, wantErr: domain.ErrInsufficientFunds},
		{name: "inactive", status: http.StatusConflict, wantErr: domain.ErrAccountInactive},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrLedgerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Credit(context.Background(), domain.Posting{AccountID: uuid.New()})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetAccount(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}
