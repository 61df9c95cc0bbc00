package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

type config struct {
	Port            string  `env:"MOCK_PORT" envDefault:"8081"`
	Env             string  `env:"APP_ENV" envDefault:"development"`
	InstantNackRate float64 `env:"MOCK_INSTANT_NACK_RATE" envDefault:"0.05"`
	CallbackURL     string  `env:"MOCK_SETTLEMENT_CALLBACK_URL" envDefault:"http://localhost:8080/webhooks/settlement"`
	WebhookSecret   string  `env:"WEBHOOK_SECRET" envDefault:"dev-webhook-secret"`
}

type account struct {
	ID            uuid.UUID       `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	IBAN          *string         `json:"iban"`
	UserID        uuid.UUID       `json:"userId"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
}

type postingRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TransactionID  string          `json:"transactionId" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
	Description    string          `json:"description"`
}

type postingResponse struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
}

type transferRequest struct {
	FromIBAN       string          `json:"fromIban" binding:"required"`
	ToIBAN         string          `json:"toIban" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TransactionID  string          `json:"transactionId" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
	ExecutionDate  string          `json:"executionDate"`
}

type transferResult struct {
	Status                  string `json:"status"`
	ExternalTransactionID   string `json:"externalTransactionId,omitempty"`
	ISO20022Reference       string `json:"iso20022Reference,omitempty"`
	RejectionReason         string `json:"rejectionReason,omitempty"`
	ErrorCode               string `json:"errorCode,omitempty"`
	Message                 string `json:"message,omitempty"`
	EstimatedCompletionDate string `json:"estimatedCompletionDate,omitempty"`
}

type rechargeRequest struct {
	Operator       string          `json:"operator" binding:"required"`
	PhoneNumber    string          `json:"phoneNumber" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	TransactionID  string          `json:"transactionId" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey" binding:"required"`
}

// corebank stands in for the ledger, the clearing house and the operator
// gateway. Every write is idempotent on its key.
type corebank struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*account
	postings  map[string]postingResponse
	transfers map[string]transferResult
	recharges map[string]gin.H
	cfg       config
}

func newCorebank(cfg config) *corebank {
	cb := &corebank{
		accounts:  make(map[uuid.UUID]*account),
		postings:  make(map[string]postingResponse),
		transfers: make(map[string]transferResult),
		recharges: make(map[string]gin.H),
		cfg:       cfg,
	}
	for _, a := range seedAccounts() {
		cb.accounts[a.ID] = a
	}
	return cb
}

func seedAccounts() []*account {
	iban := func(s string) *string { return &s }
	return []*account{
		{
			ID:            uuid.MustParse("a1b2c3d4-0001-4000-8000-000000000001"),
			AccountNumber: "FR-0001",
			IBAN:          iban("FR1420041010050500013M02606"),
			UserID:        uuid.MustParse("11111111-1111-4111-8111-111111111111"),
			Balance:       decimal.NewFromInt(25000),
			Currency:      "EUR",
			Type:          "CHECKING",
			Status:        "ACTIVE",
		},
		{
			ID:            uuid.MustParse("a1b2c3d4-0002-4000-8000-000000000002"),
			AccountNumber: "FR-0002",
			IBAN:          iban("FR7630006000011234567890189"),
			UserID:        uuid.MustParse("22222222-2222-4222-8222-222222222222"),
			Balance:       decimal.NewFromInt(1500),
			Currency:      "EUR",
			Type:          "CHECKING",
			Status:        "ACTIVE",
		},
		{
			ID:            uuid.MustParse("a1b2c3d4-0003-4000-8000-000000000003"),
			AccountNumber: "FR-0003",
			UserID:        uuid.MustParse("22222222-2222-4222-8222-222222222222"),
			Balance:       decimal.NewFromInt(300),
			Currency:      "EUR",
			Type:          "SAVINGS",
			Status:        "FROZEN",
		},
	}
}

func (cb *corebank) getAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	a, ok := cb.accounts[id]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (cb *corebank) lookupAccount(c *gin.Context) {
	number := c.Query("accountNumber")
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for _, a := range cb.accounts {
		if a.AccountNumber == number || (a.IBAN != nil && *a.IBAN == number) {
			c.JSON(http.StatusOK, a)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
}

func (cb *corebank) post(debit bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
			return
		}
		var req postingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !req.Amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
			return
		}

		cb.mu.Lock()
		defer cb.mu.Unlock()

		if prev, ok := cb.postings[req.IdempotencyKey]; ok {
			c.JSON(http.StatusOK, prev)
			return
		}

		a, ok := cb.accounts[id]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		if a.Status != "ACTIVE" {
			c.JSON(http.StatusConflict, gin.H{"error": "account is " + strings.ToLower(a.Status)})
			return
		}

		if debit {
			if a.Balance.LessThan(req.Amount) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "insufficient funds"})
				return
			}
			a.Balance = a.Balance.Sub(req.Amount)
		} else {
			a.Balance = a.Balance.Add(req.Amount)
		}

		resp := postingResponse{
			TransactionID: req.TransactionID,
			Status:        "POSTED",
			Message:       req.Description,
			BalanceAfter:  a.Balance,
		}
		cb.postings[req.IdempotencyKey] = resp
		slog.Info("posting applied", "account_id", id, "debit", debit, "amount", req.Amount, "balance_after", a.Balance)
		c.JSON(http.StatusOK, resp)
	}
}

func (cb *corebank) sepa(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if prev, ok := cb.transfers[req.IdempotencyKey]; ok {
		c.JSON(http.StatusOK, prev)
		return
	}

	suffix := strings.ToUpper(uuid.NewString()[:8])
	res := transferResult{
		Status:                  "ACCEPTED",
		ExternalTransactionID:   "CBS-SEPA-" + suffix,
		ISO20022Reference:       "MSG-SEPA-" + suffix,
		Message:                 "queued for next SEPA batch",
		EstimatedCompletionDate: nextBusinessDay(time.Now().UTC()).Format("2006-01-02"),
	}
	cb.transfers[req.IdempotencyKey] = res
	c.JSON(http.StatusOK, res)
}

func (cb *corebank) instant(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if prev, ok := cb.transfers[req.IdempotencyKey]; ok {
		c.JSON(http.StatusOK, prev)
		return
	}

	var res transferResult
	if rand.Float64() < cb.cfg.InstantNackRate {
		res = transferResult{
			Status:          "NACK",
			ErrorCode:       "AC04",
			RejectionReason: "beneficiary account closed",
		}
	} else {
		suffix := strings.ToUpper(uuid.NewString()[:8])
		res = transferResult{
			Status:                "ACK",
			ExternalTransactionID: "CBS-INST-" + suffix,
			ISO20022Reference:     "MSG-INST-" + suffix,
		}
	}
	cb.transfers[req.IdempotencyKey] = res
	c.JSON(http.StatusOK, res)
}

func (cb *corebank) recharge(c *gin.Context) {
	var req rechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if prev, ok := cb.recharges[req.IdempotencyKey]; ok {
		c.JSON(http.StatusOK, prev)
		return
	}

	res := gin.H{
		"status":            "SUCCESS",
		"operatorReference": fmt.Sprintf("%s-%s", req.Operator, strings.ToUpper(uuid.NewString()[:10])),
		"message":           "recharge credited to " + req.PhoneNumber,
	}
	cb.recharges[req.IdempotencyKey] = res
	c.JSON(http.StatusOK, res)
}

// settle pushes a signed settlement callback to the orchestrator, the way
// the correspondent bank reports a SWIFT outcome.
func (cb *corebank) settle(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}
	status := c.DefaultQuery("status", "settled")
	payload := map[string]string{
		"event_id":     uuid.NewString(),
		"payment_id":   paymentID.String(),
		"status":       status,
		"external_ref": "CBS-SWIFT-" + strings.ToUpper(uuid.NewString()[:8]),
		"reason":       c.Query("reason"),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mac := hmac.New(sha256.New, []byte(cb.cfg.WebhookSecret))
	mac.Write(body)

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, cb.cfg.CallbackURL, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("settlement callback failed", "payment_id", paymentID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	slog.Info("settlement callback sent", "payment_id", paymentID, "status", status, "http_status", resp.StatusCode)
	c.JSON(http.StatusOK, gin.H{"callbackStatus": resp.StatusCode, "payload": payload})
}

func nextBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-corebank", "info", cfg.Env)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	cb := newCorebank(cfg)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/accounts/lookup", cb.lookupAccount)
	api.GET("/accounts/:id", cb.getAccount)
	api.POST("/accounts/:id/debit", cb.post(true))
	api.POST("/accounts/:id/credit", cb.post(false))
	api.POST("/legacy/sepa", cb.sepa)
	api.POST("/legacy/instant", cb.instant)
	api.POST("/operators/recharge", cb.recharge)
	api.POST("/admin/settle/:paymentId", cb.settle)

	addr := ":" + cfg.Port
	slog.Info("mock corebank started", "addr", addr, "accounts", len(cb.accounts))
	if err := r.Run(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
