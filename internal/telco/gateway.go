package telco

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/httpclient"
)

type RechargeRequest struct {
	Operator       Operator        `json:"operator"`
	PhoneNumber    string          `json:"phoneNumber"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TransactionID  string          `json:"transactionId"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type RechargeResult struct {
	Status            string `json:"status"`
	OperatorReference string `json:"operatorReference"`
	Message           string `json:"message"`
}

const RechargeStatusSuccess = "SUCCESS"

// Gateway tops up prepaid lines through the operator aggregator.
type Gateway struct {
	http *httpclient.Client
}

func NewGateway(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{http: httpclient.New("operator_gateway", baseURL, timeout)}
}

func (g *Gateway) Recharge(ctx context.Context, req RechargeRequest) (*RechargeResult, error) {
	var res RechargeResult
	if err := g.http.Post(ctx, "/api/operators/recharge", req, &res); err != nil {
		if httpclient.IsTimeout(err) || httpclient.IsClientError(err) {
			return nil, fmt.Errorf("Recharge: %w: %v", domain.ErrOperatorRejected, err)
		}
		return nil, fmt.Errorf("Recharge: %w", err)
	}
	if res.Status != RechargeStatusSuccess {
		return &res, fmt.Errorf("Recharge: status %s: %w", res.Status, domain.ErrOperatorRejected)
	}
	return &res, nil
}
