package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/auth"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "X-Idempotent-Replayed"

	defaultPageSize = 20
	maxPageSize     = 100
)

type paymentService interface {
	CreatePayment(ctx context.Context, req *domain.PaymentRequest) domain.Outcome
	AuthorizePayment(ctx context.Context, userID, paymentID uuid.UUID, otpCode string) domain.Outcome
	GetPaymentForUser(ctx context.Context, paymentID, userID uuid.UUID) (*domain.Payment, error)
	GetUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Payment, error)
	GetTransitions(ctx context.Context, paymentID, userID uuid.UUID) ([]domain.Transition, error)
}

type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	FromAccountID       string          `json:"fromAccountId"`
	ToAccountID         *string         `json:"toAccountId"`
	ToAccountNumber     *string         `json:"toAccountNumber"`
	ToIBAN              *string         `json:"toIban"`
	BeneficiaryName     *string         `json:"beneficiaryName"`
	BeneficiarySwiftBIC *string         `json:"beneficiarySwiftBic"`
	PhoneNumber         *string         `json:"phoneNumber"`
	CountryCode         *string         `json:"countryCode"`
	MerchantID          *string         `json:"merchantId"`
	InvoiceReference    *string         `json:"invoiceReference"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	Description         *string         `json:"description"`
	EndToEndID          *string         `json:"endToEndId"`
	IdempotencyKey      string          `json:"idempotencyKey"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.FromAccountID == "" {
		errs = append(errs, FieldError{Field: "fromAccountId", Message: "required"})
	} else if _, err := uuid.Parse(r.FromAccountID); err != nil {
		errs = append(errs, FieldError{Field: "fromAccountId", Message: "must be a valid UUID"})
	}

	if r.ToAccountID != nil {
		if _, err := uuid.Parse(*r.ToAccountID); err != nil {
			errs = append(errs, FieldError{Field: "toAccountId", Message: "must be a valid UUID"})
		}
	}

	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if r.Currency == "" {
		errs = append(errs, FieldError{Field: "currency", Message: "required"})
	}

	return errs
}

func (r createPaymentRequest) toDomain(pt domain.PaymentType, userID uuid.UUID) *domain.PaymentRequest {
	req := &domain.PaymentRequest{
		UserID:              userID,
		Type:                pt,
		FromAccountID:       uuid.MustParse(r.FromAccountID),
		ToAccountNumber:     r.ToAccountNumber,
		ToIBAN:              r.ToIBAN,
		BeneficiaryName:     r.BeneficiaryName,
		BeneficiarySwiftBIC: r.BeneficiarySwiftBIC,
		PhoneNumber:         r.PhoneNumber,
		CountryCode:         r.CountryCode,
		MerchantID:          r.MerchantID,
		InvoiceReference:    r.InvoiceReference,
		Amount:              r.Amount,
		Currency:            strings.ToUpper(r.Currency),
		Description:         r.Description,
		EndToEndID:          r.EndToEndID,
		IdempotencyKey:      r.IdempotencyKey,
	}
	if r.ToAccountID != nil {
		id := uuid.MustParse(*r.ToAccountID)
		req.ToAccountID = &id
	}
	return req
}

type authorizeRequest struct {
	OTPCode string `json:"otpCode"`
}

type paymentDTO struct {
	PaymentID               uuid.UUID       `json:"paymentId"`
	TransactionID           string          `json:"transactionId"`
	Status                  string          `json:"status"`
	PaymentType             string          `json:"paymentType"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	Fees                    decimal.Decimal `json:"fees"`
	Reference               *string         `json:"reference,omitempty"`
	UETR                    *string         `json:"uetr,omitempty"`
	Message                 string          `json:"message,omitempty"`
	FraudIndicators         []string        `json:"fraudIndicators,omitempty"`
	FailureReason           *string         `json:"failureReason,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	EstimatedCompletionDate *time.Time      `json:"estimatedCompletionDate,omitempty"`
	CompletedAt             *time.Time      `json:"completedAt,omitempty"`
}

func toPaymentDTO(p *domain.Payment) paymentDTO {
	return paymentDTO{
		PaymentID:               p.ID,
		TransactionID:           p.TransactionID,
		Status:                  string(p.Status),
		PaymentType:             string(p.Type),
		Amount:                  p.Amount,
		Currency:                p.Currency,
		Fees:                    p.Fees,
		Reference:               p.Reference,
		UETR:                    p.UETR,
		FailureReason:           p.FailureReason,
		CreatedAt:               p.CreatedAt,
		EstimatedCompletionDate: p.EstimatedCompletionDate,
		CompletedAt:             p.CompletedAt,
	}
}

type transitionDTO struct {
	From      *string   `json:"from"`
	To        string    `json:"to"`
	Reason    *string   `json:"reason,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create returns the handler for one payment type route.
func (h *PaymentHandler) Create(pt domain.PaymentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserID(r.Context())
		if !ok {
			RespondAppError(w, ErrMissingToken, nil)
			return
		}

		var body createPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
		headerKey := r.Header.Get(idempotencyHeader)
		switch {
		case body.IdempotencyKey == "":
			body.IdempotencyKey = headerKey
		case headerKey != "" && headerKey != body.IdempotencyKey:
			RespondAppError(w, ErrInvalidRequest, []FieldError{{
				Field:   "idempotencyKey",
				Message: "does not match the " + idempotencyHeader + " header",
			}})
			return
		}
		if body.IdempotencyKey == "" {
			RespondAppError(w, ErrMissingIdempotencyKey, nil)
			return
		}
		if fields := body.Validate(); len(fields) > 0 {
			RespondValidationError(w, fields)
			return
		}

		req := body.toDomain(pt, userID)
		req.CorrelationID = logging.RequestID(r.Context())
		if ip := clientIP(r); ip != "" {
			req.IPAddress = &ip
		}
		if ua := r.UserAgent(); ua != "" {
			req.UserAgent = &ua
		}

		respondOutcome(w, r, h.payments.CreatePayment(r.Context(), req))
	}
}

func (h *PaymentHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var body authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if body.OTPCode == "" {
		RespondValidationError(w, []FieldError{{Field: "otpCode", Message: "required"}})
		return
	}

	respondOutcome(w, r, h.payments.AuthorizePayment(r.Context(), userID, paymentID, body.OTPCode))
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetPaymentForUser(r.Context(), paymentID, userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit, offset, fields := pagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	payments, err := h.payments.GetUserPayments(r.Context(), userID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("listing payments failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]paymentDTO, 0, len(payments))
	for i := range payments {
		out = append(out, toPaymentDTO(&payments[i]))
	}
	RespondSuccess(w, http.StatusOK, out)
}

func (h *PaymentHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	transitions, err := h.payments.GetTransitions(r.Context(), paymentID, userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("transition lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	out := make([]transitionDTO, 0, len(transitions))
	for _, t := range transitions {
		dto := transitionDTO{
			To:        string(t.To),
			Reason:    t.Reason,
			Actor:     t.Actor,
			CreatedAt: t.CreatedAt,
		}
		if t.From != nil {
			from := string(*t.From)
			dto.From = &from
		}
		out = append(out, dto)
	}
	RespondSuccess(w, http.StatusOK, out)
}

// respondOutcome maps a payment outcome onto the response envelope. Failed
// outcomes still carry the payment when one was recorded.
func respondOutcome(w http.ResponseWriter, r *http.Request, out domain.Outcome) {
	var data any
	if out.Payment != nil {
		dto := toPaymentDTO(out.Payment)
		dto.Message = out.Message
		dto.FraudIndicators = out.Indicators
		data = dto
	}

	switch out.Kind {
	case domain.OutcomeSuccess:
		status := http.StatusCreated
		if out.Replayed {
			w.Header().Set(replayedHeader, "true")
			status = http.StatusOK
		} else {
			w.Header().Set("Location", fmt.Sprintf("/api/v1/payments/%s", out.Payment.ID))
		}
		RespondSuccess(w, status, data)

	case domain.OutcomeAuthorizationRequired:
		if dto, ok := data.(paymentDTO); ok {
			dto.Message = "SCA_REQUIRED"
			data = dto
		}
		RespondSuccess(w, http.StatusAccepted, data)

	case domain.OutcomeRejected, domain.OutcomeBlocked:
		appErr, ok := appErrorFor(out.Err)
		if !ok {
			appErr = ErrPaymentRejected
		}
		logging.FromContext(r.Context()).Info("payment refused", "code", appErr.Code, "reason", out.Message)
		respondError(w, appErr, data, map[string]string{"reason": out.Message})

	default:
		logging.FromContext(r.Context()).Error("payment processing failed", "error", out.Err)
		respondError(w, ErrUpstreamFailure, data, nil)
	}
}

func pagination(r *http.Request) (limit, offset int, fields []FieldError) {
	limit, offset = defaultPageSize, 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			fields = append(fields, FieldError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxPageSize)})
		} else {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "offset", Message: "must be 0 or greater"})
		} else {
			offset = n
		}
	}
	return limit, offset, fields
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
