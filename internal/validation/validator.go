package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

const (
	dailyWindow    = 24 * time.Hour
	monthlyWindow  = 30 * 24 * time.Hour
	maxDescription = 500
)

var (
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	bicRe      = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

type paymentHistory interface {
	SumAmountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

type Limits struct {
	Daily   decimal.Decimal
	Monthly decimal.Decimal
}

type Validator struct {
	history          paymentHistory
	limits           Limits
	sanctionsMarkers []string
	now              func() time.Time
}

func NewValidator(history paymentHistory, limits Limits, sanctionsMarkers []string) *Validator {
	markers := make([]string, 0, len(sanctionsMarkers))
	for _, m := range sanctionsMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, strings.ToUpper(m))
		}
	}
	return &Validator{
		history:          history,
		limits:           limits,
		sanctionsMarkers: markers,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the syntactic, limit and compliance checks for a request.
// It never writes.
func (v *Validator) Validate(ctx context.Context, req *domain.PaymentRequest) error {
	if err := CheckSyntax(req); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	if err := v.checkLimits(ctx, req); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	if err := v.checkSanctions(ctx, req); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}

// CheckSyntax validates the request shape without touching any collaborator.
func CheckSyntax(req *domain.PaymentRequest) error {
	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if !currencyRe.MatchString(req.Currency) {
		return domain.ErrInvalidCurrency
	}
	if req.FromAccountID == uuid.Nil {
		return fmt.Errorf("%w: fromAccountId is required", domain.ErrInvalidRequest)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("%w: idempotencyKey is required", domain.ErrInvalidRequest)
	}
	if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxDescription {
		return fmt.Errorf("%w: description exceeds %d characters", domain.ErrInvalidRequest, maxDescription)
	}

	switch req.Type {
	case domain.PaymentTypeInternalTransfer:
		if req.ToAccountID == nil && blank(req.ToAccountNumber) {
			return fmt.Errorf("%w: toAccountId or toAccountNumber is required", domain.ErrInvalidRequest)
		}
	case domain.PaymentTypeSEPATransfer, domain.PaymentTypeInstantTransfer:
		if err := checkIBAN(req.ToIBAN); err != nil {
			return err
		}
	case domain.PaymentTypeSwiftTransfer:
		if err := checkIBAN(req.ToIBAN); err != nil {
			return err
		}
		if blank(req.BeneficiarySwiftBIC) || !bicRe.MatchString(strings.ToUpper(*req.BeneficiarySwiftBIC)) {
			return fmt.Errorf("%w: beneficiarySwiftBic must be 8 or 11 characters", domain.ErrInvalidRequest)
		}
		if blank(req.BeneficiaryName) {
			return fmt.Errorf("%w: beneficiaryName is required", domain.ErrInvalidRequest)
		}
	case domain.PaymentTypeMerchantPayment:
		if blank(req.MerchantID) {
			return fmt.Errorf("%w: merchantId is required", domain.ErrInvalidRequest)
		}
	case domain.PaymentTypeMobileRecharge:
		if blank(req.PhoneNumber) {
			return fmt.Errorf("%w: phoneNumber is required", domain.ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unsupported payment type %q", domain.ErrInvalidRequest, req.Type)
	}
	return nil
}

func (v *Validator) checkLimits(ctx context.Context, req *domain.PaymentRequest) error {
	now := v.now()

	daily, err := v.history.SumAmountSince(ctx, req.FromAccountID, now.Add(-dailyWindow))
	if err != nil {
		return fmt.Errorf("checkLimits: %w", err)
	}
	if daily.Add(req.Amount).GreaterThan(v.limits.Daily) {
		logging.FromContext(ctx).Warn("daily limit exceeded",
			"account_id", req.FromAccountID,
			"spent", daily.StringFixed(2),
			"requested", req.Amount.StringFixed(2),
			"limit", v.limits.Daily.StringFixed(2),
		)
		return fmt.Errorf("checkLimits: %w", domain.ErrDailyLimitExceeded)
	}

	monthly, err := v.history.SumAmountSince(ctx, req.FromAccountID, now.Add(-monthlyWindow))
	if err != nil {
		return fmt.Errorf("checkLimits: %w", err)
	}
	if monthly.Add(req.Amount).GreaterThan(v.limits.Monthly) {
		logging.FromContext(ctx).Warn("monthly limit exceeded",
			"account_id", req.FromAccountID,
			"spent", monthly.StringFixed(2),
			"requested", req.Amount.StringFixed(2),
			"limit", v.limits.Monthly.StringFixed(2),
		)
		return fmt.Errorf("checkLimits: %w", domain.ErrMonthlyLimitExceeded)
	}
	return nil
}

func (v *Validator) checkSanctions(ctx context.Context, req *domain.PaymentRequest) error {
	if blank(req.BeneficiaryName) {
		return nil
	}
	name := strings.ToUpper(*req.BeneficiaryName)
	for _, marker := range v.sanctionsMarkers {
		if strings.Contains(name, marker) {
			logging.FromContext(ctx).Warn("sanctions screening hit",
				"account_id", req.FromAccountID,
				"marker", marker,
			)
			return fmt.Errorf("checkSanctions: %w", domain.ErrSanctionsHit)
		}
	}
	return nil
}

func checkIBAN(iban *string) error {
	if blank(iban) {
		return fmt.Errorf("%w: toIban is required", domain.ErrInvalidRequest)
	}
	if !ValidIBAN(*iban) {
		return fmt.Errorf("%w: toIban is not a valid IBAN", domain.ErrInvalidRequest)
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
