package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeInternalTransfer PaymentType = "INTERNAL_TRANSFER"
	PaymentTypeSEPATransfer     PaymentType = "SEPA_TRANSFER"
	PaymentTypeInstantTransfer  PaymentType = "SCT_INSTANT"
	PaymentTypeSwiftTransfer    PaymentType = "SWIFT_TRANSFER"
	PaymentTypeMerchantPayment  PaymentType = "MERCHANT_PAYMENT"
	PaymentTypeMobileRecharge   PaymentType = "MOBILE_RECHARGE"
)

var PaymentTypes = []PaymentType{
	PaymentTypeInternalTransfer,
	PaymentTypeSEPATransfer,
	PaymentTypeInstantTransfer,
	PaymentTypeSwiftTransfer,
	PaymentTypeMerchantPayment,
	PaymentTypeMobileRecharge,
}

func (t PaymentType) Valid() bool {
	for _, pt := range PaymentTypes {
		if pt == t {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusCreated     PaymentStatus = "CREATED"
	PaymentStatusValidated   PaymentStatus = "VALIDATED"
	PaymentStatusAuthorized  PaymentStatus = "AUTHORIZED"
	PaymentStatusReserved    PaymentStatus = "RESERVED"
	PaymentStatusSent        PaymentStatus = "SENT"
	PaymentStatusSettled     PaymentStatus = "SETTLED"
	PaymentStatusCompleted   PaymentStatus = "COMPLETED"
	PaymentStatusFailed      PaymentStatus = "FAILED"
	PaymentStatusRejected    PaymentStatus = "REJECTED"
	PaymentStatusCancelled   PaymentStatus = "CANCELLED"
	PaymentStatusCompensated PaymentStatus = "COMPENSATED"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRejected,
		PaymentStatusCancelled, PaymentStatusCompensated:
		return true
	}
	return false
}

// Unsuccessful reports whether the payment ended without moving money.
// Such payments do not count towards rolling limits.
func (s PaymentStatus) Unsuccessful() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusRejected, PaymentStatusCancelled, PaymentStatusCompensated:
		return true
	}
	return false
}

type Payment struct {
	ID             uuid.UUID
	TransactionID  string
	IdempotencyKey string
	Type           PaymentType
	Status         PaymentStatus
	UserID         uuid.UUID

	FromAccountID       uuid.UUID
	FromIBAN            *string
	ToAccountID         *uuid.UUID
	ToAccountNumber     *string
	ToIBAN              *string
	BeneficiaryName     *string
	BeneficiarySwiftBIC *string
	PhoneNumber         *string
	OperatorCode        *string
	MerchantID          *string
	InvoiceReference    *string

	Amount   decimal.Decimal
	Currency string
	Fees     decimal.Decimal

	DebitTransactionID        *string
	CreditTransactionID       *string
	ExternalTransactionID     *string
	ISO20022MessageReference  *string
	CompensationTransactionID *string

	Reference *string
	UETR      *string

	FraudCheckPassed    bool
	ScaRequired         bool
	ScaVerified         bool
	CompensationPending bool
	FailureReason       *string

	Description   *string
	IPAddress     *string
	UserAgent     *string
	CorrelationID *string

	EstimatedCompletionDate *time.Time
	CompletedAt             *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Clone returns a copy that shares no pointers with p.
func (p *Payment) Clone() *Payment {
	c := *p
	c.FromIBAN = cloneString(p.FromIBAN)
	c.ToAccountNumber = cloneString(p.ToAccountNumber)
	c.ToIBAN = cloneString(p.ToIBAN)
	c.BeneficiaryName = cloneString(p.BeneficiaryName)
	c.BeneficiarySwiftBIC = cloneString(p.BeneficiarySwiftBIC)
	c.PhoneNumber = cloneString(p.PhoneNumber)
	c.OperatorCode = cloneString(p.OperatorCode)
	c.MerchantID = cloneString(p.MerchantID)
	c.InvoiceReference = cloneString(p.InvoiceReference)
	c.DebitTransactionID = cloneString(p.DebitTransactionID)
	c.CreditTransactionID = cloneString(p.CreditTransactionID)
	c.ExternalTransactionID = cloneString(p.ExternalTransactionID)
	c.ISO20022MessageReference = cloneString(p.ISO20022MessageReference)
	c.CompensationTransactionID = cloneString(p.CompensationTransactionID)
	c.Reference = cloneString(p.Reference)
	c.UETR = cloneString(p.UETR)
	c.FailureReason = cloneString(p.FailureReason)
	c.Description = cloneString(p.Description)
	c.IPAddress = cloneString(p.IPAddress)
	c.UserAgent = cloneString(p.UserAgent)
	c.CorrelationID = cloneString(p.CorrelationID)
	if p.ToAccountID != nil {
		id := *p.ToAccountID
		c.ToAccountID = &id
	}
	if p.EstimatedCompletionDate != nil {
		t := *p.EstimatedCompletionDate
		c.EstimatedCompletionDate = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// PaymentRequest is the intent submitted by a client. UserID and
// CorrelationID come from the authenticated transport context.
type PaymentRequest struct {
	UserID        uuid.UUID
	CorrelationID string

	Type                PaymentType
	FromAccountID       uuid.UUID
	ToAccountID         *uuid.UUID
	ToAccountNumber     *string
	ToIBAN              *string
	BeneficiaryName     *string
	BeneficiarySwiftBIC *string
	PhoneNumber         *string
	CountryCode         *string
	MerchantID          *string
	InvoiceReference    *string
	Amount              decimal.Decimal
	Currency            string
	Description         *string
	EndToEndID          *string
	IdempotencyKey      string
	IPAddress           *string
	UserAgent           *string
}
