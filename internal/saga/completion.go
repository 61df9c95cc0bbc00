package saga

import "github.com/josh-kwaku/payment-orchestrator/internal/domain"

// CompletionPolicy decides how a payment in SENT reaches COMPLETED.
type CompletionPolicy int

const (
	// Direct moves SENT straight to COMPLETED once the execute step succeeds.
	Direct CompletionPolicy = iota
	// ViaSettlement passes through SETTLED when the external system confirms
	// settlement synchronously, and otherwise waits for a settlement callback.
	ViaSettlement
	// AwaitSettlement always leaves the payment in SENT until a settlement
	// callback arrives.
	AwaitSettlement
)

func (c CompletionPolicy) String() string {
	switch c {
	case Direct:
		return "direct"
	case ViaSettlement:
		return "via_settlement"
	case AwaitSettlement:
		return "await_settlement"
	}
	return "unknown"
}

var completionPolicies = map[domain.PaymentType]CompletionPolicy{
	domain.PaymentTypeInternalTransfer: Direct,
	domain.PaymentTypeMerchantPayment:  Direct,
	domain.PaymentTypeMobileRecharge:   Direct,
	domain.PaymentTypeInstantTransfer:  Direct,
	domain.PaymentTypeSEPATransfer:     ViaSettlement,
	domain.PaymentTypeSwiftTransfer:    AwaitSettlement,
}

func PolicyFor(t domain.PaymentType) CompletionPolicy {
	if p, ok := completionPolicies[t]; ok {
		return p
	}
	return Direct
}
