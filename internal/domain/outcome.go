package domain

type OutcomeKind string

const (
	OutcomeSuccess               OutcomeKind = "SUCCESS"
	OutcomeAuthorizationRequired OutcomeKind = "AUTHORIZATION_REQUIRED"
	OutcomeRejected              OutcomeKind = "REJECTED"
	OutcomeBlocked               OutcomeKind = "BLOCKED"
	OutcomeTechnicalFailure      OutcomeKind = "TECHNICAL_FAILURE"
)

// Outcome is the uniform result of every payment operation. Payment is nil
// when the request was refused before a payment was recorded.
type Outcome struct {
	Kind       OutcomeKind
	Payment    *Payment
	Message    string
	Indicators []string
	Err        error
	Replayed   bool
}

func Success(p *Payment, msg string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payment: p, Message: msg}
}

func Replay(p *Payment) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payment: p, Message: "payment already processed", Replayed: true}
}

func AuthorizationRequired(p *Payment, indicators []string) Outcome {
	return Outcome{
		Kind:       OutcomeAuthorizationRequired,
		Payment:    p,
		Message:    "strong customer authentication required",
		Indicators: indicators,
	}
}

func Rejected(p *Payment, err error) Outcome {
	return Outcome{Kind: OutcomeRejected, Payment: p, Message: err.Error(), Err: err}
}

func Blocked(p *Payment, indicators []string) Outcome {
	return Outcome{
		Kind:       OutcomeBlocked,
		Payment:    p,
		Message:    ErrFraudBlocked.Error(),
		Indicators: indicators,
		Err:        ErrFraudBlocked,
	}
}

func TechnicalFailure(p *Payment, err error) Outcome {
	return Outcome{Kind: OutcomeTechnicalFailure, Payment: p, Message: err.Error(), Err: err}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeAuthorizationRequired
}
