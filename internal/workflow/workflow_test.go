package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/payment-orchestrator/internal/clearing"
	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/events"
	"github.com/josh-kwaku/payment-orchestrator/internal/fraud"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
	"github.com/josh-kwaku/payment-orchestrator/internal/telco"
	"github.com/josh-kwaku/payment-orchestrator/internal/testutil"
	"github.com/josh-kwaku/payment-orchestrator/internal/validation"
	"github.com/josh-kwaku/payment-orchestrator/internal/workflow"
)

type fakeClearing struct {
	mu      sync.Mutex
	sepa    *clearing.Result
	instant *clearing.Result
	err     error
	stall   bool
	calls   int
	last    clearing.Transfer
}

func (f *fakeClearing) SubmitSEPA(_ context.Context, t clearing.Transfer) (*clearing.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = t
	return f.sepa, f.err
}

func (f *fakeClearing) SubmitInstant(ctx context.Context, t clearing.Transfer) (*clearing.Result, error) {
	f.mu.Lock()
	f.calls++
	f.last = t
	stall := f.stall
	f.mu.Unlock()

	if stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.instant, f.err
}

type fakeGateway struct {
	result *telco.RechargeResult
	err    error
	last   telco.RechargeRequest
	calls  int
}

func (f *fakeGateway) Recharge(_ context.Context, req telco.RechargeRequest) (*telco.RechargeResult, error) {
	f.calls++
	f.last = req
	return f.result, f.err
}

var paris = mustLoad("Europe/Paris")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type fixture struct {
	store     *testutil.MemoryStore
	ledger    *testutil.FakeLedger
	clearing  *fakeClearing
	gateway   *fakeGateway
	publisher *testutil.RecordingPublisher
	registry  workflow.Registry
	user      uuid.UUID
	source    *domain.Account
	dest      *domain.Account
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	user := uuid.New()
	f := &fixture{
		store:     testutil.NewMemoryStore(),
		clearing:  &fakeClearing{},
		gateway:   &fakeGateway{result: &telco.RechargeResult{Status: telco.RechargeStatusSuccess, OperatorReference: "OP-REF-1"}},
		publisher: &testutil.RecordingPublisher{},
		user:      user,
		source:    testutil.NewAccount(user, "500.00"),
		dest:      testutil.NewAccount(uuid.New(), "0.00"),
	}
	f.ledger = testutil.NewFakeLedger(f.source, f.dest)

	settings := workflow.Settings{
		InstantMaxAmount: decimal.RequireFromString("15000.00"),
		InstantTimeout:   50 * time.Millisecond,
		OperatorTimeout:  50 * time.Millisecond,
		SwiftFee:         decimal.RequireFromString("25.00"),
		SEPACutoff:       16 * time.Hour,
		SEPALocation:     paris,
		Now:              func() time.Time { return now },
	}

	machine := statemachine.New(f.store)
	validator := validation.NewValidator(f.store, validation.Limits{
		Daily:   decimal.RequireFromString("5000.00"),
		Monthly: decimal.RequireFromString("25000.00"),
	}, []string{"SANCTIONED"})
	detector := fraud.NewDetector(f.store, fraud.Config{
		HighAmountThreshold:    decimal.RequireFromString("5000.00"),
		MaxTransactionsPerHour: 10,
	})

	executors := workflow.Executors(workflow.Collaborators{
		Ledger:    f.ledger,
		Clearing:  f.clearing,
		Operators: f.gateway,
	}, settings)
	orch := saga.NewOrchestrator(machine, f.ledger, detector, f.publisher, executors)
	intake := workflow.NewIntake(f.store, validator, f.ledger, machine)
	f.registry = workflow.NewRegistry(intake, orch, settings)
	return f
}

func (f *fixture) request(pt domain.PaymentType, amount string) *domain.PaymentRequest {
	req := &domain.PaymentRequest{
		UserID:         f.user,
		CorrelationID:  "req-1",
		Type:           pt,
		FromAccountID:  f.source.ID,
		Amount:         decimal.RequireFromString(amount),
		Currency:       "EUR",
		IdempotencyKey: uuid.NewString(),
	}
	switch pt {
	case domain.PaymentTypeInternalTransfer:
		req.ToAccountID = &f.dest.ID
	case domain.PaymentTypeSEPATransfer, domain.PaymentTypeInstantTransfer:
		req.ToIBAN = ptr("DE89 3704 0044 0532 0130 00")
		req.BeneficiaryName = ptr("Erika Mustermann")
	case domain.PaymentTypeSwiftTransfer:
		req.ToIBAN = ptr("GB82WEST12345698765432")
		req.BeneficiarySwiftBIC = ptr("NWBKGB2L")
		req.BeneficiaryName = ptr("Jane Smith")
	case domain.PaymentTypeMerchantPayment:
		req.MerchantID = ptr("MERCH-42")
		req.InvoiceReference = ptr("INV-2026-001")
	case domain.PaymentTypeMobileRecharge:
		req.PhoneNumber = ptr("+33 6 87 65 43 21")
	}
	return req
}

func (f *fixture) run(t *testing.T, req *domain.PaymentRequest) domain.Outcome {
	t.Helper()
	s, err := f.registry.Lookup(req.Type)
	require.NoError(t, err)
	return s.Execute(context.Background(), req)
}

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// 14:00 and 17:30 in Paris during winter time.
var (
	beforeCutoff = time.Date(2026, 1, 14, 13, 0, 0, 0, time.UTC)
	afterCutoff  = time.Date(2026, 1, 14, 16, 30, 0, 0, time.UTC)
)

func TestInternalTransfer_Completes(t *testing.T) {
	f := newFixture(t, beforeCutoff)

	out := f.run(t, f.request(domain.PaymentTypeInternalTransfer, "100.00"))

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	p := out.Payment
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.NotNil(t, p.DebitTransactionID)
	assert.NotNil(t, p.CreditTransactionID)
	assert.Equal(t, f.dest.AccountNumber, *p.ToAccountNumber)

	assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("400.00")))
	assert.True(t, f.ledger.Balance(f.dest.ID).Equal(dec("100.00")))
	assert.Len(t, f.ledger.Debits, 1)
	assert.Len(t, f.ledger.Credits, 1)
	assert.Equal(t, []events.Type{events.TypeTransactionCompleted}, f.publisher.Types())
}

func TestInternalTransfer_ByAccountNumber(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	req := f.request(domain.PaymentTypeInternalTransfer, "10.00")
	req.ToAccountID = nil
	req.ToAccountNumber = ptr(f.dest.AccountNumber)

	out := f.run(t, req)

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	assert.Equal(t, f.dest.ID, *out.Payment.ToAccountID)
}

func TestIntake_RefusalsCreateNoPayment(t *testing.T) {
	tests := []struct {
		name    string
		pt      domain.PaymentType
		amount  string
		mutate  func(f *fixture, r *domain.PaymentRequest)
		wantErr error
	}{
		{
			name:    "zero amount",
			pt:      domain.PaymentTypeMerchantPayment,
			amount:  "0",
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "unknown recipient",
			pt:      domain.PaymentTypeInternalTransfer,
			amount:  "10.00",
			mutate:  func(_ *fixture, r *domain.PaymentRequest) { r.ToAccountID = ptr(uuid.New()) },
			wantErr: domain.ErrRecipientNotFound,
		},
		{
			name:    "self transfer",
			pt:      domain.PaymentTypeInternalTransfer,
			amount:  "10.00",
			mutate:  func(f *fixture, r *domain.PaymentRequest) { r.ToAccountID = &f.source.ID },
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "source owned by someone else",
			pt:      domain.PaymentTypeMerchantPayment,
			amount:  "10.00",
			mutate:  func(_ *fixture, r *domain.PaymentRequest) { r.UserID = uuid.New() },
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "unknown source account",
			pt:      domain.PaymentTypeMerchantPayment,
			amount:  "10.00",
			mutate:  func(_ *fixture, r *domain.PaymentRequest) { r.FromAccountID = uuid.New() },
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:    "daily limit",
			pt:      domain.PaymentTypeMerchantPayment,
			amount:  "5000.01",
			wantErr: domain.ErrLimitExceeded,
		},
		{
			name:    "sanctioned beneficiary",
			pt:      domain.PaymentTypeSEPATransfer,
			amount:  "10.00",
			mutate:  func(_ *fixture, r *domain.PaymentRequest) { r.BeneficiaryName = ptr("Sanctioned Trading Ltd") },
			wantErr: domain.ErrSanctionsHit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, beforeCutoff)
			req := f.request(tt.pt, tt.amount)
			if tt.mutate != nil {
				tt.mutate(f, req)
			}

			out := f.run(t, req)

			assert.Equal(t, domain.OutcomeRejected, out.Kind)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Nil(t, out.Payment)
			assert.Zero(t, f.store.Len())
			assert.Zero(t, f.ledger.PostingCount())
		})
	}
}

func TestIdempotency_ReplayReturnsStoredPayment(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	req := f.request(domain.PaymentTypeInternalTransfer, "100.00")

	first := f.run(t, req)
	second := f.run(t, req)

	require.Equal(t, domain.OutcomeSuccess, first.Kind)
	require.Equal(t, domain.OutcomeSuccess, second.Kind)
	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Equal(t, domain.PaymentStatusCompleted, second.Payment.Status)
	assert.Len(t, f.ledger.Debits, 1)
	assert.Equal(t, 1, f.store.Len())
}

func TestIdempotency_KeyReusedWithDifferentRequest(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	req := f.request(domain.PaymentTypeInternalTransfer, "100.00")
	f.run(t, req)

	other := *req
	other.Amount = dec("150.00")
	out := f.run(t, &other)

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrIdempotencyConflict)
	assert.Len(t, f.ledger.Debits, 1)
}

func TestIdempotency_ConcurrentDuplicatesMoveMoneyOnce(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	req := f.request(domain.PaymentTypeInternalTransfer, "100.00")
	s, err := f.registry.Lookup(req.Type)
	require.NoError(t, err)

	const n = 8
	outcomes := make([]domain.Outcome, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := *req
			outcomes[i] = s.Execute(context.Background(), &r)
		}()
	}
	wg.Wait()

	fresh := 0
	for _, out := range outcomes {
		assert.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
		if !out.Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.ledger.Debits, 1)
	assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("400.00")))
}

func TestSEPA_AfterCutoffQueuesWithoutDebit(t *testing.T) {
	f := newFixture(t, afterCutoff)

	out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "250.00"))

	require.Equal(t, domain.OutcomeSuccess, out.Kind)
	assert.Equal(t, "Payment queued for next batch processing", out.Message)
	p := out.Payment
	assert.Equal(t, domain.PaymentStatusReserved, p.Status)
	require.NotNil(t, p.EstimatedCompletionDate)
	assert.Equal(t, afterCutoff.Add(24*time.Hour), *p.EstimatedCompletionDate)
	assert.Nil(t, p.DebitTransactionID)
	assert.Empty(t, f.ledger.Debits)
	assert.Zero(t, f.clearing.calls)
	assert.Equal(t, []domain.PaymentStatus{
		domain.PaymentStatusCreated,
		domain.PaymentStatusValidated,
		domain.PaymentStatusAuthorized,
		domain.PaymentStatusReserved,
	}, f.store.Statuses(p.ID))
}

func TestSEPA_BeforeCutoffSettles(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	f.clearing.sepa = &clearing.Result{
		Status:                clearing.StatusAccepted,
		ExternalTransactionID: "CBS-SEPA-001",
		ISO20022Reference:     "MSG-SEPA-001",
	}

	out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "250.00"))

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	p := out.Payment
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Equal(t, "CBS-SEPA-001", *p.ExternalTransactionID)
	assert.Equal(t, "MSG-SEPA-001", *p.ISO20022MessageReference)
	assert.Contains(t, f.store.Statuses(p.ID), domain.PaymentStatusSettled)

	assert.Equal(t, "FR1420041010050500013M02606", f.clearing.last.FromIBAN)
	assert.Equal(t, "DE89370400440532013000", f.clearing.last.ToIBAN)
	assert.Equal(t, "2026-01-14", f.clearing.last.ExecutionDate)
	assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("250.00")))
}

func TestSEPA_CutoffBoundary(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		queued bool
	}{
		{"exactly at cut-off proceeds", time.Date(2026, 1, 14, 15, 0, 0, 0, time.UTC), false},
		{"one second after queues", time.Date(2026, 1, 14, 15, 0, 1, 0, time.UTC), true},
		{"summer time uses local clock", time.Date(2026, 7, 14, 14, 30, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.now)
			f.clearing.sepa = &clearing.Result{Status: clearing.StatusAccepted}

			out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "10.00"))

			require.Equal(t, domain.OutcomeSuccess, out.Kind)
			if tt.queued {
				assert.Equal(t, domain.PaymentStatusReserved, out.Payment.Status)
			} else {
				assert.Equal(t, domain.PaymentStatusCompleted, out.Payment.Status)
			}
		})
	}
}

func TestSEPA_NotAcceptedCompensates(t *testing.T) {
	for _, status := range []clearing.Status{clearing.StatusPending, clearing.StatusSent} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, beforeCutoff)
			f.clearing.sepa = &clearing.Result{Status: status, ExternalTransactionID: "CBS-SEPA-002"}

			out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "10.00"))

			assert.Equal(t, domain.OutcomeRejected, out.Kind)
			assert.ErrorIs(t, out.Err, domain.ErrClearingRejected)
			assert.Equal(t, domain.PaymentStatusCompensated, out.Payment.Status)
			assert.NotNil(t, out.Payment.CompensationTransactionID)
			assert.NotContains(t, f.store.Statuses(out.Payment.ID), domain.PaymentStatusSent)
			assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("500.00")))
		})
	}
}

func TestSEPA_ClearingRejectionCompensates(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	f.clearing.sepa = &clearing.Result{Status: clearing.StatusRejected, RejectionReason: "closed account"}

	out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "250.00"))

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrClearingRejected)
	assert.Equal(t, domain.PaymentStatusCompensated, out.Payment.Status)
	assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("500.00")))

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "SEPA_REJECTED", published[0].Payload.(events.PaymentFailedPayload).ErrorCode)
}

func TestSEPA_SourceWithoutIBAN(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	f.source.IBAN = nil

	out := f.run(t, f.request(domain.PaymentTypeSEPATransfer, "10.00"))

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrMissingSourceIBAN)
	assert.Zero(t, f.store.Len())
}

func TestInstant_OverCeilingMakesNoLedgerCalls(t *testing.T) {
	f := newFixture(t, beforeCutoff)

	out := f.run(t, f.request(domain.PaymentTypeInstantTransfer, "20000.00"))

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrInstantLimitExceeded)
	assert.ErrorIs(t, out.Err, domain.ErrLimitExceeded)
	assert.Zero(t, f.ledger.Lookups)
	assert.Zero(t, f.ledger.PostingCount())
	assert.Zero(t, f.store.Len())
}

func TestInstant_VelocityBlocksBeforeDebit(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	for range 11 {
		prior := testutil.NewPayment(domain.PaymentTypeInstantTransfer, f.source.ID, "1.00")
		prior.Status = domain.PaymentStatusCompleted
		prior.CreatedAt = time.Now().UTC().Add(-10 * time.Minute)
		f.store.Seed(prior)
	}

	out := f.run(t, f.request(domain.PaymentTypeInstantTransfer, "50.00"))

	assert.Equal(t, domain.OutcomeBlocked, out.Kind)
	assert.Contains(t, out.Indicators, fraud.IndicatorHighVelocity)
	assert.Equal(t, domain.PaymentStatusRejected, out.Payment.Status)
	assert.Empty(t, f.ledger.Debits)
	assert.Zero(t, f.clearing.calls)
	assert.Equal(t, []events.Type{events.TypeFraudDetected, events.TypePaymentFailed}, f.publisher.Types())
}

func TestInstant_AckCompletes(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	f.clearing.instant = &clearing.Result{Status: clearing.StatusAck, ExternalTransactionID: "CBS-INST-1"}

	out := f.run(t, f.request(domain.PaymentTypeInstantTransfer, "50.00"))

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	assert.Equal(t, domain.PaymentStatusCompleted, out.Payment.Status)
	assert.Equal(t, "CBS-INST-1", *out.Payment.ExternalTransactionID)
	assert.NotContains(t, f.store.Statuses(out.Payment.ID), domain.PaymentStatusSettled)
}

func TestInstant_NackAndTimeoutCompensate(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *fakeClearing)
		wantErr  error
		wantCode string
	}{
		{
			name: "nack",
			setup: func(c *fakeClearing) {
				c.instant = &clearing.Result{Status: clearing.StatusNack, ErrorCode: "AM04", RejectionReason: "insufficient liquidity"}
			},
			wantErr:  domain.ErrClearingRejected,
			wantCode: "AM04",
		},
		{
			name:     "scheme timeout",
			setup:    func(c *fakeClearing) { c.instant = &clearing.Result{Status: clearing.StatusTimeout} },
			wantErr:  domain.ErrClearingTimeout,
			wantCode: "CLEARING_TIMEOUT",
		},
		{
			name:     "deadline exceeded",
			setup:    func(c *fakeClearing) { c.stall = true },
			wantErr:  domain.ErrClearingTimeout,
			wantCode: "CLEARING_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, beforeCutoff)
			tt.setup(f.clearing)

			out := f.run(t, f.request(domain.PaymentTypeInstantTransfer, "75.00"))

			assert.Equal(t, domain.OutcomeRejected, out.Kind)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Equal(t, domain.PaymentStatusCompensated, out.Payment.Status)
			assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("500.00")))
			require.Len(t, f.ledger.Credits, 1)
			assert.Equal(t, "COMP-"+out.Payment.TransactionID, f.ledger.Credits[0].TransactionID)

			published := f.publisher.Events()
			require.Len(t, published, 1)
			assert.Equal(t, tt.wantCode, published[0].Payload.(events.PaymentFailedPayload).ErrorCode)
		})
	}
}

func TestMobile_OperatorDetectionMakesNoLedgerCalls(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		country *string
		wantErr error
	}{
		{"unmapped prefix", "+33 9 12 34 56 78", nil, domain.ErrUnknownOperator},
		{"foreign country", "+33 6 87 65 43 21", ptr("BE"), domain.ErrUnknownOperator},
		{"malformed", "06 87 65", nil, domain.ErrInvalidPhoneNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, beforeCutoff)
			req := f.request(domain.PaymentTypeMobileRecharge, "20.00")
			req.PhoneNumber = ptr(tt.phone)
			req.CountryCode = tt.country

			out := f.run(t, req)

			assert.Equal(t, domain.OutcomeRejected, out.Kind)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Zero(t, f.ledger.Lookups)
			assert.Zero(t, f.ledger.PostingCount())
			assert.Zero(t, f.gateway.calls)
		})
	}
}

func TestMobile_RechargeCompletes(t *testing.T) {
	f := newFixture(t, beforeCutoff)

	out := f.run(t, f.request(domain.PaymentTypeMobileRecharge, "20.00"))

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	p := out.Payment
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Equal(t, string(telco.OperatorOrange), *p.OperatorCode)
	assert.Equal(t, "0687654321", *p.PhoneNumber)
	assert.Equal(t, "OP-REF-1", *p.ExternalTransactionID)
	assert.Equal(t, telco.OperatorOrange, f.gateway.last.Operator)
	assert.Equal(t, p.IdempotencyKey, f.gateway.last.IdempotencyKey)
}

func TestMobile_OperatorRejectionCompensates(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	f.gateway.result = &telco.RechargeResult{Status: "FAILED", Message: "line suspended"}
	f.gateway.err = fmt.Errorf("Recharge: status FAILED: %w", domain.ErrOperatorRejected)

	out := f.run(t, f.request(domain.PaymentTypeMobileRecharge, "20.00"))

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrOperatorRejected)
	assert.Equal(t, domain.PaymentStatusCompensated, out.Payment.Status)
	assert.Contains(t, *out.Payment.FailureReason, "line suspended")
	assert.True(t, f.ledger.Balance(f.source.ID).Equal(dec("500.00")))
}

func TestGenericTypes(t *testing.T) {
	t.Run("swift awaits settlement with fee and uetr", func(t *testing.T) {
		f := newFixture(t, beforeCutoff)

		out := f.run(t, f.request(domain.PaymentTypeSwiftTransfer, "300.00"))

		require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
		p := out.Payment
		assert.Equal(t, domain.PaymentStatusSent, p.Status)
		assert.True(t, p.Fees.Equal(dec("25.00")))
		require.NotNil(t, p.UETR)
		assert.Len(t, *p.UETR, 36)
	})

	t.Run("merchant completes with invoice reference", func(t *testing.T) {
		f := newFixture(t, beforeCutoff)

		out := f.run(t, f.request(domain.PaymentTypeMerchantPayment, "42.00"))

		require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
		p := out.Payment
		assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
		assert.Equal(t, "INV-2026-001", *p.Reference)
		assert.Contains(t, *p.ExternalTransactionID, "MRC-MERCH-42-")
	})
}

func TestRegistry_LookupUnknownType(t *testing.T) {
	f := newFixture(t, beforeCutoff)
	_, err := f.registry.Lookup("CHEQUE")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
