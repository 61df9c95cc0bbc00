package saga_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
	"github.com/josh-kwaku/payment-orchestrator/internal/events"
	"github.com/josh-kwaku/payment-orchestrator/internal/fraud"
	"github.com/josh-kwaku/payment-orchestrator/internal/saga"
	"github.com/josh-kwaku/payment-orchestrator/internal/statemachine"
	"github.com/josh-kwaku/payment-orchestrator/internal/testutil"
)

type stubFraud struct {
	result fraud.Result
	err    error
}

func (s *stubFraud) Check(context.Context, *domain.Payment) (fraud.Result, error) {
	return s.result, s.err
}

// failOnStore fails the first move into a given status.
type failOnStore struct {
	*testutil.MemoryStore
	failOn domain.PaymentStatus
}

func (s *failOnStore) Apply(ctx context.Context, p *domain.Payment, from domain.PaymentStatus, t *domain.Transition) error {
	if t != nil && t.To == s.failOn {
		s.failOn = ""
		return errors.New("connection reset")
	}
	return s.MemoryStore.Apply(ctx, p, from, t)
}

type harness struct {
	store     *testutil.MemoryStore
	ledger    *testutil.FakeLedger
	publisher *testutil.RecordingPublisher
	fraud     *stubFraud
	orch      *saga.Orchestrator
	source    *domain.Account
	dest      *domain.Account
}

func newHarness(t *testing.T, executors map[domain.PaymentType]saga.Executor) *harness {
	t.Helper()
	return newHarnessWithStore(t, testutil.NewMemoryStore(), nil, executors)
}

func newHarnessWithStore(t *testing.T, mem *testutil.MemoryStore, store statemachine.Store, executors map[domain.PaymentType]saga.Executor) *harness {
	t.Helper()
	if store == nil {
		store = mem
	}

	source := testutil.NewAccount(uuid.New(), "500.00")
	dest := testutil.NewAccount(uuid.New(), "0.00")
	h := &harness{
		store:     mem,
		ledger:    testutil.NewFakeLedger(source, dest),
		publisher: &testutil.RecordingPublisher{},
		fraud:     &stubFraud{result: fraud.Result{Decision: fraud.DecisionAllow}},
		source:    source,
		dest:      dest,
	}
	if executors == nil {
		executors = map[domain.PaymentType]saga.Executor{
			domain.PaymentTypeMerchantPayment: saga.MerchantExecutor{},
			domain.PaymentTypeSwiftTransfer:   saga.NewSwiftExecutor(decimal.RequireFromString("25.00")),
		}
	}
	h.orch = saga.NewOrchestrator(statemachine.New(store), h.ledger, h.fraud, h.publisher, executors)
	return h
}

func (h *harness) create(t *testing.T, pt domain.PaymentType, amount string) *domain.Payment {
	t.Helper()
	p := testutil.NewPayment(pt, h.source.ID, amount)
	merchant := "SHOP42"
	p.MerchantID = &merchant
	require.NoError(t, h.orch.Machine().Create(context.Background(), p))
	return p
}

func TestExecutePayment_DirectCompletes(t *testing.T) {
	h := newHarness(t, nil)
	p := h.create(t, domain.PaymentTypeMerchantPayment, "100.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	require.Equal(t, domain.OutcomeSuccess, out.Kind, out.Message)
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Equal(t, []domain.PaymentStatus{
		domain.PaymentStatusCreated,
		domain.PaymentStatusValidated,
		domain.PaymentStatusAuthorized,
		domain.PaymentStatusReserved,
		domain.PaymentStatusSent,
		domain.PaymentStatusCompleted,
	}, h.store.Statuses(p.ID))

	assert.True(t, p.FraudCheckPassed)
	require.NotNil(t, p.DebitTransactionID)
	require.NotNil(t, p.ExternalTransactionID)
	assert.True(t, strings.HasPrefix(*p.ExternalTransactionID, "MRC-SHOP42-"))
	require.NotNil(t, p.CompletedAt)

	require.Len(t, h.ledger.Debits, 1)
	assert.Equal(t, p.TransactionID, h.ledger.Debits[0].TransactionID)
	assert.Equal(t, p.IdempotencyKey, h.ledger.Debits[0].IdempotencyKey)
	assert.True(t, h.ledger.Balance(h.source.ID).Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, []events.Type{events.TypeTransactionCompleted}, h.publisher.Types())
}

func TestScreen_SourceAccountChecks(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		status   domain.AccountStatus
		getErr   error
		wantKind domain.OutcomeKind
		wantErr  error
	}{
		{"insufficient balance", "900.00", domain.AccountStatusActive, nil, domain.OutcomeRejected, domain.ErrInsufficientFunds},
		{"frozen account", "10.00", domain.AccountStatusFrozen, nil, domain.OutcomeRejected, domain.ErrAccountInactive},
		{"account missing", "10.00", domain.AccountStatusActive, domain.ErrAccountNotFound, domain.OutcomeRejected, domain.ErrAccountNotFound},
		{"ledger down", "10.00", domain.AccountStatusActive, domain.ErrLedgerUnavailable, domain.OutcomeTechnicalFailure, domain.ErrLedgerUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.source.Status = tt.status
			h.ledger.GetErr = tt.getErr
			p := h.create(t, domain.PaymentTypeMerchantPayment, tt.amount)

			out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.ErrorIs(t, out.Err, tt.wantErr)
			assert.Equal(t, domain.PaymentStatusRejected, p.Status)
			assert.Empty(t, h.ledger.Debits)
			assert.Equal(t, []events.Type{events.TypePaymentFailed}, h.publisher.Types())
		})
	}
}

func TestScreen_FraudBlockNeverDebits(t *testing.T) {
	h := newHarness(t, nil)
	h.fraud.result = fraud.Result{Decision: fraud.DecisionBlock, Indicators: []string{fraud.IndicatorHighVelocity}}
	p := h.create(t, domain.PaymentTypeMerchantPayment, "100.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeBlocked, out.Kind)
	assert.Equal(t, []string{fraud.IndicatorHighVelocity}, out.Indicators)
	assert.Equal(t, domain.PaymentStatusRejected, p.Status)
	assert.Zero(t, h.ledger.PostingCount())
	assert.Equal(t, []events.Type{events.TypeFraudDetected, events.TypePaymentFailed}, h.publisher.Types())

	failed := h.publisher.Events()[1].Payload.(events.PaymentFailedPayload)
	assert.Equal(t, "FRAUD_BLOCKED", failed.ErrorCode)
}

func TestScreen_RequireMFAHoldsPayment(t *testing.T) {
	h := newHarness(t, nil)
	h.fraud.result = fraud.Result{Decision: fraud.DecisionRequireMFA, Indicators: []string{fraud.IndicatorHighAmount}}
	p := h.create(t, domain.PaymentTypeMerchantPayment, "100.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeAuthorizationRequired, out.Kind)
	assert.True(t, out.OK())
	assert.Equal(t, domain.PaymentStatusValidated, p.Status)
	assert.True(t, p.ScaRequired)
	assert.Empty(t, h.ledger.Debits)

	stored, err := h.store.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, stored.ScaRequired)

	require.NoError(t, h.orch.Machine().Transition(context.Background(), p, domain.PaymentStatusAuthorized,
		func(next *domain.Payment) { next.ScaVerified = true },
	))
	resumed := h.orch.Resume(context.Background(), p)
	assert.Equal(t, domain.OutcomeSuccess, resumed.Kind)
	assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
	assert.Len(t, h.ledger.Debits, 1)
}

func TestScreen_FraudDetectorError(t *testing.T) {
	t.Run("held for authentication", func(t *testing.T) {
		h := newHarness(t, nil)
		h.fraud.err = errors.New("history unavailable")
		p := h.create(t, domain.PaymentTypeMerchantPayment, "100.00")

		out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

		assert.Equal(t, domain.OutcomeAuthorizationRequired, out.Kind)
		assert.Equal(t, domain.PaymentStatusValidated, p.Status)
	})

	t.Run("fail closed rejects", func(t *testing.T) {
		h := newHarness(t, nil)
		h.fraud.err = errors.New("history unavailable")
		p := h.create(t, domain.PaymentTypeMerchantPayment, "100.00")

		out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{FailClosed: true})

		assert.Equal(t, domain.OutcomeRejected, out.Kind)
		assert.Equal(t, domain.PaymentStatusRejected, p.Status)
		assert.Empty(t, h.ledger.Debits)
	})
}

func TestProceed_ExecutorFailureCompensates(t *testing.T) {
	failing := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
		return saga.Result{}, &saga.ExternalError{Code: "AM04", Reason: "insufficient liquidity", Err: domain.ErrClearingRejected}
	})
	h := newHarness(t, map[domain.PaymentType]saga.Executor{domain.PaymentTypeSEPATransfer: failing})
	p := h.create(t, domain.PaymentTypeSEPATransfer, "120.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrClearingRejected)
	assert.Equal(t, domain.PaymentStatusCompensated, p.Status)
	require.NotNil(t, p.CompensationTransactionID)
	require.NotNil(t, p.FailureReason)

	require.Len(t, h.ledger.Credits, 1)
	credit := h.ledger.Credits[0]
	assert.Equal(t, h.source.ID, credit.AccountID)
	assert.True(t, credit.Amount.Equal(p.Amount))
	assert.Equal(t, "COMP-"+p.TransactionID, credit.TransactionID)
	assert.Equal(t, "COMP-"+p.IdempotencyKey, credit.IdempotencyKey)
	assert.True(t, h.ledger.Balance(h.source.ID).Equal(decimal.RequireFromString("500.00")))

	published := h.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, "AM04", published[0].Payload.(events.PaymentFailedPayload).ErrorCode)
}

func TestProceed_CompensationFailureMarksPending(t *testing.T) {
	failing := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
		return saga.Result{}, domain.ErrOperatorRejected
	})
	h := newHarness(t, map[domain.PaymentType]saga.Executor{domain.PaymentTypeMobileRecharge: failing})
	h.ledger.CreditErrs = []error{domain.ErrLedgerUnavailable}
	p := h.create(t, domain.PaymentTypeMobileRecharge, "20.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrCompensationFailed)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.True(t, p.CompensationPending)
	assert.Nil(t, p.CompensationTransactionID)
	require.NotNil(t, p.FailureReason)
	assert.True(t, strings.HasPrefix(*p.FailureReason, "compensation failed:"))

	failed := h.publisher.Events()[0].Payload.(events.PaymentFailedPayload)
	assert.Equal(t, "COMPENSATION_FAILED", failed.ErrorCode)
}

func TestProceed_DebitRetriedOnceWithSameKey(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.DebitErrs = []error{domain.ErrLedgerUnavailable}
	p := h.create(t, domain.PaymentTypeMerchantPayment, "50.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeSuccess, out.Kind)
	require.Len(t, h.ledger.Debits, 2)
	assert.Equal(t, h.ledger.Debits[0].IdempotencyKey, h.ledger.Debits[1].IdempotencyKey)
	assert.True(t, h.ledger.Balance(h.source.ID).Equal(decimal.RequireFromString("450.00")))
}

func TestProceed_DebitOutcomeUnknownFails(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.DebitErrs = []error{domain.ErrLedgerUnavailable, domain.ErrLedgerUnavailable}
	p := h.create(t, domain.PaymentTypeMerchantPayment, "50.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	assert.Equal(t, domain.PaymentStatusFailed, p.Status)
	assert.Empty(t, h.ledger.Credits)
}

func TestProceed_DebitDeclinedRejects(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.DebitErrs = []error{domain.ErrInsufficientFunds}
	p := h.create(t, domain.PaymentTypeMerchantPayment, "50.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.Equal(t, domain.PaymentStatusRejected, p.Status)
	assert.Len(t, h.ledger.Debits, 1)
	assert.Empty(t, h.ledger.Credits)
}

func TestProceed_RecordFailureAfterExecuteCompensatesWithRefs(t *testing.T) {
	mem := testutil.NewMemoryStore()
	store := &failOnStore{MemoryStore: mem, failOn: domain.PaymentStatusSent}
	ref := "CBS-SEPA-1"
	exec := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
		return saga.Result{Changes: []statemachine.Change{func(p *domain.Payment) {
			p.ExternalTransactionID = &ref
		}}}, nil
	})
	h := newHarnessWithStore(t, mem, store, map[domain.PaymentType]saga.Executor{domain.PaymentTypeSEPATransfer: exec})
	p := h.create(t, domain.PaymentTypeSEPATransfer, "80.00")

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	assert.Equal(t, domain.PaymentStatusCompensated, p.Status)

	stored, err := mem.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExternalTransactionID)
	assert.Equal(t, ref, *stored.ExternalTransactionID)
	assert.NotNil(t, stored.CompensationTransactionID)
}

func TestProceed_InternalCreditReversedOnFinalizeFailure(t *testing.T) {
	mem := testutil.NewMemoryStore()
	store := &failOnStore{MemoryStore: mem, failOn: domain.PaymentStatusCompleted}
	var h *harness
	exec := saga.ExecutorFunc(func(ctx context.Context, p *domain.Payment) (saga.Result, error) {
		receipt, err := h.ledger.Credit(ctx, domain.Posting{
			AccountID:      *p.ToAccountID,
			EntryType:      domain.EntryTypeCredit,
			Amount:         p.Amount,
			Currency:       p.Currency,
			TransactionID:  p.TransactionID,
			IdempotencyKey: p.IdempotencyKey + "-credit",
		})
		if err != nil {
			return saga.Result{}, err
		}
		ref := receipt.TransactionID
		return saga.Result{Changes: []statemachine.Change{func(p *domain.Payment) { p.CreditTransactionID = &ref }}}, nil
	})
	h = newHarnessWithStore(t, mem, store, map[domain.PaymentType]saga.Executor{domain.PaymentTypeInternalTransfer: exec})

	p := testutil.NewPayment(domain.PaymentTypeInternalTransfer, h.source.ID, "100.00")
	p.ToAccountID = &h.dest.ID
	require.NoError(t, h.orch.Machine().Create(context.Background(), p))

	out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	assert.Equal(t, domain.PaymentStatusCompensated, p.Status)
	assert.True(t, h.ledger.Balance(h.source.ID).Equal(decimal.RequireFromString("500.00")))
	assert.True(t, h.ledger.Balance(h.dest.ID).IsZero())

	require.Len(t, h.ledger.Debits, 2)
	assert.Equal(t, "REV-"+p.TransactionID, h.ledger.Debits[1].TransactionID)
	assert.Equal(t, h.dest.ID, h.ledger.Debits[1].AccountID)
}

func TestCompletionPolicies(t *testing.T) {
	t.Run("swift awaits settlement", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.create(t, domain.PaymentTypeSwiftTransfer, "200.00")

		out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

		assert.Equal(t, domain.OutcomeSuccess, out.Kind)
		assert.Equal(t, "awaiting settlement confirmation", out.Message)
		assert.Equal(t, domain.PaymentStatusSent, p.Status)
		assert.True(t, p.Fees.Equal(decimal.RequireFromString("25.00")))
		require.NotNil(t, p.UETR)
		_, err := uuid.Parse(*p.UETR)
		assert.NoError(t, err)
		assert.Empty(t, h.publisher.Types())

		settled := h.orch.Settle(context.Background(), p, "SWIFT-REF-9")
		assert.Equal(t, domain.OutcomeSuccess, settled.Kind)
		assert.Equal(t, domain.PaymentStatusCompleted, p.Status)
		assert.Equal(t, "SWIFT-REF-9", *p.ExternalTransactionID)
		assert.Contains(t, h.store.Statuses(p.ID), domain.PaymentStatusSettled)
		assert.Equal(t, []events.Type{events.TypeTransactionCompleted}, h.publisher.Types())
	})

	t.Run("swift settlement rejected compensates", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.create(t, domain.PaymentTypeSwiftTransfer, "200.00")
		h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

		out := h.orch.RejectSettlement(context.Background(), p, "beneficiary bank refused")

		assert.Equal(t, domain.OutcomeRejected, out.Kind)
		assert.Equal(t, domain.PaymentStatusCompensated, p.Status)
		assert.True(t, h.ledger.Balance(h.source.ID).Equal(decimal.RequireFromString("500.00")))
	})

	t.Run("via settlement confirmed synchronously", func(t *testing.T) {
		exec := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
			return saga.Result{Settled: true}, nil
		})
		h := newHarness(t, map[domain.PaymentType]saga.Executor{domain.PaymentTypeSEPATransfer: exec})
		p := h.create(t, domain.PaymentTypeSEPATransfer, "10.00")

		out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

		assert.Equal(t, domain.OutcomeSuccess, out.Kind)
		statuses := h.store.Statuses(p.ID)
		assert.Equal(t, []domain.PaymentStatus{domain.PaymentStatusSent, domain.PaymentStatusSettled, domain.PaymentStatusCompleted}, statuses[len(statuses)-3:])
	})

	t.Run("via settlement pending stays sent", func(t *testing.T) {
		exec := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
			return saga.Result{}, nil
		})
		h := newHarness(t, map[domain.PaymentType]saga.Executor{domain.PaymentTypeSEPATransfer: exec})
		p := h.create(t, domain.PaymentTypeSEPATransfer, "10.00")

		out := h.orch.ExecutePayment(context.Background(), p, saga.ScreenOptions{})

		assert.Equal(t, domain.OutcomeSuccess, out.Kind)
		assert.Equal(t, domain.PaymentStatusSent, p.Status)
	})
}

func TestSettle_RequiresSent(t *testing.T) {
	h := newHarness(t, nil)
	p := h.create(t, domain.PaymentTypeSwiftTransfer, "10.00")

	out := h.orch.Settle(context.Background(), p, "X")

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrInvalidStateTransition)
	assert.Equal(t, domain.PaymentStatusCreated, p.Status)
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		pt   domain.PaymentType
		want saga.CompletionPolicy
	}{
		{domain.PaymentTypeInternalTransfer, saga.Direct},
		{domain.PaymentTypeMerchantPayment, saga.Direct},
		{domain.PaymentTypeMobileRecharge, saga.Direct},
		{domain.PaymentTypeInstantTransfer, saga.Direct},
		{domain.PaymentTypeSEPATransfer, saga.ViaSettlement},
		{domain.PaymentTypeSwiftTransfer, saga.AwaitSettlement},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, saga.PolicyFor(tt.pt), string(tt.pt))
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&saga.ExternalError{Code: "AC04", Err: domain.ErrClearingRejected}, "AC04"},
		{&saga.ExternalError{Err: domain.ErrClearingRejected}, "CLEARING_REJECTED"},
		{domain.ErrClearingTimeout, "CLEARING_TIMEOUT"},
		{domain.ErrInsufficientFunds, "INSUFFICIENT_FUNDS"},
		{errors.New("anything"), "PAYMENT_FAILED"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, saga.ErrorCode(tt.err), tt.err.Error())
	}
}

// ctxLedger and ctxStore refuse work on a cancelled context, like the HTTP
// ledger client and Postgres do.
type ctxLedger struct{ *testutil.FakeLedger }

func (l ctxLedger) Debit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.FakeLedger.Debit(ctx, p)
}

func (l ctxLedger) Credit(ctx context.Context, p domain.Posting) (*domain.PostingReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.FakeLedger.Credit(ctx, p)
}

type ctxStore struct{ *testutil.MemoryStore }

func (s ctxStore) Apply(ctx context.Context, p *domain.Payment, from domain.PaymentStatus, t *domain.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Apply(ctx, p, from, t)
}

func TestProceed_CallerCancelAfterDebitStillCompensates(t *testing.T) {
	mem := testutil.NewMemoryStore()
	source := testutil.NewAccount(uuid.New(), "500.00")
	ledger := testutil.NewFakeLedger(source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := saga.ExecutorFunc(func(context.Context, *domain.Payment) (saga.Result, error) {
		cancel()
		return saga.Result{}, fmt.Errorf("operator call: %w", context.Canceled)
	})
	orch := saga.NewOrchestrator(
		statemachine.New(ctxStore{mem}),
		ctxLedger{ledger},
		&stubFraud{result: fraud.Result{Decision: fraud.DecisionAllow}},
		&testutil.RecordingPublisher{},
		map[domain.PaymentType]saga.Executor{domain.PaymentTypeMobileRecharge: exec},
	)

	p := testutil.NewPayment(domain.PaymentTypeMobileRecharge, source.ID, "100.00")
	require.NoError(t, orch.Machine().Create(ctx, p))

	out := orch.ExecutePayment(ctx, p, saga.ScreenOptions{})

	assert.Equal(t, domain.OutcomeTechnicalFailure, out.Kind)
	require.Len(t, ledger.Debits, 1)
	require.Len(t, ledger.Credits, 1)
	assert.Equal(t, "COMP-"+p.TransactionID, ledger.Credits[0].TransactionID)
	assert.True(t, ledger.Balance(source.ID).Equal(decimal.RequireFromString("500.00")))

	stored, err := mem.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompensated, stored.Status)
	assert.False(t, stored.CompensationPending)
}
