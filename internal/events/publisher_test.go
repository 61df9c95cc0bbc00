package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/payment-orchestrator/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
	err    error
}

func (s *recordingSink) Send(_ context.Context, e Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func samplePayment() *domain.Payment {
	corr := "corr-1"
	return &domain.Payment{
		ID:            uuid.New(),
		TransactionID: "TXN-ABC",
		Type:          domain.PaymentTypeInternalTransfer,
		Status:        domain.PaymentStatusFailed,
		UserID:        uuid.New(),
		FromAccountID: uuid.New(),
		Amount:        decimal.RequireFromString("42.00"),
		Currency:      "EUR",
		CorrelationID: &corr,
	}
}

func TestAsyncPublisher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	pub := NewAsyncPublisher(sink, 8, discard)
	pub.Start()

	p := samplePayment()
	pub.Publish(context.Background(), TransactionCompleted(p))
	pub.Publish(context.Background(), PaymentFailed(p, "boom", "LEDGER_UNAVAILABLE"))
	pub.Close()

	got := sink.Events()
	require.Len(t, got, 2)
	assert.Equal(t, TypeTransactionCompleted, got[0].EventType)
	assert.Equal(t, TypePaymentFailed, got[1].EventType)
	assert.Equal(t, "corr-1", got[0].CorrelationID)
	assert.Equal(t, "payment-service", got[0].Source)
	assert.Equal(t, "1.0", got[0].Version)
}

func TestAsyncPublisher_StartReturns(t *testing.T) {
	sink := &recordingSink{}
	pub := NewAsyncPublisher(sink, 4, discard)

	returned := make(chan struct{})
	go func() {
		pub.Start()
		pub.Start()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Start blocked the caller")
	}

	pub.Publish(context.Background(), TransactionCompleted(samplePayment()))
	pub.Close()
	assert.Len(t, sink.Events(), 1)
}

func TestAsyncPublisher_NeverBlocks(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	pub := NewAsyncPublisher(sink, 1, discard)
	pub.Start()

	p := samplePayment()
	done := make(chan struct{})
	go func() {
		for range 100 {
			pub.Publish(context.Background(), FraudDetected(p, []string{"HIGH_VELOCITY"}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled sink")
	}

	close(sink.block)
	pub.Close()
	assert.LessOrEqual(t, len(sink.Events()), 2)
}

func TestAsyncPublisher_SinkErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("queue unavailable")}
	pub := NewAsyncPublisher(sink, 4, discard)
	pub.Start()

	pub.Publish(context.Background(), TransactionCompleted(samplePayment()))
	pub.Close()

	assert.Len(t, sink.Events(), 1)
}

func TestAsyncPublisher_PublishAfterClose(t *testing.T) {
	sink := &recordingSink{}
	pub := NewAsyncPublisher(sink, 4, discard)
	pub.Start()
	pub.Close()

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), TransactionCompleted(samplePayment()))
	})
	assert.Empty(t, sink.Events())
}

func TestFraudDetected_Payload(t *testing.T) {
	e := FraudDetected(samplePayment(), []string{"HIGH_VELOCITY"})
	payload, ok := e.Payload.(FraudDetectedPayload)
	require.True(t, ok)
	assert.Equal(t, "FRAUD_BLOCKED", payload.FraudType)
	assert.Equal(t, "HIGH", payload.Severity)
	assert.Equal(t, []string{"HIGH_VELOCITY"}, payload.Indicators)
}

type fakeSQS struct {
	sqsiface.SQSAPI
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessageWithContext(_ aws.Context, in *sqs.SendMessageInput, _ ...request.Option) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSSink_Send(t *testing.T) {
	fake := &fakeSQS{}
	sink := newSQSSinkWithClient(fake, "https://sqs.eu-west-1.amazonaws.com/123/payments")

	e := PaymentFailed(samplePayment(), "insufficient funds", "INSUFFICIENT_FUNDS")
	require.NoError(t, sink.Send(context.Background(), e))

	require.NotNil(t, fake.input)
	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123/payments", aws.StringValue(fake.input.QueueUrl))
	assert.Equal(t, "payment.failed", aws.StringValue(fake.input.MessageAttributes["EventType"].StringValue))
	assert.Equal(t, "corr-1", aws.StringValue(fake.input.MessageAttributes["CorrelationID"].StringValue))

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.StringValue(fake.input.MessageBody)), &body))
	assert.Equal(t, "payment.failed", body["eventType"])
	assert.Equal(t, "INSUFFICIENT_FUNDS", body["payload"].(map[string]any)["errorCode"])
}

func TestSQSSink_SendError(t *testing.T) {
	sink := newSQSSinkWithClient(&fakeSQS{err: errors.New("throttled")}, "q")
	require.Error(t, sink.Send(context.Background(), TransactionCompleted(samplePayment())))
}
