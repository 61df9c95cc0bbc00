package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/josh-kwaku/payment-orchestrator/internal/logging"
)

// Publisher emits domain events. Publish must never block the caller or
// report failure; delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink delivers a single event to a transport.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

const sendTimeout = 5 * time.Second

// AsyncPublisher queues events in a bounded buffer and delivers them from a
// background goroutine. When the buffer is full the event is dropped.
type AsyncPublisher struct {
	sink   Sink
	queue  chan Event
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	start  sync.Once
	done   chan struct{}
}

func NewAsyncPublisher(sink Sink, bufferSize int, logger *slog.Logger) *AsyncPublisher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &AsyncPublisher{
		sink:   sink,
		queue:  make(chan Event, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (p *AsyncPublisher) Publish(ctx context.Context, e Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		logging.FromContext(ctx).Warn("event dropped, publisher closed",
			"event_type", e.EventType,
			"event_id", e.EventID,
		)
		return
	}

	select {
	case p.queue <- e:
	default:
		logging.FromContext(ctx).Warn("event dropped, publish buffer full",
			"event_type", e.EventType,
			"event_id", e.EventID,
		)
	}
}

// Start launches the delivery goroutine and returns. Calling it again is a
// no-op. Events still queued at Close are drained before Close returns.
func (p *AsyncPublisher) Start() {
	p.start.Do(func() { go p.run() })
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for e := range p.queue {
		p.deliver(e)
	}
}

func (p *AsyncPublisher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := p.sink.Send(ctx, e); err != nil {
		p.logger.Error("event delivery failed",
			"event_type", e.EventType,
			"event_id", e.EventID,
			"correlation_id", e.CorrelationID,
			"error", err,
		)
		return
	}
	p.logger.Debug("event delivered", "event_type", e.EventType, "event_id", e.EventID)
}

// Close stops accepting events and waits for Start to drain the queue.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

// LogSink writes events to the structured log. Used when no queue is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, e Event) error {
	s.logger.Info("domain event",
		"event_type", e.EventType,
		"event_id", e.EventID,
		"correlation_id", e.CorrelationID,
		"payload", e.Payload,
	)
	return nil
}
