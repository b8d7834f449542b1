package app

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apperror"
	"github.com/fd1az/gaswatch/internal/logger"
)

const (
	tracerName = "github.com/fd1az/gaswatch/business/basefee/app"
	meterName  = "github.com/fd1az/gaswatch/business/basefee/app"
)

// fallbackDelay is used if a policy ever reports backoff.Stop.
const fallbackDelay = 3 * time.Second

// supervisorMetrics holds OTEL metric instruments.
type supervisorMetrics struct {
	headersReceived metric.Int64Counter
	reconnects      metric.Int64Counter
	connectionState metric.Int64Gauge
	blockLatency    metric.Float64Histogram
}

// Supervisor owns the node connection. It connects, subscribes to new
// heads, and on any failure waits for the backoff policy and starts over,
// forever, until its context is cancelled.
//
// State changes and headers are published on Events in the order they
// happen. Events is closed when Run returns.
type Supervisor struct {
	connector Connector
	policy    backoff.BackOff
	logger    logger.LoggerInterface
	clock     Clock

	events chan domain.Event

	mu      sync.RWMutex
	state   domain.ConnectionState
	attempt int

	tracer  trace.Tracer
	metrics *supervisorMetrics
}

// NewSupervisor creates a Supervisor in the Disconnected state.
func NewSupervisor(connector Connector, policy backoff.BackOff, log logger.LoggerInterface, clock Clock) (*Supervisor, error) {
	s := &Supervisor{
		connector: connector,
		policy:    policy,
		logger:    log,
		clock:     clock,
		events:    make(chan domain.Event, 16),
		state:     domain.StateDisconnected,
		tracer:    otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err), apperror.WithContext("init supervisor metrics"))
	}

	return s, nil
}

func (s *Supervisor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &supervisorMetrics{}

	s.metrics.headersReceived, err = meter.Int64Counter(
		"gaswatch_headers_received_total",
		metric.WithDescription("Total block headers received from the node"),
		metric.WithUnit("{header}"),
	)
	if err != nil {
		return err
	}

	s.metrics.reconnects, err = meter.Int64Counter(
		"gaswatch_reconnects_total",
		metric.WithDescription("Total entries into the recovering state"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"gaswatch_connection_state",
		metric.WithDescription("Node connection state (0=disconnected, 1=connecting, 2=live, 3=recovering)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"gaswatch_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Events returns the event stream. There is exactly one consumer.
func (s *Supervisor) Events() <-chan domain.Event {
	return s.events
}

// State returns the current connection state.
func (s *Supervisor) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Attempt returns the reconnect attempt counter. It is zero while Live.
func (s *Supervisor) Attempt() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempt
}

// Run drives the connection until ctx is cancelled. It never gives up on
// its own.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.events)
	defer s.setState(context.WithoutCancel(ctx), domain.StateDisconnected, nil, 0)

	s.logger.Info(ctx, "supervisor started", "endpoint", s.connector.Endpoint())

	for {
		s.setState(ctx, domain.StateConnecting, nil, 0)

		err := s.session(ctx)
		if ctx.Err() != nil {
			s.logger.Info(ctx, "supervisor stopped")
			return
		}

		delay := s.enterRecovering(ctx, err)

		s.logger.Warn(ctx, "connection lost, reconnecting",
			"error", err, "attempt", s.Attempt(), "delay", delay)

		if err := sleep(ctx, s.clock, delay); err != nil {
			s.logger.Info(ctx, "supervisor stopped while recovering")
			return
		}
	}
}

// session connects, subscribes and forwards headers until the stream ends.
// It always returns a non-nil error.
func (s *Supervisor) session(ctx context.Context) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := conn.Subscribe(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeEthereumSubscribeFailed, "subscribe new heads")
	}
	defer sub.Unsubscribe()

	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()
	s.policy.Reset()

	s.setState(ctx, domain.StateLive, nil, 0)
	s.logger.Info(ctx, "listening for new blocks", "endpoint", s.connector.Endpoint())

	headers := sub.Headers()
	malformed := sub.Malformed()
	errs := sub.Err()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok || err == nil {
				return apperror.New(apperror.CodeSubscriptionEnded)
			}
			return apperror.Wrap(err, apperror.CodeEthereumSubscribeFailed, "subscription error")

		case block, ok := <-headers:
			if !ok {
				return apperror.New(apperror.CodeSubscriptionEnded)
			}
			if block == nil {
				continue
			}
			s.forward(ctx, block)

		case reason := <-malformed:
			if reason == nil {
				continue
			}
			s.logger.Warn(ctx, "node sent an undecodable header", "error", reason)
			s.emit(ctx, domain.MalformedEvent(reason, s.clock.Now()))
		}
	}
}

func (s *Supervisor) connect(ctx context.Context) (Connection, error) {
	ctx, span := s.tracer.Start(ctx, "supervisor.connect",
		trace.WithAttributes(
			attribute.String("endpoint", s.connector.Endpoint()),
			attribute.Int("attempt", s.Attempt()),
		),
	)
	defer span.End()

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return nil, apperror.Wrap(err, apperror.CodeEthereumConnectionFailed, s.connector.Endpoint())
	}

	span.SetStatus(codes.Ok, "connected")
	return conn, nil
}

// enterRecovering moves to Recovering and returns how long to wait.
func (s *Supervisor) enterRecovering(ctx context.Context, reason error) time.Duration {
	s.mu.Lock()
	s.attempt++
	s.mu.Unlock()

	delay := s.policy.NextBackOff()
	if delay == backoff.Stop || delay < 0 {
		delay = fallbackDelay
	}

	s.metrics.reconnects.Add(ctx, 1)
	s.setState(ctx, domain.StateRecovering, reason, delay)

	return delay
}

func (s *Supervisor) forward(ctx context.Context, block *domain.Block) {
	now := s.clock.Now()

	s.metrics.headersReceived.Add(ctx, 1)
	s.metrics.blockLatency.Record(ctx, float64(block.Latency(now).Milliseconds()))

	s.logger.Debug(ctx, "header received",
		"number", block.Number,
		"hash", block.Hash.Hex()[:10],
		"latency_ms", block.Latency(now).Milliseconds())

	s.emit(ctx, domain.HeaderEvent(block, now))
}

// setState records a transition and publishes it. delay is the wait before
// the next attempt when entering Recovering.
func (s *Supervisor) setState(ctx context.Context, state domain.ConnectionState, reason error, delay time.Duration) {
	s.mu.Lock()
	from := s.state
	if !domain.CanTransition(from, state) {
		s.mu.Unlock()
		s.logger.Error(ctx, "invalid state transition", "from", from, "to", state)
		return
	}
	s.state = state
	attempt := s.attempt
	s.mu.Unlock()

	s.metrics.connectionState.Record(ctx, state.Gauge())
	s.logger.Debug(ctx, "connection state", "from", from, "to", state, "attempt", attempt)

	ev := domain.StatusEvent(state, attempt, reason, s.connector.Endpoint(), s.clock.Now())
	ev.Delay = delay

	if state == domain.StateDisconnected {
		// Run is exiting; the consumer may already be gone.
		select {
		case s.events <- ev:
		default:
		}
		return
	}

	s.emit(ctx, ev)
}

func (s *Supervisor) emit(ctx context.Context, ev domain.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
