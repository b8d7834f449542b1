package app

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apperror"
	"github.com/fd1az/gaswatch/internal/logger"
)

// ControllerConfig holds the render scheduling windows.
type ControllerConfig struct {
	StaleWindow     time.Duration // silence before a "no new blocks" notice
	HighlightWindow time.Duration // how long a new header stays emphasized
}

// DefaultControllerConfig returns the standard windows.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		StaleWindow:     60 * time.Second,
		HighlightWindow: 2 * time.Second,
	}
}

type controllerMetrics struct {
	renders          metric.Int64Counter
	malformedHeaders metric.Int64Counter
	staleNotices     metric.Int64Counter
}

// Controller decides when the panel is redrawn and with what emphasis.
//
// It owns the display snapshot and both timers. Every path that reads or
// writes the snapshot, including the render call, runs under mu, so a
// render always reflects the latest accepted header.
type Controller struct {
	cfg        ControllerConfig
	forecaster domain.Forecaster
	renderer   Renderer
	logger     logger.LoggerInterface
	clock      Clock

	mu           sync.Mutex
	snapshot     domain.Snapshot
	state        domain.ConnectionState
	lastHeaderAt time.Time
	tornDown     bool

	staleness *RefreshTimer
	highlight *RefreshTimer

	metrics *controllerMetrics
}

// NewController creates a Controller with idle timers.
func NewController(cfg ControllerConfig, forecaster domain.Forecaster, renderer Renderer, log logger.LoggerInterface, clock Clock) (*Controller, error) {
	c := &Controller{
		cfg:        cfg,
		forecaster: forecaster,
		renderer:   renderer,
		logger:     log,
		clock:      clock,
		state:      domain.StateDisconnected,
	}

	c.staleness = NewRefreshTimer(clock, cfg.StaleWindow, c.onStale)
	c.highlight = NewRefreshTimer(clock, cfg.HighlightWindow, c.onHighlightExpired)

	if err := c.initMetrics(); err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err), apperror.WithContext("init controller metrics"))
	}

	return c, nil
}

func (c *Controller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &controllerMetrics{}

	c.metrics.renders, err = meter.Int64Counter(
		"gaswatch_renders_total",
		metric.WithDescription("Total panel renders"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return err
	}

	c.metrics.malformedHeaders, err = meter.Int64Counter(
		"gaswatch_malformed_headers_total",
		metric.WithDescription("Headers skipped because they could not be forecast"),
		metric.WithUnit("{header}"),
	)
	if err != nil {
		return err
	}

	c.metrics.staleNotices, err = meter.Int64Counter(
		"gaswatch_stale_notices_total",
		metric.WithDescription("Times the staleness window elapsed without a header"),
		metric.WithUnit("{notice}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Run consumes supervisor events until ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Handle(ctx, ev)
		}
	}
}

// Handle processes one supervisor event.
func (c *Controller) Handle(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventHeader:
		c.onHeader(ctx, ev.Block)
	case domain.EventMalformed:
		c.onMalformed(ctx, ev.Reason)
	case domain.EventStatus:
		c.onStatus(ctx, ev)
	}
}

func (c *Controller) onStatus(ctx context.Context, ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}
	c.state = ev.State

	if obs, ok := c.renderer.(StatusObserver); ok {
		obs.OnConnectionStatus(ev.State, ev.Attempt, ev.Endpoint)
		if ev.Reason != nil {
			obs.OnError(ev.Reason)
		}
	}

	switch ev.State {
	case domain.StateLive:
		c.staleness.Refresh()
		c.render(ctx, withSnapshot(listeningText(ev), c.snapshot), TitleListening, false)

	case domain.StateConnecting:
		c.stopTimers()
		c.render(ctx, withSnapshot(connectingText(ev), c.snapshot), TitleConnecting, false)

	case domain.StateRecovering:
		c.stopTimers()
		c.render(ctx, withSnapshot(reconnectingText(ev), c.snapshot), TitleReconnecting, false)

	case domain.StateDisconnected:
		c.stopTimers()
		c.render(ctx, withSnapshot("Disconnected.", c.snapshot), TitleDisconnected, false)
	}
}

func (c *Controller) onHeader(ctx context.Context, block *domain.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown || block == nil {
		return
	}

	c.staleness.Refresh()
	c.lastHeaderAt = c.clock.Now()

	if !c.snapshot.Empty() && block.Number <= c.snapshot.Block.Number {
		c.logger.Warn(ctx, "header number did not increase",
			"previous", c.snapshot.Block.Number, "number", block.Number)
	}

	res, err := c.forecaster.ForecastBlock(block)
	if err != nil {
		c.logger.Warn(ctx, "skipping malformed header", "number", block.Number, "error", err)
		c.rejectHeader(ctx, err)
		return
	}

	c.snapshot = domain.Snapshot{
		Seq:        c.snapshot.Seq + 1,
		Block:      block,
		Forecast:   res,
		Emphasized: true,
	}
	c.renderSnapshot(ctx)
	c.highlight.Refresh()
}

// onMalformed handles a notification the node sent that never decoded into
// a header.
func (c *Controller) onMalformed(ctx context.Context, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown {
		return
	}
	if reason == nil {
		reason = apperror.New(apperror.CodeMalformedHeader)
	}

	c.staleness.Refresh()
	c.lastHeaderAt = c.clock.Now()

	c.logger.Warn(ctx, "skipping undecodable header", "error", reason)
	c.rejectHeader(ctx, reason)
}

// rejectHeader renders the skipped-header notice and leaves the snapshot as
// it was. The pending highlight downgrade is cancelled so it cannot redraw
// over the notice. Caller holds mu.
func (c *Controller) rejectHeader(ctx context.Context, err error) {
	c.metrics.malformedHeaders.Add(ctx, 1)
	c.highlight.Stop()
	c.snapshot.Emphasized = false

	if obs, ok := c.renderer.(StatusObserver); ok {
		obs.OnError(err)
	}
	c.render(ctx, withSnapshot(malformedText(err), c.snapshot), TitleMalformed, false)
}

func (c *Controller) onHighlightExpired(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown || !c.highlight.Current(gen) || c.snapshot.Empty() {
		return
	}

	c.snapshot.Emphasized = false
	c.renderSnapshot(ctx)
}

func (c *Controller) onStale(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tornDown || !c.staleness.Current(gen) {
		return
	}

	c.metrics.staleNotices.Add(ctx, 1)
	if obs, ok := c.renderer.(StatusObserver); ok {
		obs.OnStale()
	}
	c.logger.Warn(ctx, "no new blocks", "window", c.cfg.StaleWindow)
	c.render(ctx, withSnapshot(staleText(c.cfg.StaleWindow), c.snapshot), TitleStale, false)
}

// stopTimers cancels both timers. Caller holds mu.
func (c *Controller) stopTimers() {
	c.staleness.Stop()
	c.highlight.Stop()
	c.snapshot.Emphasized = false
}

// renderSnapshot draws the current snapshot. Caller holds mu.
func (c *Controller) renderSnapshot(ctx context.Context) {
	c.render(ctx, FormatSnapshot(c.snapshot), BlockTitle(c.snapshot.Block), c.snapshot.Emphasized)
}

// render calls the renderer. Caller holds mu.
func (c *Controller) render(ctx context.Context, body, title string, emphasized bool) {
	c.metrics.renders.Add(ctx, 1, metric.WithAttributes(attribute.Bool("emphasized", emphasized)))
	c.renderer.Render(body, title, emphasized)
}

// Shutdown stops both timers. Any fire already in flight becomes a no-op,
// as does every later event. Safe to call more than once.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tornDown = true
	c.staleness.Stop()
	c.highlight.Stop()
}

// Snapshot returns a copy of the current display snapshot.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// State returns the last connection state the controller saw.
func (c *Controller) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HeaderAge returns how long ago the last header arrived and the staleness
// window. ok is false when no header has arrived yet.
func (c *Controller) HeaderAge() (age, window time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastHeaderAt.IsZero() {
		return 0, c.cfg.StaleWindow, false
	}
	return c.clock.Now().Sub(c.lastHeaderAt), c.cfg.StaleWindow, true
}
