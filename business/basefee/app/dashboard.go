package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/logger"
)

// Dashboard runs a Supervisor and feeds its events to a Controller.
type Dashboard struct {
	supervisor *Supervisor
	controller *Controller
	logger     logger.LoggerInterface

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDashboard wires a supervisor to a controller.
func NewDashboard(supervisor *Supervisor, controller *Controller, log logger.LoggerInterface) *Dashboard {
	return &Dashboard{
		supervisor: supervisor,
		controller: controller,
		logger:     log,
	}
}

// Start launches the supervisor and the controller loop. It returns
// immediately.
func (d *Dashboard) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done != nil {
		return
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		d.supervisor.Run(ctx)
	}()

	go func() {
		defer wg.Done()
		// Drain until the supervisor closes the stream so Run never blocks
		// on a send during shutdown.
		d.controller.Run(context.WithoutCancel(ctx), d.supervisor.Events())
	}()

	go func() {
		wg.Wait()
		close(d.done)
	}()
}

// Shutdown tears down the controller first so no timer renders again, then
// cancels the supervisor, which aborts any backoff wait and closes the
// active connection. It waits for both loops or until ctx is done.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	d.controller.Shutdown()

	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		d.logger.Info(ctx, "dashboard stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once both loops have exited. Nil before Start.
func (d *Dashboard) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Snapshot returns the data currently on display.
func (d *Dashboard) Snapshot() domain.Snapshot {
	return d.controller.Snapshot()
}

// NodeHealthy passes while the supervisor is Live.
func (d *Dashboard) NodeHealthy(ctx context.Context) (bool, string) {
	state := d.supervisor.State()
	if state != domain.StateLive {
		return false, fmt.Sprintf("state %s, attempt %d", state, d.supervisor.Attempt())
	}
	return true, d.supervisor.connector.Endpoint()
}

// BlocksHealthy passes while the last header is younger than the
// staleness window.
func (d *Dashboard) BlocksHealthy(ctx context.Context) (bool, string) {
	age, window, ok := d.controller.HeaderAge()
	if !ok {
		return false, "no header received yet"
	}
	if age > window {
		return false, fmt.Sprintf("no header for %s", age.Round(time.Second))
	}
	return true, fmt.Sprintf("last header %s ago", age.Round(time.Second))
}
