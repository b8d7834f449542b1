package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/domain"
)

func TestDashboard_ReconnectRendersOnce(t *testing.T) {
	sub1, sub2 := newFakeSub(), newFakeSub()
	conn1, conn2 := &fakeConn{sub: sub1}, &fakeConn{sub: sub2}
	connector := &fakeConnector{results: []connectResult{{conn: conn1}, {conn: conn2}}}

	supervisor, err := NewSupervisor(connector, NewBackoff(BackoffConfig{Delay: 20 * time.Millisecond}), &mockLogger{}, SystemClock())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	renderer := &recordingRenderer{}
	controller, err := NewController(DefaultControllerConfig(), domain.NewForecaster(1), renderer, &mockLogger{}, SystemClock())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	d := NewDashboard(supervisor, controller, &mockLogger{})
	d.Start(context.Background())

	sub1.headers <- testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)
	waitFor(t, "block 1 render", func() bool { return renderer.count("Block #1") > 0 })

	sub1.errs <- errors.New("EOF")
	sub2.headers <- testBlock(2, 15_000_000, 30_000_000, 1_000_000_000)
	waitFor(t, "block 2 render", func() bool { return renderer.count("Block #2") > 0 })

	if n := renderer.count(TitleReconnecting); n != 1 {
		t.Errorf("expected exactly one reconnecting render, got %d", n)
	}

	if state, attempt := supervisor.State(), supervisor.Attempt(); state != domain.StateLive || attempt != 0 {
		t.Errorf("status = %s attempt %d", state, attempt)
	}
	if _, _, ok := controller.HeaderAge(); !ok {
		t.Error("last header time should be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case <-d.Done():
	default:
		t.Error("Done should be closed after Shutdown")
	}
	if !conn2.closed.Load() {
		t.Error("active connection should be closed")
	}
}

func TestDashboard_ShutdownBeforeStart(t *testing.T) {
	supervisor, _ := NewSupervisor(&fakeConnector{}, NewBackoff(BackoffConfig{Delay: time.Second}), &mockLogger{}, SystemClock())
	controller, _ := NewController(DefaultControllerConfig(), domain.NewForecaster(1), &recordingRenderer{}, &mockLogger{}, SystemClock())

	d := NewDashboard(supervisor, controller, &mockLogger{})
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown before Start: %v", err)
	}
}

func TestDashboard_HealthChecks(t *testing.T) {
	supervisor, _ := NewSupervisor(&fakeConnector{}, NewBackoff(BackoffConfig{Delay: time.Second}), &mockLogger{}, SystemClock())
	c, _, clock := newTestController(t)
	d := NewDashboard(supervisor, c, &mockLogger{})
	ctx := context.Background()

	if ok, msg := d.NodeHealthy(ctx); ok {
		t.Errorf("node should be unhealthy before connecting, got %q", msg)
	}
	if ok, msg := d.BlocksHealthy(ctx); ok || msg != "no header received yet" {
		t.Errorf("blocks = %v %q", ok, msg)
	}

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))

	clock.Advance(10 * time.Second)
	if ok, msg := d.BlocksHealthy(ctx); !ok {
		t.Errorf("blocks should be healthy 10s after a header, got %q", msg)
	}

	clock.Advance(DefaultControllerConfig().StaleWindow)
	if ok, msg := d.BlocksHealthy(ctx); ok || msg != "no header for 1m10s" {
		t.Errorf("blocks = %v %q", ok, msg)
	}
}
