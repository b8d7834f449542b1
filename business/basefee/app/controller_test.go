package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apperror"
)

func newTestController(t *testing.T) (*Controller, *recordingRenderer, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	renderer := &recordingRenderer{}
	c, err := NewController(DefaultControllerConfig(), domain.NewForecaster(1), renderer, &mockLogger{}, clock)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c, renderer, clock
}

func live() domain.Event {
	return domain.StatusEvent(domain.StateLive, 0, nil, "ws://node.test", time.Time{})
}

func header(b *domain.Block) domain.Event {
	return domain.HeaderEvent(b, time.Time{})
}

func TestController_HeaderEmphasisThenNormal(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(100, 15_000_000, 30_000_000, 1_000_000_000)))

	renders := renderer.all()
	if len(renders) != 2 {
		t.Fatalf("expected 2 renders, got %d", len(renders))
	}

	emphasized := renders[1]
	if !emphasized.emphasized {
		t.Error("header render should be emphasized")
	}
	if emphasized.title != "Block #100" {
		t.Errorf("title = %q", emphasized.title)
	}
	for _, want := range []string{"50%", "Base fee       1.00 gwei", "Next base fee  1.00 gwei (+0.00%)"} {
		if !strings.Contains(emphasized.body, want) {
			t.Errorf("body missing %q:\n%s", want, emphasized.body)
		}
	}

	clock.Advance(1999 * time.Millisecond)
	if n := len(renderer.all()); n != 2 {
		t.Fatalf("downgrade fired early, renders = %d", n)
	}

	clock.Advance(time.Millisecond)
	normal := renderer.last()
	if normal.emphasized {
		t.Error("expected normal render after highlight window")
	}
	if normal.body != emphasized.body || normal.title != emphasized.title {
		t.Error("downgrade render should reuse the same data")
	}
	if c.Snapshot().Emphasized {
		t.Error("snapshot should no longer be emphasized")
	}
}

func TestController_HighlightSupersession(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))
	clock.Advance(time.Second)
	c.Handle(ctx, header(testBlock(2, 30_000_000, 30_000_000, 1_000_000_000)))

	// Past H1's deadline, before H2's.
	clock.Advance(1500 * time.Millisecond)
	if n := len(renderer.all()); n != 2 {
		t.Fatalf("H1 downgrade must not fire, renders = %d", n)
	}

	clock.Advance(500 * time.Millisecond)
	renders := renderer.all()
	if len(renders) != 3 {
		t.Fatalf("expected 3 renders, got %d", len(renders))
	}
	if renders[2].emphasized || renders[2].title != "Block #2" {
		t.Errorf("expected normal render of block 2, got %+v", renders[2])
	}
	if !strings.Contains(renders[2].body, "1.13 gwei (+12.50%)") {
		t.Errorf("expected H2 forecast in body:\n%s", renders[2].body)
	}
}

func TestController_InFlightDowngradeLosesToNewHeader(t *testing.T) {
	c, renderer, _ := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))
	stale := c.highlight.gen
	c.Handle(ctx, header(testBlock(2, 15_000_000, 30_000_000, 1_000_000_000)))

	// H1's fire already left the timer when H2 took the lock.
	c.onHighlightExpired(stale)

	if n := len(renderer.all()); n != 2 {
		t.Fatalf("stale downgrade rendered, renders = %d", n)
	}
	if !c.Snapshot().Emphasized {
		t.Error("H2 should still be emphasized")
	}
}

func TestController_StalenessFiresOnce(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	clock.Advance(60 * time.Second)
	if n := renderer.count(TitleStale); n != 1 {
		t.Fatalf("expected 1 stale render, got %d", n)
	}

	clock.Advance(10 * time.Minute)
	if n := renderer.count(TitleStale); n != 1 {
		t.Fatalf("silence must not repeat the notice, got %d", n)
	}

	c.Handle(ctx, header(testBlock(7, 15_000_000, 30_000_000, 1_000_000_000)))
	clock.Advance(59 * time.Second)
	if n := renderer.count(TitleStale); n != 1 {
		t.Fatalf("header should push the window back, got %d", n)
	}

	clock.Advance(time.Second)
	if n := renderer.count(TitleStale); n != 2 {
		t.Fatalf("expected a second notice after the header, got %d", n)
	}

	last := renderer.last()
	if !strings.Contains(last.body, "No new blocks") || !strings.Contains(last.body, "#7") {
		t.Errorf("stale notice should keep the last block:\n%s", last.body)
	}
	if c.Snapshot().Empty() {
		t.Error("staleness must not clear the snapshot")
	}
}

func TestController_RecoveringCancelsTimers(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))

	ev := domain.StatusEvent(domain.StateRecovering, 1, errors.New("EOF"), "ws://node.test", time.Time{})
	ev.Delay = 3 * time.Second
	c.Handle(ctx, ev)

	last := renderer.last()
	if last.title != TitleReconnecting {
		t.Fatalf("expected reconnecting render, got %q", last.title)
	}
	for _, want := range []string{"Connection lost: EOF", "Reconnecting (attempt 1) in 3s"} {
		if !strings.Contains(last.body, want) {
			t.Errorf("body missing %q:\n%s", want, last.body)
		}
	}

	before := len(renderer.all())
	clock.Advance(10 * time.Minute)
	if n := len(renderer.all()); n != before {
		t.Errorf("timers should be cancelled while recovering, got %d new renders", n-before)
	}
}

func TestController_MalformedHeader(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))
	c.Handle(ctx, header(testBlock(2, 0, 0, 1_000_000_000)))

	last := renderer.last()
	if last.title != TitleMalformed {
		t.Fatalf("expected malformed render, got %q", last.title)
	}
	if !strings.Contains(last.body, "gas limit is zero") {
		t.Errorf("body should name the problem:\n%s", last.body)
	}
	if got := c.Snapshot().Block.Number; got != 1 {
		t.Errorf("snapshot should keep block 1, got %d", got)
	}
	if c.State() != domain.StateLive {
		t.Errorf("state = %s, want live", c.State())
	}

	// Block 1's pending downgrade must not redraw over the notice.
	before := len(renderer.all())
	clock.Advance(3 * time.Second)
	if n := len(renderer.all()); n != before {
		t.Errorf("expected no renders after a skipped header, got %d", n-before)
	}
	if got := renderer.last().title; got != TitleMalformed {
		t.Errorf("malformed notice replaced by %q", got)
	}

	c.Handle(ctx, header(testBlock(3, 15_000_000, 30_000_000, 1_000_000_000)))
	if got := renderer.last().title; got != "Block #3" {
		t.Errorf("processing should continue, last title %q", got)
	}
}

func TestController_UndecodableHeader(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))
	prev := c.Snapshot()
	before := len(renderer.all())

	reason := apperror.New(apperror.CodeMalformedHeader, apperror.WithContext("missing required field 'gasLimit'"))
	c.Handle(ctx, domain.MalformedEvent(reason, time.Time{}))

	renders := renderer.all()
	if n := len(renders) - before; n != 1 {
		t.Fatalf("expected 1 render, got %d", n)
	}
	last := renders[len(renders)-1]
	if last.title != TitleMalformed || last.emphasized {
		t.Errorf("unexpected render %q emphasized=%v", last.title, last.emphasized)
	}
	if !strings.Contains(last.body, "Skipped header") || !strings.Contains(last.body, "#1 ") {
		t.Errorf("body should show the notice and keep block 1:\n%s", last.body)
	}

	got := c.Snapshot()
	if got.Seq != prev.Seq || got.Block != prev.Block {
		t.Errorf("snapshot changed: seq %d -> %d", prev.Seq, got.Seq)
	}
	if c.State() != domain.StateLive {
		t.Errorf("state = %s, want live", c.State())
	}

	clock.Advance(3 * time.Second)
	if got := renderer.last().title; got != TitleMalformed {
		t.Errorf("malformed notice replaced by %q", got)
	}

	c.Handle(ctx, header(testBlock(2, 15_000_000, 30_000_000, 1_000_000_000)))
	if got := renderer.last().title; got != "Block #2" {
		t.Errorf("processing should continue, last title %q", got)
	}
}

func TestController_ShutdownSilencesTimers(t *testing.T) {
	c, renderer, clock := newTestController(t)
	ctx := context.Background()

	c.Handle(ctx, live())
	c.Handle(ctx, header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000)))
	gen := c.highlight.gen

	c.Shutdown()
	c.Shutdown()

	before := len(renderer.all())
	clock.Advance(time.Hour)
	c.onHighlightExpired(gen)
	c.onStale(c.staleness.gen)
	c.Handle(ctx, header(testBlock(2, 15_000_000, 30_000_000, 1_000_000_000)))

	if n := len(renderer.all()); n != before {
		t.Errorf("expected no renders after shutdown, got %d", n-before)
	}
}

func TestController_RunStopsWhenEventsClose(t *testing.T) {
	c, renderer, _ := newTestController(t)

	events := make(chan domain.Event, 2)
	events <- live()
	events <- header(testBlock(1, 15_000_000, 30_000_000, 1_000_000_000))
	close(events)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after events closed")
	}

	if n := len(renderer.all()); n != 2 {
		t.Errorf("expected 2 renders, got %d", n)
	}
}
