package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

// fakeClock fires scheduled functions only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every due function in deadline
// order, outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type render struct {
	body       string
	title      string
	emphasized bool
}

// recordingRenderer keeps every render call.
type recordingRenderer struct {
	mu      sync.Mutex
	renders []render
}

func (r *recordingRenderer) Render(body, title string, emphasized bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, render{body: body, title: title, emphasized: emphasized})
}

func (r *recordingRenderer) all() []render {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]render(nil), r.renders...)
}

func (r *recordingRenderer) count(title string) int {
	n := 0
	for _, rd := range r.all() {
		if rd.title == title {
			n++
		}
	}
	return n
}

func (r *recordingRenderer) last() render {
	all := r.all()
	if len(all) == 0 {
		return render{}
	}
	return all[len(all)-1]
}

// fakeSub is a Subscription driven by the test.
type fakeSub struct {
	headers      chan *domain.Block
	malformed    chan error
	errs         chan error
	unsubscribed atomic.Bool
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		headers:   make(chan *domain.Block, 8),
		malformed: make(chan error, 8),
		errs:      make(chan error, 1),
	}
}

func (s *fakeSub) Headers() <-chan *domain.Block { return s.headers }
func (s *fakeSub) Malformed() <-chan error       { return s.malformed }
func (s *fakeSub) Err() <-chan error             { return s.errs }
func (s *fakeSub) Unsubscribe()                  { s.unsubscribed.Store(true) }

type fakeConn struct {
	sub    *fakeSub
	subErr error
	closed atomic.Bool
}

func (c *fakeConn) Subscribe(ctx context.Context) (Subscription, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	return c.sub, nil
}

func (c *fakeConn) Close() { c.closed.Store(true) }

type connectResult struct {
	conn *fakeConn
	err  error
}

// fakeConnector returns results in order, then fails forever.
type fakeConnector struct {
	mu      sync.Mutex
	results []connectResult
	calls   int
}

func (f *fakeConnector) Connect(ctx context.Context) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i >= len(f.results) {
		return nil, errors.New("connection refused")
	}
	if f.results[i].err != nil {
		return nil, f.results[i].err
	}
	return f.results[i].conn, nil
}

func (f *fakeConnector) Endpoint() string { return "ws://node.test" }

func testBlock(number, gasUsed, gasLimit uint64, baseFee int64) *domain.Block {
	return &domain.Block{
		Number:    number,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		GasUsed:   gasUsed,
		GasLimit:  gasLimit,
		BaseFee:   big.NewInt(baseFee),
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
