package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apperror"
)

// wsConnection streams new heads over an ethclient WebSocket.
type wsConnection struct {
	client     *ethclient.Client
	bufferSize int
	closeOnce  sync.Once
}

var _ app.Connection = (*wsConnection)(nil)

// Subscribe takes newHeads as raw JSON. SubscribeNewHead would end the whole
// subscription on the first header that fails to decode.
func (c *wsConnection) Subscribe(ctx context.Context) (app.Subscription, error) {
	raw := make(chan json.RawMessage, c.bufferSize)

	sub, err := c.client.Client().EthSubscribe(ctx, raw, "newHeads")
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumSubscribeFailed,
			apperror.WithCause(err), apperror.WithContext("eth_subscribe newHeads"))
	}

	s := newHeadSubscription(c.bufferSize, sub.Unsubscribe)
	go s.forward(raw, sub)
	return s, nil
}

func (c *wsConnection) Close() {
	c.closeOnce.Do(c.client.Close)
}

// headSubscription adapts a header source to app.Subscription.
type headSubscription struct {
	headers   chan *domain.Block
	malformed chan error
	errs      chan error
	quit      chan struct{}
	stop      func()
	once      sync.Once
}

var _ app.Subscription = (*headSubscription)(nil)

func newHeadSubscription(bufferSize int, stop func()) *headSubscription {
	return &headSubscription{
		headers:   make(chan *domain.Block, bufferSize),
		malformed: make(chan error, bufferSize),
		errs:      make(chan error, 1),
		quit:      make(chan struct{}),
		stop:      stop,
	}
}

func (s *headSubscription) forward(raw <-chan json.RawMessage, sub ethereum.Subscription) {
	for {
		select {
		case <-s.quit:
			return
		case err := <-sub.Err():
			if err != nil {
				err = apperror.New(apperror.CodeEthereumSubscribeFailed,
					apperror.WithCause(err), apperror.WithContext("newHeads"))
			}
			s.fail(err)
			return
		case msg := <-raw:
			block, err := domain.DecodeBlock(msg)
			if err != nil {
				s.reject(err)
				continue
			}
			s.deliver(block)
		}
	}
}

func (s *headSubscription) deliver(block *domain.Block) bool {
	select {
	case s.headers <- block:
		return true
	case <-s.quit:
		return false
	}
}

func (s *headSubscription) reject(err error) bool {
	select {
	case s.malformed <- err:
		return true
	case <-s.quit:
		return false
	}
}

// fail ends the stream with err; nil means a clean end.
func (s *headSubscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *headSubscription) Headers() <-chan *domain.Block { return s.headers }
func (s *headSubscription) Malformed() <-chan error       { return s.malformed }
func (s *headSubscription) Err() <-chan error             { return s.errs }

func (s *headSubscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		if s.stop != nil {
			s.stop()
		}
	})
}

// pollConnection emulates a head subscription by polling over HTTP.
type pollConnection struct {
	connector *Connector
	client    *ethclient.Client
	closeOnce sync.Once
}

var _ app.Connection = (*pollConnection)(nil)

func (c *pollConnection) Subscribe(ctx context.Context) (app.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := newHeadSubscription(c.connector.config.BufferSize, cancel)

	c.connector.logger.Info(ctx, "starting http polling fallback", "interval", c.connector.config.PollInterval)
	go c.poll(ctx, s)
	return s, nil
}

// poll emits only headers with a higher number than the last one seen and
// ends the stream once the breaker opens. An undecodable head is reported
// once, not on every poll that returns it again.
func (c *pollConnection) poll(ctx context.Context, s *headSubscription) {
	interval := c.connector.config.PollInterval
	if interval <= 0 {
		interval = 12 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	var rejected json.RawMessage
	for {
		raw, err := c.connector.latestHeader(ctx, c.client)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.connector.metrics.pollErrors.Add(ctx, 1)
			c.connector.logger.Error(ctx, "http poll failed", "error", err)
			if apperror.GetCode(err) == apperror.CodeCircuitOpen {
				s.fail(err)
				return
			}
		} else if block, err := domain.DecodeBlock(raw); err != nil {
			if !bytes.Equal(raw, rejected) {
				rejected = raw
				c.connector.logger.Warn(ctx, "undecodable head", "error", err)
				if !s.reject(err) {
					return
				}
			}
		} else if block.Number > last {
			last = block.Number
			if !s.deliver(block) {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *pollConnection) Close() {
	c.closeOnce.Do(c.client.Close)
}
