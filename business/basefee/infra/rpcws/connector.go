// Package rpcws subscribes to new heads with raw JSON-RPC over a plain
// WebSocket, without the go-ethereum RPC client.
package rpcws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/internal/apm"
	"github.com/fd1az/gaswatch/internal/apperror"
	"github.com/fd1az/gaswatch/internal/logger"
	"github.com/fd1az/gaswatch/internal/wsconn"
)

// Config holds configuration for the raw WebSocket connector.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	PingInterval time.Duration // 0 disables keepalive pings
	BufferSize   int
}

// Connector implements app.Connector over wsconn.
type Connector struct {
	config     Config
	httpClient *http.Client
	logger     logger.LoggerInterface
	tracer     apm.Tracer
}

var _ app.Connector = (*Connector)(nil)

// NewConnector creates a connector. httpClient is used for the WebSocket
// handshake and may be nil.
func NewConnector(cfg Config, httpClient *http.Client, log logger.LoggerInterface) (*Connector, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("websocket url is required"))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}

	return &Connector{
		config:     cfg,
		httpClient: httpClient,
		logger:     log,
		tracer:     apm.NewTracer("github.com/fd1az/gaswatch/business/basefee/infra/rpcws"),
	}, nil
}

// Endpoint returns the WebSocket URL.
func (c *Connector) Endpoint() string {
	return c.config.URL
}

// Connect opens the WebSocket.
func (c *Connector) Connect(ctx context.Context) (app.Connection, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "rpcws.connect")
	span.SetAttribute(attribute.String("endpoint", c.config.URL))
	defer span.End()

	wsCfg := wsconn.DefaultConfig(c.config.URL, "rpcws")
	wsCfg.HTTPClient = c.httpClient
	wsCfg.PingInterval = c.config.PingInterval
	if c.config.DialTimeout > 0 {
		wsCfg.DialTimeout = c.config.DialTimeout
	}

	client, err := wsconn.New(wsCfg)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}

	conn := &connection{
		client:     client,
		logger:     c.logger,
		bufferSize: c.config.BufferSize,
		pending:    make(map[uint64]chan rpcMessage),
	}
	client.OnMessage(conn.handle)

	if err := client.Connect(ctx); err != nil {
		span.NoticeError(err)
		return nil, apperror.Wrap(err, apperror.CodeEthereumConnectionFailed, c.config.URL)
	}
	span.SetOK("connected")
	return conn, nil
}

// connection multiplexes call responses and subscription notifications
// arriving on one socket.
type connection struct {
	client     *wsconn.Client
	logger     logger.LoggerInterface
	bufferSize int
	nextID     atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan rpcMessage
	sub     *subscription
}

var _ app.Connection = (*connection)(nil)

// Subscribe issues eth_subscribe("newHeads") and waits for the reply.
func (c *connection) Subscribe(ctx context.Context) (app.Subscription, error) {
	sub := &subscription{
		conn:      c,
		headers:   make(chan *domain.Block, c.bufferSize),
		malformed: make(chan error, c.bufferSize),
		errs:      make(chan error, 1),
		quit:      make(chan struct{}),
	}

	// Installed before the call so no notification can slip past.
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	resp, err := c.call(ctx, methodSubscribe, topicNewHeads)
	if err != nil {
		c.clearSub(sub)
		return nil, apperror.Wrap(err, apperror.CodeEthereumSubscribeFailed, "eth_subscribe newHeads")
	}
	if err := json.Unmarshal(resp, &sub.id); err != nil {
		c.clearSub(sub)
		return nil, apperror.New(apperror.CodeEthereumSubscribeFailed,
			apperror.WithCause(err), apperror.WithContext("subscription id"))
	}

	go sub.watch()
	return sub, nil
}

// call sends a request and waits for the matching response.
func (c *connection) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan rpcMessage, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.client.SendJSON(ctx, req); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.client.Done():
		if err := c.client.Err(); err != nil {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeWebSocketClosed)
	case msg := <-ch:
		if msg.Error != nil {
			return nil, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithContext(fmt.Sprintf("%s: %d %s", method, msg.Error.Code, msg.Error.Message)))
		}
		return msg.Result, nil
	}
}

// handle runs on the socket read goroutine.
func (c *connection) handle(ctx context.Context, data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn(ctx, "discarding unparseable frame", "error", err)
		return
	}

	if msg.ID != nil {
		c.mu.Lock()
		ch, ok := c.pending[*msg.ID]
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		return
	}

	if msg.Method != methodSubscription {
		return
	}

	var params subscriptionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.logger.Warn(ctx, "discarding notification", "error", err)
		return
	}

	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub == nil {
		return
	}

	block, err := domain.DecodeBlock(params.Result)
	if err != nil {
		c.logger.Warn(ctx, "undecodable header", "error", err)
		sub.reject(err)
		return
	}
	sub.deliver(block)
}

func (c *connection) clearSub(sub *subscription) {
	c.mu.Lock()
	if c.sub == sub {
		c.sub = nil
	}
	c.mu.Unlock()
}

func (c *connection) Close() {
	c.client.Close()
}

// subscription is one newHeads stream.
type subscription struct {
	conn      *connection
	id        string
	headers   chan *domain.Block
	malformed chan error
	errs      chan error
	quit      chan struct{}
	once      sync.Once
}

var _ app.Subscription = (*subscription)(nil)

// watch ends the stream when the socket drops.
func (s *subscription) watch() {
	select {
	case <-s.quit:
	case <-s.conn.client.Done():
		err := s.conn.client.Err()
		if err == nil {
			err = apperror.New(apperror.CodeWebSocketClosed)
		}
		select {
		case s.errs <- err:
		default:
		}
	}
}

func (s *subscription) deliver(block *domain.Block) {
	select {
	case s.headers <- block:
	case <-s.quit:
	}
}

func (s *subscription) reject(err error) {
	select {
	case s.malformed <- err:
	case <-s.quit:
	}
}

func (s *subscription) Headers() <-chan *domain.Block { return s.headers }
func (s *subscription) Malformed() <-chan error       { return s.malformed }
func (s *subscription) Err() <-chan error             { return s.errs }

// Unsubscribe stops delivery and tells the node, best effort.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		s.conn.clearSub(s)

		if !s.conn.client.IsConnected() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := s.conn.call(ctx, methodUnsubscribe, s.id); err != nil {
			s.conn.logger.Debug(ctx, "eth_unsubscribe failed", "error", err)
		}
	})
}
