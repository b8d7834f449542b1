// Package ethereum connects to a node with the go-ethereum client. It
// subscribes to new heads over WebSocket and falls back to polling the
// latest header over HTTP when the WebSocket endpoint is unreachable.
package ethereum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/internal/apperror"
	"github.com/fd1az/gaswatch/internal/circuitbreaker"
	"github.com/fd1az/gaswatch/internal/logger"
	"github.com/fd1az/gaswatch/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/gaswatch/business/basefee/infra/ethereum"
	meterName  = "github.com/fd1az/gaswatch/business/basefee/infra/ethereum"
)

// Config holds configuration for the node connector.
type Config struct {
	WSURL             string        // WebSocket endpoint (primary)
	HTTPURL           string        // HTTP endpoint (fallback)
	DialTimeout       time.Duration // Bound on each dial
	PollInterval      time.Duration // Polling interval for HTTP fallback
	PollRatePerMinute int           // Upper bound on HTTP requests, 0 = unlimited
	BufferSize        int           // Header channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(wsURL, httpURL string) Config {
	return Config{
		WSURL:             wsURL,
		HTTPURL:           httpURL,
		DialTimeout:       10 * time.Second,
		PollInterval:      12 * time.Second, // ~1 block time
		PollRatePerMinute: 30,
		BufferSize:        16,
	}
}

type connectorMetrics struct {
	httpFallbackUsed metric.Int64Counter
	pollErrors       metric.Int64Counter
}

// Connector implements app.Connector with go-ethereum's ethclient.
type Connector struct {
	config     Config
	logger     logger.LoggerInterface
	httpClient *http.Client

	httpCB  *circuitbreaker.CircuitBreaker[json.RawMessage]
	limiter *ratelimit.Limiter

	tracer  trace.Tracer
	metrics *connectorMetrics
}

var _ app.Connector = (*Connector)(nil)

// NewConnector creates a connector. httpClient is used for HTTP JSON-RPC
// and may be nil.
func NewConnector(cfg Config, httpClient *http.Client, log logger.LoggerInterface) (*Connector, error) {
	if cfg.WSURL == "" && cfg.HTTPURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("a websocket or http url is required"))
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}

	c := &Connector{
		config:     cfg,
		logger:     log,
		httpClient: httpClient,
		limiter:    ratelimit.New(cfg.PollRatePerMinute),
		tracer:     otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("eth-http")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.httpCB = circuitbreaker.New[json.RawMessage](httpCfg)

	return c, nil
}

func (c *Connector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &connectorMetrics{}

	c.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"gaswatch_http_fallback_total",
		metric.WithDescription("Times HTTP polling was used instead of WebSocket"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		return err
	}

	c.metrics.pollErrors, err = meter.Int64Counter(
		"gaswatch_poll_errors_total",
		metric.WithDescription("Failed HTTP polls for the latest header"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Endpoint returns the primary endpoint.
func (c *Connector) Endpoint() string {
	if c.config.WSURL != "" {
		return c.config.WSURL
	}
	return c.config.HTTPURL
}

// Connect dials WebSocket first and HTTP second.
func (c *Connector) Connect(ctx context.Context) (app.Connection, error) {
	ctx, span := c.tracer.Start(ctx, "eth.connect",
		trace.WithAttributes(
			attribute.String("ws_url", c.config.WSURL),
			attribute.String("http_url", c.config.HTTPURL),
		),
	)
	defer span.End()

	var wsErr error
	if c.config.WSURL != "" {
		conn, err := c.connectWS(ctx)
		if err == nil {
			span.SetStatus(codes.Ok, "ws")
			return conn, nil
		}
		wsErr = err
		if c.config.HTTPURL == "" {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ws dial failed")
			return nil, err
		}
		c.logger.Warn(ctx, "ws connection failed, trying http fallback", "error", err)
		span.AddEvent("ws_failed_trying_http")
	}

	conn, err := c.connectHTTP(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "both connections failed")
		if wsErr != nil {
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("ws: %s; http", apperror.Reason(wsErr))))
		}
		return nil, err
	}

	if wsErr != nil {
		c.metrics.httpFallbackUsed.Add(ctx, 1)
	}
	span.SetStatus(codes.Ok, "http")
	return conn, nil
}

func (c *Connector) connectWS(ctx context.Context) (*wsConnection, error) {
	ctx, cancel := c.dialContext(ctx)
	defer cancel()

	client, err := rpc.DialContext(ctx, c.config.WSURL)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err), apperror.WithContext("dial ws"))
	}

	return &wsConnection{
		client:     ethclient.NewClient(client),
		bufferSize: c.config.BufferSize,
	}, nil
}

func (c *Connector) connectHTTP(ctx context.Context) (*pollConnection, error) {
	dialCtx, cancel := c.dialContext(ctx)
	defer cancel()

	var opts []rpc.ClientOption
	if c.httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(c.httpClient))
	}

	client, err := rpc.DialOptions(dialCtx, c.config.HTTPURL, opts...)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err), apperror.WithContext("dial http"))
	}
	eth := ethclient.NewClient(client)

	// HTTP dials lazily; probe so that "connected" means reachable.
	if _, err := c.latestHeader(dialCtx, eth); err != nil {
		eth.Close()
		return nil, apperror.Wrap(err, apperror.CodeEthereumConnectionFailed, "probe http")
	}

	return &pollConnection{connector: c, client: eth}, nil
}

func (c *Connector) dialContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.DialTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.DialTimeout)
}

// latestHeader fetches the head through the rate limiter and breaker. The
// header is returned undecoded so a malformed one does not count against
// the breaker.
func (c *Connector) latestHeader(ctx context.Context, client *ethclient.Client) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "eth.poll.block")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := c.httpCB.Execute(func() (json.RawMessage, error) {
		var raw json.RawMessage
		if err := client.Client().CallContext(ctx, &raw, "eth_getBlockByNumber", "latest", false); err != nil {
			return nil, err
		}
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return nil, ethereum.NotFound
		}
		return raw, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err), apperror.WithContext("eth_getBlockByNumber"))
	}

	span.SetStatus(codes.Ok, "polled")
	return raw, nil
}
