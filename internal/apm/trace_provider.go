// Package apm sets up OpenTelemetry tracing.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/gaswatch/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPProvider     Provider = "otlp"      // gRPC
	OTLPHTTPProvider Provider = "otlp-http" // http/protobuf
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "none"
)

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

// Config selects and addresses a span exporter.
type Config struct {
	Provider Provider
	Endpoint string
	Headers  string // comma separated key=value pairs
}

type TracerOptions struct {
	exporter           sdktrace.SpanExporter
	tracerProviderName string
	useEmpty           bool
}

type TracerOption func(*TracerOptions) error

// WithProvider picks the exporter named by cfg.Provider. Unknown names fall
// back to the empty provider.
func WithProvider(cfg Config, log logger.LoggerInterface) TracerOption {
	switch cfg.Provider {
	case ZipkinProvider:
		return useZipkin(cfg.Endpoint)
	case OTLPProvider:
		return useOTLPGRPC(cfg.Endpoint, cfg.Headers)
	case OTLPHTTPProvider:
		return useOTLPHTTP(cfg.Endpoint, cfg.Headers)
	case ConsoleProvider:
		return useConsole()
	case EmptyProvider, "":
		return useEmpty()
	}

	log.Warn(context.Background(), "trace provider not found, using empty provider", "provider", cfg.Provider)
	return useEmpty()
}

func useEmpty() TracerOption {
	return func(option *TracerOptions) error {
		option.useEmpty = true
		option.tracerProviderName = string(EmptyProvider)
		return nil
	}
}

func useConsole() TracerOption {
	return func(option *TracerOptions) error {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}

		option.exporter = exp
		option.tracerProviderName = string(ConsoleProvider)
		return nil
	}
}

func useZipkin(url string) TracerOption {
	return func(option *TracerOptions) error {
		exp, err := zipkin.New(url)
		if err != nil {
			return err
		}

		option.exporter = exp
		option.tracerProviderName = string(ZipkinProvider)
		return nil
	}
}

func useOTLPGRPC(url, headers string) TracerOption {
	return func(option *TracerOptions) error {
		h, err := ParseHeaders(headers)
		if err != nil {
			return err
		}

		exp, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpointURL(url),
			otlptracegrpc.WithHeaders(h),
		)
		if err != nil {
			return err
		}

		option.exporter = exp
		option.tracerProviderName = string(OTLPProvider)
		return nil
	}
}

func useOTLPHTTP(url, headers string) TracerOption {
	return func(option *TracerOptions) error {
		h, err := ParseHeaders(headers)
		if err != nil {
			return err
		}

		exp, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpointURL(url),
			otlptracehttp.WithHeaders(h),
		)
		if err != nil {
			return err
		}

		option.exporter = exp
		option.tracerProviderName = string(OTLPHTTPProvider)
		return nil
	}
}

// ParseHeaders parses "k1=v1,k2=v2".
func ParseHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", pair)
		}
		headers[key] = value
	}
	return headers, nil
}

// NewTraceProvider installs a global tracer provider. With the empty
// provider nothing is installed and Stop is a no-op.
func NewTraceProvider(serviceName string, options ...TracerOption) (TraceProvider, error) {
	opts := &TracerOptions{}

	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}

	if opts.useEmpty || opts.exporter == nil {
		return NewEmptyTraceProvider(), nil
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			attribute.String("otel.provider", opts.tracerProviderName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{
		tp,
	}, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
