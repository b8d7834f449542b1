package apm

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

type mockLogger struct {
	warns int
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               { m.warns++ }
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "x-honeycomb-team=abc", want: map[string]string{"x-honeycomb-team": "abc"}},
		{name: "several", raw: "a=1, b=2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "missing equals", raw: "a", wantErr: true},
		{name: "empty key", raw: "=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeaders(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeaders(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseHeaders(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestNewTraceProvider_UnknownProviderIsEmpty(t *testing.T) {
	log := &mockLogger{}

	tp, err := NewTraceProvider("gaswatch", WithProvider(Config{Provider: "jaeger"}, log))
	if err != nil {
		t.Fatalf("NewTraceProvider() error = %v", err)
	}
	if _, ok := tp.(emptyTraceProvider); !ok {
		t.Errorf("provider = %T, want emptyTraceProvider", tp)
	}
	if log.warns != 1 {
		t.Errorf("warns = %d, want 1", log.warns)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestTraceID(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if got := TraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID() = %q", got)
	}
}

func TestTracer_SpanFromContext(t *testing.T) {
	tracer := NewTracer("apm_test")

	ctx, span := tracer.StartSpanFromContext(context.Background(), "op")
	defer span.End()

	got := tracer.SpanFromContext(ctx)
	if !got.SpanContext().Equal(span.SpanContext()) {
		t.Error("SpanFromContext should return the started span")
	}
}
