// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/fd1az/gaswatch/internal/apperror"
)

// Transport selects the node client used for the header subscription.
const (
	TransportEthclient = "ethclient" // go-ethereum ethclient, WS with HTTP polling fallback
	TransportRPCWS     = "rpcws"     // raw eth_subscribe over a plain WebSocket
)

// Backoff policies for reconnects.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"` // TUI mode only; empty discards logs
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	HTTPURL           string        `mapstructure:"http_url"`
	Transport         string        `mapstructure:"transport"`
	ChainID           uint64        `mapstructure:"chain_id"`
	Backoff           string        `mapstructure:"backoff"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollRatePerMinute int           `mapstructure:"poll_rate_per_minute"`
}

// DashboardConfig holds render scheduling windows.
type DashboardConfig struct {
	StaleWindow     time.Duration `mapstructure:"stale_window"`
	HighlightWindow time.Duration `mapstructure:"highlight_window"`
	TUIMode         bool          `mapstructure:"-"` // Set at runtime, not from config file
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin, otlp, otlp-http, console, none
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds health endpoint configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("GASWATCH")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "GASWATCH_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "GASWATCH_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "GASWATCH_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.log_file", "GASWATCH_LOG_FILE")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "GASWATCH_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "GASWATCH_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.transport", "GASWATCH_ETH_TRANSPORT")
	v.BindEnv("ethereum.chain_id", "GASWATCH_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.reconnect_delay", "GASWATCH_RECONNECT_DELAY")

	// Dashboard
	v.BindEnv("dashboard.stale_window", "GASWATCH_STALE_WINDOW")
	v.BindEnv("dashboard.highlight_window", "GASWATCH_HIGHLIGHT_WINDOW")

	// Telemetry
	v.BindEnv("telemetry.enabled", "GASWATCH_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "GASWATCH_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "GASWATCH_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.trace_provider", "GASWATCH_OTEL_TRACE_PROVIDER")
	v.BindEnv("telemetry.otlp_headers", "GASWATCH_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "gaswatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults (geth --ws)
	v.SetDefault("ethereum.websocket_url", "ws://127.0.0.1:8546")
	v.SetDefault("ethereum.transport", TransportEthclient)
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.backoff", BackoffConstant)
	v.SetDefault("ethereum.reconnect_delay", "3s")
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.dial_timeout", "10s")
	v.SetDefault("ethereum.poll_interval", "12s") // ~1 block time
	v.SetDefault("ethereum.poll_rate_per_minute", 30)

	// Dashboard defaults
	v.SetDefault("dashboard.stale_window", "60s")
	v.SetDefault("dashboard.highlight_window", "2s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "gaswatch")
	v.SetDefault("telemetry.trace_provider", "none")
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf(format, args...)))
	}

	switch c.Ethereum.Transport {
	case TransportEthclient:
		if c.Ethereum.WebSocketURL == "" && c.Ethereum.HTTPURL == "" {
			return invalid("ethereum.websocket_url or ethereum.http_url is required")
		}
	case TransportRPCWS:
		if c.Ethereum.WebSocketURL == "" {
			return invalid("ethereum.websocket_url is required for transport %q", TransportRPCWS)
		}
	default:
		return invalid("unknown ethereum.transport %q", c.Ethereum.Transport)
	}

	for key, raw := range map[string]string{
		"ethereum.websocket_url": c.Ethereum.WebSocketURL,
		"ethereum.http_url":      c.Ethereum.HTTPURL,
	} {
		if raw == "" {
			continue
		}
		if _, err := url.Parse(raw); err != nil {
			return invalid("%s: %v", key, err)
		}
	}

	switch c.Ethereum.Backoff {
	case BackoffConstant:
		if c.Ethereum.ReconnectDelay <= 0 {
			return invalid("ethereum.reconnect_delay must be positive")
		}
	case BackoffExponential:
		if c.Ethereum.InitialBackoff <= 0 || c.Ethereum.MaxBackoff < c.Ethereum.InitialBackoff {
			return invalid("ethereum.initial_backoff must be positive and not above ethereum.max_backoff")
		}
	default:
		return invalid("unknown ethereum.backoff %q", c.Ethereum.Backoff)
	}

	if c.Dashboard.StaleWindow <= 0 {
		return invalid("dashboard.stale_window must be positive")
	}
	if c.Dashboard.HighlightWindow <= 0 {
		return invalid("dashboard.highlight_window must be positive")
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.TraceProvider {
		case "none", "console":
		case "zipkin", "otlp", "otlp-http":
			if c.Telemetry.OTLPEndpoint == "" {
				return invalid("telemetry.otlp_endpoint is required for trace provider %q", c.Telemetry.TraceProvider)
			}
		default:
			return invalid("unknown telemetry.trace_provider %q", c.Telemetry.TraceProvider)
		}
	}
	return nil
}
