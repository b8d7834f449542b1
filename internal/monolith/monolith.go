// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"net/http"

	"github.com/fd1az/gaswatch/internal/config"
	"github.com/fd1az/gaswatch/internal/di"
	"github.com/fd1az/gaswatch/internal/httpclient"
	"github.com/fd1az/gaswatch/internal/logger"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	HTTPClient() *http.Client
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config     *config.Config
	logger     logger.LoggerInterface
	httpClient *http.Client
	container  di.Container
}

// New creates a new Monolith instance.
func New(cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	// Shared instrumented client for node RPC over HTTP and WS handshakes
	httpClient, err := httpclient.New(
		httpclient.WithProviderName("ethereum"),
		httpclient.WithRequestTimeout(cfg.Ethereum.DialTimeout),
		httpclient.WithHeaders(map[string]string{"User-Agent": cfg.App.Name}),
	)
	if err != nil {
		return nil, err
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("httpClient", httpClient)

	return &app{
		config:     cfg,
		logger:     log,
		httpClient: httpClient,
		container:  container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) HTTPClient() *http.Client {
	return a.httpClient
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
	return nil
}
