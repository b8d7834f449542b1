// Package basefee implements the base fee dashboard bounded context.
package basefee

import (
	"context"
	"net/http"
	"time"

	"github.com/fd1az/gaswatch/business/basefee/app"
	basefeeDI "github.com/fd1az/gaswatch/business/basefee/di"
	"github.com/fd1az/gaswatch/business/basefee/domain"
	"github.com/fd1az/gaswatch/business/basefee/infra/ethereum"
	"github.com/fd1az/gaswatch/business/basefee/infra/render"
	"github.com/fd1az/gaswatch/business/basefee/infra/rpcws"
	"github.com/fd1az/gaswatch/internal/config"
	"github.com/fd1az/gaswatch/internal/di"
	"github.com/fd1az/gaswatch/internal/logger"
	"github.com/fd1az/gaswatch/internal/monolith"
)

// Module implements the basefee bounded context.
type Module struct{}

// RegisterServices registers all basefee services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Connector (private) - transport chosen by config
	di.RegisterToken(c, basefeeDI.Connector, func(sr di.ServiceRegistry) app.Connector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		httpClient := sr.Get("httpClient").(*http.Client)

		conn, err := newConnector(cfg.Ethereum, httpClient, log)
		if err != nil {
			panic("failed to create connector: " + err.Error())
		}
		return conn
	})

	// Register Renderer (private) - TUI bridge or console
	di.RegisterToken(c, basefeeDI.Renderer, func(sr di.ServiceRegistry) app.Renderer {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Dashboard.TUIMode {
			return render.NewTUIRenderer()
		}
		return render.NewConsoleRenderer(false)
	})

	// Register Supervisor (private)
	di.RegisterToken(c, basefeeDI.Supervisor, func(sr di.ServiceRegistry) *app.Supervisor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		policy := app.NewBackoff(app.BackoffConfig{
			Exponential: cfg.Ethereum.Backoff == config.BackoffExponential,
			Delay:       cfg.Ethereum.ReconnectDelay,
			Initial:     cfg.Ethereum.InitialBackoff,
			Max:         cfg.Ethereum.MaxBackoff,
		})

		sup, err := app.NewSupervisor(basefeeDI.GetConnector(sr), policy, log, app.SystemClock())
		if err != nil {
			panic("failed to create supervisor: " + err.Error())
		}
		return sup
	})

	// Register Controller (private)
	di.RegisterToken(c, basefeeDI.Controller, func(sr di.ServiceRegistry) *app.Controller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		ctrlCfg := app.ControllerConfig{
			StaleWindow:     cfg.Dashboard.StaleWindow,
			HighlightWindow: cfg.Dashboard.HighlightWindow,
		}
		forecaster := domain.NewForecaster(cfg.Ethereum.ChainID)

		ctrl, err := app.NewController(ctrlCfg, forecaster, basefeeDI.GetRenderer(sr), log, app.SystemClock())
		if err != nil {
			panic("failed to create controller: " + err.Error())
		}
		return ctrl
	})

	// Register Dashboard (public)
	di.RegisterToken(c, basefeeDI.Dashboard, func(sr di.ServiceRegistry) *app.Dashboard {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewDashboard(basefeeDI.GetSupervisor(sr), basefeeDI.GetController(sr), log)
	})

	return nil
}

// Startup starts the dashboard. Connecting happens in the background; the
// first render is the connecting notice.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	dashboard := basefeeDI.GetDashboard(mono.Services())
	dashboard.Start(ctx)

	log.Info(ctx, "basefee module started",
		"transport", cfg.Ethereum.Transport,
		"endpoint", basefeeDI.GetConnector(mono.Services()).Endpoint(),
		"chain_id", cfg.Ethereum.ChainID,
	)
	return nil
}

func newConnector(cfg config.EthereumConfig, httpClient *http.Client, log logger.LoggerInterface) (app.Connector, error) {
	switch cfg.Transport {
	case config.TransportRPCWS:
		return rpcws.NewConnector(rpcws.Config{
			URL:          cfg.WebSocketURL,
			DialTimeout:  cfg.DialTimeout,
			PingInterval: 30 * time.Second,
		}, httpClient, log)
	default:
		ethCfg := ethereum.DefaultConfig(cfg.WebSocketURL, cfg.HTTPURL)
		if cfg.DialTimeout > 0 {
			ethCfg.DialTimeout = cfg.DialTimeout
		}
		if cfg.PollInterval > 0 {
			ethCfg.PollInterval = cfg.PollInterval
		}
		ethCfg.PollRatePerMinute = cfg.PollRatePerMinute
		return ethereum.NewConnector(ethCfg, httpClient, log)
	}
}
