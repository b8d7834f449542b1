// Package di contains dependency injection tokens for the basefee context.
package di

import (
	"github.com/fd1az/gaswatch/business/basefee/app"
	"github.com/fd1az/gaswatch/internal/di"
)

// Public service tokens - exposed to cmd and other modules
var (
	Dashboard = di.NewToken[*app.Dashboard]("basefee.Dashboard")
)

// Private dependency tokens - internal to basefee module
var (
	Connector  = di.NewToken[app.Connector]("basefee:connector")
	Renderer   = di.NewToken[app.Renderer]("basefee:renderer")
	Supervisor = di.NewToken[*app.Supervisor]("basefee:supervisor")
	Controller = di.NewToken[*app.Controller]("basefee:controller")
)

// Helper functions for type-safe access
func GetDashboard(c di.ServiceRegistry) *app.Dashboard {
	return di.GetToken(c, Dashboard)
}

func GetConnector(c di.ServiceRegistry) app.Connector {
	return di.GetToken(c, Connector)
}

func GetRenderer(c di.ServiceRegistry) app.Renderer {
	return di.GetToken(c, Renderer)
}

func GetSupervisor(c di.ServiceRegistry) *app.Supervisor {
	return di.GetToken(c, Supervisor)
}

func GetController(c di.ServiceRegistry) *app.Controller {
	return di.GetToken(c, Controller)
}
