// Package ui provides the Bubble Tea TUI for gaswatch.
package ui

import "time"

// Message types for TUI updates

// RenderMsg replaces the dashboard panel.
type RenderMsg struct {
	Body       string
	Title      string
	Emphasized bool
	At         time.Time
}

// ConnectionStatusMsg is sent when the node connection changes state.
type ConnectionStatusMsg struct {
	State    string // disconnected, connecting, live, recovering
	Attempt  int
	Endpoint string
}

// StaleMsg is sent when the staleness window elapses without a header.
type StaleMsg struct{}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
