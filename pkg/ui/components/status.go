// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents the node connection's status.
type ConnectionStatus struct {
	State      string // disconnected, connecting, live, recovering
	Attempt    int
	Endpoint   string
	LastUpdate time.Time
}

// StatusComponent renders the connection status line.
type StatusComponent struct {
	status ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		status: ConnectionStatus{State: "disconnected"},
	}
}

// Update replaces the connection status.
func (s *StatusComponent) Update(status ConnectionStatus) {
	s.status = status
}

// View renders the status component.
func (s *StatusComponent) View() string {
	var icon, label string
	var color lipgloss.Color

	switch s.status.State {
	case "live":
		icon, label, color = "●", "Live", "#10B981"
	case "connecting":
		icon, label, color = "◐", "Connecting", "#F59E0B"
	case "recovering":
		icon, label, color = "◌", fmt.Sprintf("Reconnecting (attempt %d)", s.status.Attempt), "#F59E0B"
	default:
		icon, label, color = "○", "Disconnected", "#EF4444"
	}

	style := lipgloss.NewStyle().Foreground(color).Bold(true)
	line := style.Render(icon + " " + label)
	if s.status.Endpoint != "" {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render("  " + s.status.Endpoint)
	}
	return line
}
