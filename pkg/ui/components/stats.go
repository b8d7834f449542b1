package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session counters for display.
type Stats struct {
	Headers      int64
	Reconnects   int64
	StaleNotices int64
	Errors       int64
}

// StatsComponent renders session statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current counters.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errValue := valueStyle
	if s.stats.Errors > 0 {
		errValue = errorStyle
	}

	parts := []string{
		style.Render("Headers: ") + valueStyle.Render(fmt.Sprintf("%d", s.stats.Headers)),
		style.Render("Reconnects: ") + valueStyle.Render(fmt.Sprintf("%d", s.stats.Reconnects)),
		style.Render("Stale: ") + valueStyle.Render(fmt.Sprintf("%d", s.stats.StaleNotices)),
		style.Render("Errors: ") + errValue.Render(fmt.Sprintf("%d", s.stats.Errors)),
	}
	return strings.Join(parts, "  ")
}
