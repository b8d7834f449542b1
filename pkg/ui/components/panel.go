package components

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	panelBorder     = lipgloss.Color("#374151")
	panelTitle      = lipgloss.Color("#7C3AED")
	emphasisBorder  = lipgloss.Color("#F59E0B")
	emphasisTitle   = lipgloss.Color("#F59E0B")
	emphasisContent = lipgloss.Color("#FFFFFF")
)

// Panel renders a titled box. Emphasized panels use a bold amber frame so
// a fresh header stands out until it is downgraded.
func Panel(body, title string, emphasized bool, width int) string {
	border := panelBorder
	titleColor := panelTitle
	if emphasized {
		border = emphasisBorder
		titleColor = emphasisTitle
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(titleColor)
	bodyStyle := lipgloss.NewStyle()
	if emphasized {
		bodyStyle = bodyStyle.Bold(true).Foreground(emphasisContent)
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2)
	if emphasized {
		box = box.Border(lipgloss.DoubleBorder())
	}
	if width > 0 {
		box = box.Width(width)
	}

	content := titleStyle.Render(title)
	if body != "" {
		content += "\n\n" + bodyStyle.Render(body)
	}
	return box.Render(content)
}
