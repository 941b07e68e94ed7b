package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/visarisk/agent/internal/models"
)

// Shared styles for the CLI package
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2F6FED")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(12)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6"))

	statusBadgeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFFFFF")).
				Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2F6FED")).
			Padding(0, 1)
)

var stateColors = map[models.StateKind]lipgloss.Color{
	models.StateUnknown:         lipgloss.Color("#6B7280"),
	models.StateUnauthenticated: lipgloss.Color("#EF4444"),
	models.StateAuthenticated:   lipgloss.Color("#10B981"),
	models.StatePending:         lipgloss.Color("#F59E0B"),
}

func renderState(state models.SessionState) string {
	return statusBadgeStyle.
		Background(stateColors[state.Kind]).
		Render(state.Kind.String())
}
