package tui

import "github.com/charmbracelet/lipgloss"

var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Green    = lipgloss.Color("#a6e3a1")
	Sapphire = lipgloss.Color("#74c7ec")
	Peach    = lipgloss.Color("#fab387")

	Window = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(1, 2)

	TitleBar = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Prompt   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	Body     = lipgloss.NewStyle().Foreground(Text)
	Cursor   = lipgloss.NewStyle().Foreground(Peach)
	Muted    = lipgloss.NewStyle().Foreground(Subtext0)
)
