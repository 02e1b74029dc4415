package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette of the interface.
type Theme struct {
	Primary lipgloss.Color // now playing, focused border
	Accent  lipgloss.Color // liked marker

	FgBase   lipgloss.Color
	FgMuted  lipgloss.Color
	FgSubtle lipgloss.Color

	BgCursor lipgloss.Color
	Border   lipgloss.Color

	Error lipgloss.Color
}

var theme = Theme{
	Primary: lipgloss.Color("#a78bfa"),
	Accent:  lipgloss.Color("#f1a208"),

	FgBase:   lipgloss.Color("#c0c0c0"),
	FgMuted:  lipgloss.Color("#808080"),
	FgSubtle: lipgloss.Color("#585858"),

	BgCursor: lipgloss.Color("#303030"),
	Border:   lipgloss.Color("#585858"),

	Error: lipgloss.Color("#ff5555"),
}

var (
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border)

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(theme.FgBase)
	trackStyle   = lipgloss.NewStyle().Foreground(theme.FgBase)
	mutedStyle   = lipgloss.NewStyle().Foreground(theme.FgMuted)
	subtleStyle  = lipgloss.NewStyle().Foreground(theme.FgSubtle)
	likedStyle   = lipgloss.NewStyle().Foreground(theme.Accent)
	errorStyle   = lipgloss.NewStyle().Foreground(theme.Error)
	playingStyle = lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Background(theme.BgCursor).Foreground(theme.FgBase)
)

const (
	playSymbol   = "▶"
	pauseSymbol  = "⏸"
	stopSymbol   = "■"
	likedSymbol  = "♥"
	cachedSymbol = "●"
)
