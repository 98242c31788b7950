package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/colorbets/internal/betting"
	"github.com/lox/colorbets/internal/round"
)

// Static styles for content elements
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	HintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	RedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	GreenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// stackColors maps palette names to terminal colors. Names missing here are
// handed to lipgloss as-is, so hex values work in configuration too.
var stackColors = map[string]lipgloss.Color{
	"black":    lipgloss.Color("#3C3C3C"),
	"blue":     lipgloss.Color("#4D7CFE"),
	"cyan":     lipgloss.Color("#45D9E6"),
	"gray":     lipgloss.Color("#9E9E9E"),
	"green":    lipgloss.Color("#04B575"),
	"magenta":  lipgloss.Color("#E056FD"),
	"red":      lipgloss.Color("#FF6B6B"),
	"white":    lipgloss.Color("#FAFAFA"),
	"yellow":   lipgloss.Color("#FFEAA7"),
	"lavender": lipgloss.Color("#B8A9F0"),
}

func stackStyle(name string) lipgloss.Style {
	c, ok := stackColors[name]
	if !ok {
		c = lipgloss.Color(name)
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func colorStyle(c betting.Color) lipgloss.Style {
	switch c {
	case betting.Red:
		return RedStyle
	case betting.Green:
		return GreenStyle
	default:
		return InfoStyle
	}
}

func noticeStyle(level round.Level) lipgloss.Style {
	switch level {
	case round.Won:
		return SuccessStyle
	case round.Lost:
		return ErrorStyle
	default:
		return LabelStyle
	}
}
