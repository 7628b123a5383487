package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/twintype/internal/panel"
	"github.com/dgnsrekt/twintype/internal/types"
)

type styles struct {
	Header  lipgloss.Style
	Panel   lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Alert   lipgloss.Style
	Danger  lipgloss.Style
}

type palette struct {
	accent, secondary, success, alert, danger lipgloss.TerminalColor
}

func newStyles(theme panel.Theme) styles {
	var p palette
	switch theme {
	case panel.ThemeLight:
		p = palette{
			accent:    lipgloss.Color("#005F87"),
			secondary: lipgloss.Color("#6C6C6C"),
			success:   lipgloss.Color("#007A00"),
			alert:     lipgloss.Color("#AF5F00"),
			danger:    lipgloss.Color("#AF0000"),
		}
	case panel.ThemeDark:
		p = palette{
			accent:    lipgloss.Color("#00FFFF"),
			secondary: lipgloss.Color("#7D7D7D"),
			success:   lipgloss.Color("#00FF00"),
			alert:     lipgloss.Color("#FFBF00"),
			danger:    lipgloss.Color("#FF0055"),
		}
	default:
		p = palette{
			accent:    lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#00FFFF"},
			secondary: lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#7D7D7D"},
			success:   lipgloss.AdaptiveColor{Light: "#007A00", Dark: "#00FF00"},
			alert:     lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFBF00"},
			danger:    lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF0055"},
		}
	}

	return styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.accent),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.secondary).
			Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(p.secondary),
		Accent:  lipgloss.NewStyle().Foreground(p.accent),
		Success: lipgloss.NewStyle().Foreground(p.success),
		Alert:   lipgloss.NewStyle().Foreground(p.alert),
		Danger:  lipgloss.NewStyle().Foreground(p.danger),
	}
}

func (s styles) level(l types.Level) lipgloss.Style {
	switch l {
	case types.LevelSuccess:
		return s.Success
	case types.LevelWarning:
		return s.Alert
	case types.LevelError:
		return s.Danger
	}
	return s.Muted
}
