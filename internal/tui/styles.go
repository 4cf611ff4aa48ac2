package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorMuted  = lipgloss.AdaptiveColor{Light: "245", Dark: "243"}
	colorAccent = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
	colorEvent  = lipgloss.AdaptiveColor{Light: "236", Dark: "252"}
	colorLevel  = lipgloss.AdaptiveColor{Light: "30", Dark: "115"}
	colorError  = lipgloss.AdaptiveColor{Light: "160", Dark: "203"}

	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleCrumb     = lipgloss.NewStyle().Foreground(colorMuted)
	styleEvent     = lipgloss.NewStyle().Foreground(colorEvent)
	styleLevel     = lipgloss.NewStyle().Foreground(colorLevel).Bold(true)
	styleNav       = lipgloss.NewStyle().Foreground(colorAccent)
	stylePlacehold = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)
	styleDivider   = lipgloss.NewStyle().Foreground(colorMuted)
	styleSelected  = lipgloss.NewStyle().Reverse(true).Bold(true)
	styleFlash     = lipgloss.NewStyle().Foreground(colorError)
	styleLaneName  = lipgloss.NewStyle().Foreground(colorMuted).Width(7)
)
