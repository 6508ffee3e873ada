package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorOn     = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "136", Dark: "214"}
	colorError  = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	colorAccent = lipgloss.AdaptiveColor{Light: "25", Dark: "75"}
	colorBar    = lipgloss.AdaptiveColor{Light: "254", Dark: "236"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "255", Dark: "255"}).
			Background(colorAccent).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	onStyle      = lipgloss.NewStyle().Foreground(colorOn)
	offStyle     = lipgloss.NewStyle().Foreground(colorError)
	noticeStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Padding(0, 1)

	progressStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBar).
			Padding(0, 1)

	helpStyle = mutedStyle
)
