package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	red   = lipgloss.Color("#E5484D")
	green = lipgloss.Color("#04B575")
	amber = lipgloss.Color("#FFA500")
	brand = lipgloss.Color("#FF0033")
	grey  = lipgloss.Color("#626262")
)

// palette holds the styles for queue and dispatch screens.
type palette struct {
	heading  lipgloss.Style // screen titles
	due      lipgloss.Style // entries scheduled for today
	phase    lipgloss.Style // current dispatch step
	uploaded lipgloss.Style
	failed   lipgloss.Style
	partial  lipgloss.Style // run finished with some failures
}

var styles = palette{
	heading:  lipgloss.NewStyle().Foreground(brand).Bold(true).MarginBottom(1),
	due:      lipgloss.NewStyle().Foreground(amber).Bold(true),
	phase:    lipgloss.NewStyle().Foreground(grey).Italic(true),
	uploaded: lipgloss.NewStyle().Foreground(green).Bold(true),
	failed:   lipgloss.NewStyle().Foreground(red).Bold(true),
	partial:  lipgloss.NewStyle().Foreground(amber),
}
