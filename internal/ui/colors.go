package ui

import (
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorSent    = lipgloss.Color("#04B575")
	colorFailed  = lipgloss.Color("#FF0000")
	colorSkipped = lipgloss.Color("#FFA500")
	colorMuted   = lipgloss.Color("#626262")
)

// Palette styles the header, command feedback and footer of the tab list.
type Palette struct {
	header  lipgloss.Style
	sent    lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	footer  lipgloss.Style
}

var styles = Palette{
	header:  lipgloss.NewStyle().Foreground(colorAccent).Bold(true).MarginBottom(1),
	sent:    lipgloss.NewStyle().Foreground(colorSent).Bold(true),
	failed:  lipgloss.NewStyle().Foreground(colorFailed).Bold(true),
	skipped: lipgloss.NewStyle().Foreground(colorSkipped),
	footer:  lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
}

// feedback picks the style for the result of a dispatched command.
func (p Palette) feedback(err error) lipgloss.Style {
	if err != nil {
		return p.failed
	}
	return p.sent
}
