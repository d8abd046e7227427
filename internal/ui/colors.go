package ui

import "github.com/charmbracelet/lipgloss"

// Picker chrome only; the list delegate carries its own item styles.
var styles = struct {
	title lipgloss.Style
	help  lipgloss.Style
}{
	title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1DB954")).MarginBottom(1),
	help:  lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#626262")),
}
