package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors for the terminal theme - Muted Professional Palette
var (
	ColorPrimary   = lipgloss.Color("#A78BFA") // Soft Purple (Lavender 400)
	ColorSecondary = lipgloss.Color("#22D3EE") // Bright Cyan (Cyan 400)
	ColorSuccess   = lipgloss.Color("#059669") // Emerald 600
	ColorWarning   = lipgloss.Color("#D97706") // Amber 600
	ColorError     = lipgloss.Color("#DC2626") // Red 600
	ColorMuted     = lipgloss.Color("#9CA3AF") // Gray 400
	ColorDim       = lipgloss.Color("#6B7280") // Gray 500
	ColorRunning   = lipgloss.Color("#60A5FA") // Sky Blue (Blue 400)
)

// MessageIcons provides consistent icons for different message types
var MessageIcons = map[string]string{
	"success": "✓",
	"error":   "✗",
	"warning": "⚠",
	"info":    "ℹ",
	"pending": "○",
	"active":  "●",
}

// Styles contains the terminal styles.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Running lipgloss.Style
	Current lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary),
		Dim:     lipgloss.NewStyle().Foreground(ColorDim),
		Success: lipgloss.NewStyle().Foreground(ColorSuccess),
		Warning: lipgloss.NewStyle().Foreground(ColorWarning),
		Error:   lipgloss.NewStyle().Foreground(ColorError),
		Running: lipgloss.NewStyle().Foreground(ColorRunning),
		Current: lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
	}
}
