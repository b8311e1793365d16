package main

import "github.com/charmbracelet/lipgloss"

var (
	Wood      = lipgloss.Color("#8B4513")
	Sienna    = lipgloss.Color("#A0522D")
	Peru      = lipgloss.Color("#CD853F")
	DarkBrown = lipgloss.Color("#654321")
	Alert     = lipgloss.Color("#C0392B")

	Frame = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Wood).
		Padding(1, 2)

	ErrorFrame = Frame.BorderForeground(Alert)

	Title = lipgloss.NewStyle().Foreground(Wood).Bold(true)
	Body  = lipgloss.NewStyle().Foreground(DarkBrown)
	Muted = lipgloss.NewStyle().Foreground(Peru)
	Hot   = lipgloss.NewStyle().Foreground(Alert).Bold(true)
	Hint  = lipgloss.NewStyle().Foreground(Sienna).Italic(true)
)
