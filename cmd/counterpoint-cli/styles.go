package main

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	label   lipgloss.Style
	accept  lipgloss.Style
	reject  lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds styles to w so colour is dropped when w is not a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		label:   r.NewStyle().Bold(true),
		accept:  r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		reject:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("3")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (s styles) action(a string) string {
	if a == "Reject" {
		return s.reject.Render(a)
	}
	return s.accept.Render(a)
}

func (s styles) band(b string) string {
	switch b {
	case "rejected":
		return s.reject.Render(b)
	case "warning":
		return s.warning.Render(b)
	default:
		return s.accept.Render(b)
	}
}

func (s styles) severity(label string) string {
	if label == "High" {
		return s.reject.Render(label)
	}
	return s.accept.Render(label)
}
