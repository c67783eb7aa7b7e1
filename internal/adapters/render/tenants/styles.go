package tenants

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	tenant  lipgloss.Style
	detail  lipgloss.Style
	key     lipgloss.Style
	warning lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		tenant:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		key:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
	}
}
