package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewOverview key.Binding
	ViewEmails   key.Binding
	ViewFlows    key.Binding
	ViewActivity key.Binding

	// Tables
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	GoToPage key.Binding
	Filter   key.Binding
	Refresh  key.Binding

	// Activity
	ToggleFollow key.Binding

	// Input
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back to overview"),
		),

		ViewOverview: key.NewBinding(
			key.WithKeys("o", "1"),
			key.WithHelp("o", "Overview"),
		),
		ViewEmails: key.NewBinding(
			key.WithKeys("m", "2"),
			key.WithHelp("m", "Emails"),
		),
		ViewFlows: key.NewBinding(
			key.WithKeys("n", "3"),
			key.WithHelp("n", "Network flows"),
		),
		ViewActivity: key.NewBinding(
			key.WithKeys("a", "4"),
			key.WithHelp("a", "Activity log"),
		),

		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "First row"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end/G", "Last row"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "[", "pgup"),
			key.WithHelp("←/[", "Previous page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "]", "pgdown"),
			key.WithHelp("→/]", "Next page"),
		),
		GoToPage: key.NewBinding(
			key.WithKeys("g", ":"),
			key.WithHelp("g", "Go to page"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Toggle malicious only"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload page"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Toggle follow"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}

// ShortHelp returns bindings shown in the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewOverview, k.ViewEmails, k.ViewFlows, k.ViewActivity, k.Escape},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.PrevPage, k.NextPage, k.GoToPage, k.Filter, k.Refresh},
		{k.ToggleFollow},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
