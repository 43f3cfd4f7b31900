package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the TUI.
type KeyMap struct {
	// Form
	NextField key.Binding
	PrevField key.Binding
	Commit    key.Binding

	// Toggles
	Algorithm       key.Binding
	ReducedBlanking key.Binding
	Force           key.Binding
	Display         key.Binding

	// Preview
	ScrollUp   key.Binding
	ScrollDown key.Binding

	// Actions
	Apply   key.Binding
	Restart key.Binding
	Copy    key.Binding
	Confirm key.Binding
	Back    key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextField, k.PrevField, k.Commit},
		{k.Algorithm, k.ReducedBlanking, k.Force, k.Display},
		{k.ScrollUp, k.ScrollDown, k.Apply, k.Restart, k.Copy},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings. Field input is numeric,
// so letters are free for commands.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Commit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "commit field"),
		),
		Algorithm: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "cycle algorithm"),
		),
		ReducedBlanking: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "toggle reduced blanking"),
		),
		Force: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "toggle force enable"),
		),
		Display: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "cycle display"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "scroll preview up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "scroll preview down"),
		),
		Apply: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "apply"),
		),
		Restart: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restart display manager"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy modeline"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "n", "N"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
