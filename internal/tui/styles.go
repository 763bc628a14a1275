// SPDX-License-Identifier: MIT
package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7D7D"))

	// Bar colours from the bottom of the meter to the top.
	lowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	midStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	highStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
)

// keyMap holds every binding the views react to. It implements
// help.KeyMap so the footer stays in sync with the handlers.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Pause  key.Binding
	Help   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Pause:  key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// meterKeys and pickerKeys narrow keyMap to the bindings each view uses.
type meterKeys struct{ keyMap }

func (k meterKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Help, k.Quit}
}

func (k meterKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause}, {k.Help, k.Quit}}
}

type pickerKeys struct{ keyMap }

func (k pickerKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Back, k.Quit}
}

func (k pickerKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Select, k.Back, k.Quit}}
}
