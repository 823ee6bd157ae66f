// ABOUTME: TUI initialization and control plumbing
// ABOUTME: Wraps the bubbletea program and the control channel to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is a player command issued from the TUI.
type Action int

const (
	ActionToggle Action = iota
	ActionSeek
	ActionVolume
	ActionEnhance
	ActionQuit
)

// ControlMsg is one command from the TUI to the player loop.
type ControlMsg struct {
	Action  Action
	Seconds float64 // seek target
	Volume  int     // 0..100
	Enhance bool
}

// Controls carries TUI commands to the player loop.
type Controls struct {
	Commands chan ControlMsg
}

// NewControls creates the control channel set.
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan ControlMsg, 10),
	}
}

func (c *Controls) send(msg ControlMsg) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- msg:
	default:
	}
}

// NewModel creates a TUI model wired to the given controls.
func NewModel(controls *Controls) Model {
	return Model{
		volume:   100,
		state:    "idle",
		controls: controls,
	}
}

// Run starts the TUI program.
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
