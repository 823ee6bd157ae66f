// ABOUTME: Bubbletea model for the stream player TUI
// ABOUTME: Renders playback state, position, and enhancement status
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the TUI state.
type Model struct {
	// Track
	trackID  string
	duration float64
	codec    string

	sampleRate int
	channels   int

	// Playback
	state    string
	position float64
	chunk    int
	chunks   int

	// Enhancement
	enhanced bool
	preset   string

	volume int

	lastError string

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTrack()
	s += m.renderTransport()
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	enh := "off"
	if m.enhanced {
		enh = m.preset
		if enh == "" {
			enh = "on"
		}
	}

	return fmt.Sprintf(`┌─ Auralis Player ─────────────────────────────────────┐
│ State:   %-43s │
│ Enhance: %-43s │
├──────────────────────────────────────────────────────┤
`, m.state, enh)
}

func (m Model) renderTrack() string {
	if m.trackID == "" {
		return "│ No track loaded                                      │\n"
	}

	s := fmt.Sprintf("│ Track:  %-44s │\n", truncate(m.trackID, 44))
	if m.codec != "" {
		s += fmt.Sprintf("│ Format: %s %dHz %s%-26s │\n",
			m.codec, m.sampleRate, channelName(m.channels), "")
	}
	s += fmt.Sprintf("│ Chunk:  %d/%d%-38s │\n", m.chunk+1, m.chunks, "")

	return s
}

func (m Model) renderTransport() string {
	progress := renderBar(int(m.position), int(m.duration)+1, 30)
	volumeBar := renderBar(m.volume, 100, 10)

	s := fmt.Sprintf("│ [%s] %s / %s │\n",
		progress, clockTime(m.position), clockTime(m.duration))
	s += fmt.Sprintf("│ Volume: [%s] %d%%%-27s │\n", volumeBar, m.volume, "")

	if m.lastError != "" {
		s += fmt.Sprintf("│ Error: %-45s │\n", truncate(m.lastError, 45))
	}

	return s
}

func (m Model) renderHelp() string {
	return `│ space:Play/Pause  ←/→:Seek  ↑/↓:Volume  e:Enhance   │
│ q:Quit                                               │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.send(ControlMsg{Action: ActionQuit})
		return m, tea.Quit
	case " ":
		m.controls.send(ControlMsg{Action: ActionToggle})
	case "left":
		m.controls.send(ControlMsg{Action: ActionSeek, Seconds: m.position - 10})
	case "right":
		m.controls.send(ControlMsg{Action: ActionSeek, Seconds: m.position + 10})
	case "up":
		m.volume += 5
		if m.volume > 100 {
			m.volume = 100
		}
		m.controls.send(ControlMsg{Action: ActionVolume, Volume: m.volume})
	case "down":
		m.volume -= 5
		if m.volume < 0 {
			m.volume = 0
		}
		m.controls.send(ControlMsg{Action: ActionVolume, Volume: m.volume})
	case "e":
		m.controls.send(ControlMsg{Action: ActionEnhance, Enhance: !m.enhanced})
	}

	return m, nil
}

// applyStatus folds a status message into the model.
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.TrackID != "" {
		m.trackID = msg.TrackID
		m.duration = msg.Duration
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.chunks = msg.TotalChunks
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.HasPosition {
		m.position = msg.Position
		m.chunk = msg.Chunk
	}
	if msg.HasEnhance {
		m.enhanced = msg.Enhanced
		m.preset = msg.Preset
	}
	if msg.HasVolume {
		m.volume = msg.Volume
	}
	if msg.Err != "" {
		m.lastError = msg.Err
	}
}

// StatusMsg carries engine state into the TUI.
type StatusMsg struct {
	TrackID     string
	Duration    float64
	Codec       string
	SampleRate  int
	Channels    int
	TotalChunks int

	State       string
	HasPosition bool
	Position    float64
	Chunk       int

	HasEnhance bool
	Enhanced   bool
	Preset     string

	HasVolume bool
	Volume    int

	Err string
}

func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func clockTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
