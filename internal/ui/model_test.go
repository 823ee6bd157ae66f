// ABOUTME: Tests for the player TUI model
// ABOUTME: Tests status updates, key handling, and control messages
package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // controls are optional for testing

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}
	if model.state != "idle" {
		t.Errorf("expected initial state 'idle', got %q", model.state)
	}
	if model.trackID != "" {
		t.Error("expected no track initially")
	}
}

func TestStatusMsgTrackInfo(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		TrackID:     "track-1",
		Duration:    95.0,
		Codec:       "opus",
		SampleRate:  48000,
		Channels:    2,
		TotalChunks: 10,
	})

	if model.trackID != "track-1" {
		t.Errorf("expected track-1, got %q", model.trackID)
	}
	if model.duration != 95.0 {
		t.Errorf("expected duration 95, got %.1f", model.duration)
	}
	if model.chunks != 10 {
		t.Errorf("expected 10 chunks, got %d", model.chunks)
	}
}

func TestStatusMsgPosition(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{HasPosition: true, Position: 42.5, Chunk: 4})

	if model.position != 42.5 {
		t.Errorf("expected position 42.5, got %.1f", model.position)
	}
	if model.chunk != 4 {
		t.Errorf("expected chunk 4, got %d", model.chunk)
	}

	// A state-only update must not clobber position
	model.applyStatus(StatusMsg{State: "paused"})
	if model.position != 42.5 {
		t.Errorf("expected position preserved, got %.1f", model.position)
	}
	if model.state != "paused" {
		t.Errorf("expected state 'paused', got %q", model.state)
	}
}

func TestStatusMsgEnhancement(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{HasEnhance: true, Enhanced: true, Preset: "warm"})
	if !model.enhanced || model.preset != "warm" {
		t.Errorf("expected warm enhancement, got enabled=%v preset=%q", model.enhanced, model.preset)
	}

	model.applyStatus(StatusMsg{HasEnhance: true, Enhanced: false})
	if model.enhanced {
		t.Error("expected enhancement off")
	}
}

func TestStatusMsgVolume(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{HasVolume: true, Volume: 70})
	if model.volume != 70 {
		t.Errorf("expected volume 70, got %d", model.volume)
	}

	// A message without a volume leaves it alone
	model.applyStatus(StatusMsg{State: "playing"})
	if model.volume != 70 {
		t.Errorf("expected volume to stay 70, got %d", model.volume)
	}
}

func TestSpaceSendsToggle(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})

	select {
	case msg := <-controls.Commands:
		if msg.Action != ActionToggle {
			t.Errorf("expected toggle, got %v", msg.Action)
		}
	default:
		t.Fatal("expected a control message")
	}
}

func TestSeekKeysOffsetFromPosition(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)
	model.applyStatus(StatusMsg{HasPosition: true, Position: 50.0})

	model.handleKey(tea.KeyMsg{Type: tea.KeyRight})
	msg := <-controls.Commands
	if msg.Action != ActionSeek || msg.Seconds != 60.0 {
		t.Errorf("expected seek to 60, got %v %.1f", msg.Action, msg.Seconds)
	}

	model.handleKey(tea.KeyMsg{Type: tea.KeyLeft})
	msg = <-controls.Commands
	if msg.Action != ActionSeek || msg.Seconds != 40.0 {
		t.Errorf("expected seek to 40, got %v %.1f", msg.Action, msg.Seconds)
	}
}

func TestVolumeKeysClamp(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	next, _ := model.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	m := next.(Model)
	if m.volume != 100 {
		t.Errorf("expected clamp at 100, got %d", m.volume)
	}
	msg := <-controls.Commands
	if msg.Action != ActionVolume || msg.Volume != 100 {
		t.Errorf("expected volume 100, got %v %d", msg.Action, msg.Volume)
	}

	for i := 0; i < 30; i++ {
		next, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
		<-controls.Commands
	}
	if m.volume != 0 {
		t.Errorf("expected clamp at 0, got %d", m.volume)
	}
}

func TestEnhanceKeyTogglesRequest(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	msg := <-controls.Commands
	if msg.Action != ActionEnhance || !msg.Enhance {
		t.Errorf("expected enhance on request, got %+v", msg)
	}

	model.applyStatus(StatusMsg{HasEnhance: true, Enhanced: true})
	model.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	msg = <-controls.Commands
	if msg.Enhance {
		t.Error("expected enhance off request once active")
	}
}

func TestViewRendersTrack(t *testing.T) {
	model := NewModel(nil)
	model.width = 80
	model.height = 24
	model.applyStatus(StatusMsg{
		TrackID:     "track-1",
		Duration:    95.0,
		Codec:       "pcm",
		SampleRate:  44100,
		Channels:    2,
		TotalChunks: 10,
		State:       "playing",
	})

	view := model.View()
	if !strings.Contains(view, "track-1") {
		t.Error("expected track id in view")
	}
	if !strings.Contains(view, "playing") {
		t.Error("expected state in view")
	}
	if !strings.Contains(view, "1:35") {
		t.Error("expected formatted duration in view")
	}
}

func TestViewBeforeSizing(t *testing.T) {
	model := NewModel(nil)
	if model.View() != "Loading..." {
		t.Error("expected loading placeholder before window sizing")
	}
}

func TestClockTime(t *testing.T) {
	cases := map[float64]string{
		0:     "0:00",
		59.9:  "0:59",
		60:    "1:00",
		95:    "1:35",
		3600:  "60:00",
		-5:    "0:00",
	}
	for in, want := range cases {
		if got := clockTime(in); got != want {
			t.Errorf("clockTime(%.1f): expected %q, got %q", in, want, got)
		}
	}
}
