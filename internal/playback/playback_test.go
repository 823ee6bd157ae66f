// ABOUTME: Tests for the playback state machine
// ABOUTME: Covers transitions, statechange events, and same-state no-ops
package playback

import (
	"testing"

	"github.com/matiaszanolli/Auralis-sub010/internal/events"
)

func TestInitialState(t *testing.T) {
	c := NewController(events.NewBus())
	if c.State() != Idle {
		t.Errorf("expected idle, got %v", c.State())
	}
}

func TestStateNames(t *testing.T) {
	cases := map[State]string{
		Idle:      "idle",
		Loading:   "loading",
		Ready:     "ready",
		Playing:   "playing",
		Paused:    "paused",
		Buffering: "buffering",
		Seeking:   "seeking",
		Failed:    "error",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("state %d: expected %q, got %q", s, want, got)
		}
	}
}

func TestSetStateEmitsStateChange(t *testing.T) {
	bus := events.NewBus()
	c := NewController(bus)

	var got []events.Event
	bus.Subscribe(events.StateChange, func(e events.Event) { got = append(got, e) })

	c.SetState(Loading)
	c.SetState(Ready)

	if len(got) != 2 {
		t.Fatalf("expected 2 statechange events, got %d", len(got))
	}
	if got[0].OldState != "idle" || got[0].NewState != "loading" {
		t.Errorf("first event: %s -> %s", got[0].OldState, got[0].NewState)
	}
	if got[1].OldState != "loading" || got[1].NewState != "ready" {
		t.Errorf("second event: %s -> %s", got[1].OldState, got[1].NewState)
	}
}

func TestSameStateIsNoOp(t *testing.T) {
	bus := events.NewBus()
	c := NewController(bus)

	fired := 0
	bus.Subscribe(events.StateChange, func(e events.Event) { fired++ })

	c.SetState(Playing)
	c.SetState(Playing)
	c.SetState(Playing)

	if fired != 1 {
		t.Errorf("expected exactly 1 statechange for repeated set, got %d", fired)
	}
	if c.State() != Playing {
		t.Errorf("expected playing, got %v", c.State())
	}
}

func TestChunkIndexAndPosition(t *testing.T) {
	c := NewController(events.NewBus())

	c.SetChunkIndex(5)
	c.SetPosition(52.75)

	if c.ChunkIndex() != 5 {
		t.Errorf("expected chunk 5, got %d", c.ChunkIndex())
	}
	if c.Position() != 52.75 {
		t.Errorf("expected position 52.75, got %.2f", c.Position())
	}
}
