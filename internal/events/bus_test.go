// ABOUTME: Tests for the typed event bus
// ABOUTME: Covers subscribe/unsubscribe, typed dispatch, and reset
package events

import (
	"testing"
)

func TestEmitReachesSubscriber(t *testing.T) {
	b := NewBus()

	var got []Event
	b.Subscribe(ChunkLoaded, func(e Event) { got = append(got, e) })

	b.Emit(Event{Type: ChunkLoaded, Chunk: 7})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Chunk != 7 {
		t.Errorf("expected chunk 7, got %d", got[0].Chunk)
	}
}

func TestEmitIsTyped(t *testing.T) {
	b := NewBus()

	fired := 0
	b.Subscribe(Playing, func(e Event) { fired++ })

	b.Emit(Event{Type: Paused})
	b.Emit(Event{Type: ChunkLoaded, Chunk: 1})

	if fired != 0 {
		t.Errorf("expected no dispatch for other event types, got %d", fired)
	}

	b.Emit(Event{Type: Playing})
	if fired != 1 {
		t.Errorf("expected 1 dispatch, got %d", fired)
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := NewBus()

	a, c := 0, 0
	b.Subscribe(TimeUpdate, func(e Event) { a++ })
	b.Subscribe(TimeUpdate, func(e Event) { c++ })

	b.Emit(Event{Type: TimeUpdate, CurrentTime: 1.5})

	if a != 1 || c != 1 {
		t.Errorf("expected both subscribers invoked, got %d and %d", a, c)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus()

	fired := 0
	id := b.Subscribe(StateChange, func(e Event) { fired++ })
	b.Emit(Event{Type: StateChange})
	b.Unsubscribe(id)
	b.Emit(Event{Type: StateChange})

	if fired != 1 {
		t.Errorf("expected 1 dispatch before unsubscribe, got %d", fired)
	}
}

func TestReset(t *testing.T) {
	b := NewBus()

	fired := 0
	b.Subscribe(Ended, func(e Event) { fired++ })
	b.Reset()
	b.Emit(Event{Type: Ended})

	if fired != 0 {
		t.Errorf("expected no dispatch after reset, got %d", fired)
	}
}

func TestEventNames(t *testing.T) {
	cases := map[Type]string{
		MetadataLoaded: "metadataloaded",
		ChunkLoaded:    "chunkloaded",
		ChunkError:     "chunkerror",
		StateChange:    "statechange",
		TimeUpdate:     "timeupdate",
		Playing:        "playing",
		Paused:         "paused",
		Seeked:         "seeked",
		Ended:          "ended",
		Error:          "error",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("type %d: expected name %q, got %q", typ, want, got)
		}
	}
}

func TestSubscribeDuringEmitDoesNotDeadlock(t *testing.T) {
	b := NewBus()

	b.Subscribe(Playing, func(e Event) {
		b.Subscribe(Paused, func(Event) {})
	})

	// Handler list is snapshotted before dispatch, so a handler may
	// subscribe without deadlocking
	b.Emit(Event{Type: Playing})
}
