// ABOUTME: Playback state machine
// ABOUTME: Single source of truth for state, chunk index, and position
package playback

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/events"
)

// State is the playback state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Buffering
	Seeking
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Buffering:
		return "buffering"
	case Seeking:
		return "seeking"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Controller owns the playback state, the current chunk index, and the
// current position. Every state change emits exactly one statechange event;
// setting the current state again is a no-op.
type Controller struct {
	mu       sync.RWMutex
	bus      *events.Bus
	state    State
	chunk    int
	position float64
}

// NewController creates a controller in the idle state.
func NewController(bus *events.Bus) *Controller {
	return &Controller{bus: bus, state: Idle}
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState transitions to s, emitting a statechange event. Re-entering the
// current state emits nothing.
func (c *Controller) SetState(s State) {
	c.mu.Lock()
	old := c.state
	if old == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	log.Debug().Str("from", old.String()).Str("to", s.String()).Msg("Playback state")

	c.bus.Emit(events.Event{
		Type:     events.StateChange,
		OldState: old.String(),
		NewState: s.String(),
	})
}

// ChunkIndex returns the index of the chunk currently playing.
func (c *Controller) ChunkIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chunk
}

// SetChunkIndex records the chunk currently playing.
func (c *Controller) SetChunkIndex(i int) {
	c.mu.Lock()
	c.chunk = i
	c.mu.Unlock()
}

// Position returns the current playback position in seconds.
func (c *Controller) Position() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// SetPosition records the current playback position.
func (c *Controller) SetPosition(p float64) {
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
}
