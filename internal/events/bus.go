// ABOUTME: Typed event bus for cross-service signals
// ABOUTME: Synchronous dispatch keeps event ordering deterministic
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Type identifies an engine event.
type Type int

const (
	MetadataLoaded Type = iota
	ChunkLoaded
	ChunkError
	StateChange
	TimeUpdate
	Playing
	Paused
	Seeked
	Ended
	Error
)

// String returns the event name.
func (t Type) String() string {
	switch t {
	case MetadataLoaded:
		return "metadata-loaded"
	case ChunkLoaded:
		return "chunk-loaded"
	case ChunkError:
		return "chunk-error"
	case StateChange:
		return "statechange"
	case TimeUpdate:
		return "timeupdate"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeked:
		return "seeked"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event carries the payload for one emission. Fields are populated
// per event type: Chunk for chunk events, Err for error events,
// OldState/NewState for state changes, CurrentTime/Duration for time
// updates.
type Event struct {
	Type        Type
	Chunk       int
	Err         error
	OldState    string
	NewState    string
	CurrentTime float64
	Duration    float64
}

// Handler receives emitted events.
type Handler func(Event)

// Bus dispatches events to subscribed handlers. Dispatch is synchronous on
// the emitting goroutine so handlers observe emissions in order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type]map[uuid.UUID]Handler
	byID     map[uuid.UUID]Type
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type]map[uuid.UUID]Handler),
		byID:     make(map[uuid.UUID]Type),
	}
}

// Subscribe registers a handler for one event type and returns its handle.
func (b *Bus) Subscribe(t Type, h Handler) uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[uuid.UUID]Handler)
	}
	b.handlers[t][id] = h
	b.byID[id] = t

	return id
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.byID[id]
	if !ok {
		return
	}
	delete(b.handlers[t], id)
	delete(b.byID, id)
}

// Emit delivers the event to all handlers subscribed to its type.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers[e.Type]))
	for _, h := range b.handlers[e.Type] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(e)
	}
}

// Reset removes all handlers.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[Type]map[uuid.UUID]Handler)
	b.byID = make(map[uuid.UUID]Type)
}
