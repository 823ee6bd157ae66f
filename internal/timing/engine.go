// ABOUTME: Tracks elapsed playback time against the device clock
// ABOUTME: Owns the periodic time-update tick, re-armed (never stacked) per play
package timing

import (
	"sync"
	"time"
)

// DefaultTickInterval is the period of time-update callbacks.
const DefaultTickInterval = 100 * time.Millisecond

// Engine derives the current playback position from a reference pair
// captured at play start: (device clock at play start, position at play
// start). While paused it reports the captured pause position.
type Engine struct {
	mu sync.Mutex

	clock    Clock
	interval time.Duration

	playing     bool
	startDevice float64 // device clock at play start
	startPos    float64 // playback position at play start
	pausedPos   float64
	duration    float64

	tick   Timer
	onTick func(current, duration float64)
	armed  bool
}

// NewEngine creates a timing engine on the given clock.
func NewEngine(clock Clock, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Engine{
		clock:    clock,
		interval: interval,
	}
}

// SetDuration sets the clamp bound for reported positions.
func (e *Engine) SetDuration(d float64) {
	e.mu.Lock()
	e.duration = d
	e.mu.Unlock()
}

// Start captures the reference pair and begins advancing from pos.
func (e *Engine) Start(pos float64) {
	e.mu.Lock()
	e.playing = true
	e.startDevice = e.clock.Now()
	e.startPos = pos
	e.mu.Unlock()
}

// SetPauseTime freezes the reported position at t.
func (e *Engine) SetPauseTime(t float64) {
	e.mu.Lock()
	e.playing = false
	e.pausedPos = t
	e.mu.Unlock()
}

// CurrentTime returns the playback position, clamped to [0, duration].
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentLocked()
}

func (e *Engine) currentLocked() float64 {
	pos := e.pausedPos
	if e.playing {
		pos = e.startPos + (e.clock.Now() - e.startDevice)
	}

	if pos < 0 {
		pos = 0
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}

	return pos
}

// StartTimeUpdates begins the periodic callback. Any previously armed tick
// is replaced, never stacked, so a rapid pause/play cycle cannot double-fire.
func (e *Engine) StartTimeUpdates(fn func(current, duration float64)) {
	e.mu.Lock()
	if e.tick != nil {
		e.tick.Stop()
	}
	e.onTick = fn
	e.armed = true
	e.tick = e.clock.AfterFunc(e.interval, e.fire)
	e.mu.Unlock()
}

func (e *Engine) fire() {
	e.mu.Lock()
	if !e.armed {
		e.mu.Unlock()
		return
	}
	fn := e.onTick
	current := e.currentLocked()
	duration := e.duration
	e.tick = e.clock.AfterFunc(e.interval, e.fire)
	e.mu.Unlock()

	if fn != nil {
		fn(current, duration)
	}
}

// StopTimeUpdates cancels the tick synchronously; a tick observed after this
// call returns without invoking the callback.
func (e *Engine) StopTimeUpdates() {
	e.mu.Lock()
	e.armed = false
	if e.tick != nil {
		e.tick.Stop()
		e.tick = nil
	}
	e.mu.Unlock()
}
