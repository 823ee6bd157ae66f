// ABOUTME: Output device abstraction over a monotonic clock
// ABOUTME: Schedules decoded segments with per-segment gain envelopes
package device

import (
	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
)

// Handle refers to one scheduled segment.
type Handle interface {
	// Stop silences and releases the scheduled segment immediately.
	Stop()
}

// Device is the output primitive the engine schedules against. Now returns
// monotonic seconds on the device clock. The device may start suspended and
// must be resumed before the first schedule takes effect. The master volume
// is applied on top of per-segment envelopes and never disturbs them.
type Device interface {
	Now() float64
	NewGain() *Envelope
	Schedule(seg *audio.Segment, when, offset, duration float64, gain *Envelope) Handle
	SetVolume(v float64)
	Volume() float64
	Resume() error
	Suspend() error
	Close() error
}
