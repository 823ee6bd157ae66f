// ABOUTME: Schedules decoded segments onto the output device with crossfade
// ABOUTME: Owns per-chunk gain envelopes, boundary timers, and master volume
package output

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/device"
	"github.com/matiaszanolli/Auralis-sub010/internal/timing"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

// minGain is the near-silence floor for exponential ramps, which cannot
// target exactly zero.
const minGain = 0.001

// active is one sounding segment and its automation.
type active struct {
	index  int
	handle device.Handle
	gain   *device.Envelope
}

// Controller schedules chunks onto the output device. Each chunk gets its
// own gain envelope: full volume for its solo portion, then an exponential
// fade-out across the crossfade window while the incoming chunk fades in.
// Master volume lives on the device and never disturbs these envelopes.
type Controller struct {
	mu    sync.Mutex
	dev   device.Device
	clock timing.Clock

	current *active
	fading  *active // previous chunk still audible through its fade-out
	timer   timing.Timer

	onBoundary func(next int)
	onEnded    func()
}

// NewController creates a controller on the given device and clock.
func NewController(dev device.Device, clock timing.Clock) *Controller {
	return &Controller{dev: dev, clock: clock}
}

// SetBoundaryFunc registers the callback fired when the next chunk must
// begin (at the start of the crossfade window).
func (c *Controller) SetBoundaryFunc(fn func(next int)) {
	c.mu.Lock()
	c.onBoundary = fn
	c.mu.Unlock()
}

// SetEndedFunc registers the callback fired when the final chunk finishes.
func (c *Controller) SetEndedFunc(fn func()) {
	c.mu.Lock()
	c.onEnded = fn
	c.mu.Unlock()
}

// PlayChunk schedules the segment for chunk index to start now, offset
// seconds into its decoded data. The audible window before the next chunk
// takes over is chunkInterval − offset; if a following chunk exists its
// fade-out is pre-scheduled across the crossfade window ending that
// audible portion, and the boundary callback is armed at the window's
// start so the incoming chunk (fadeIn=true) ramps up from near silence
// over the same window. Without a following chunk the segment runs to its
// natural end and the ended callback fires.
func (c *Controller) PlayChunk(index int, seg *audio.Segment, offset float64, fadeIn bool, meta *track.StreamMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	now := c.dev.Now()
	playDuration := meta.ChunkInterval - offset
	if playDuration < 0 {
		playDuration = 0
	}

	// The fade-in window does not depend on a following chunk: the final
	// chunk still ramps up out of the previous chunk's fade-out.
	hasNext := index+1 < meta.TotalChunks
	crossfade := meta.CrossfadeDuration()
	if crossfade > playDuration {
		crossfade = playDuration
	}

	gain := c.dev.NewGain()
	if fadeIn && crossfade > 0 {
		gain.SetValueAtTime(minGain, now)
		gain.ExponentialRampToValueAtTime(1.0, now+crossfade)
	} else {
		gain.SetValueAtTime(1.0, now)
	}

	scheduleDuration := playDuration
	if hasNext {
		if crossfade > 0 {
			fadeStart := now + playDuration - crossfade
			gain.SetValueAtTime(1.0, fadeStart)
			gain.ExponentialRampToValueAtTime(minGain, now+playDuration)
		}
	} else {
		// Last chunk plays out its full decoded tail
		scheduleDuration = seg.Duration() - offset
		if scheduleDuration < 0 {
			scheduleDuration = 0
		}
	}

	handle := c.dev.Schedule(seg, now, offset, scheduleDuration, gain)

	// The outgoing chunk keeps sounding through its pre-scheduled fade-out
	if c.fading != nil {
		c.fading.handle.Stop()
	}
	c.fading = c.current
	c.current = &active{index: index, handle: handle, gain: gain}

	log.Debug().
		Int("chunk", index).
		Float64("offset", offset).
		Float64("play", playDuration).
		Float64("crossfade", crossfade).
		Msg("Scheduled chunk")

	if hasNext {
		next := index + 1
		fireIn := playDuration - crossfade
		c.timer = c.clock.AfterFunc(timing.Seconds(fireIn), func() {
			c.mu.Lock()
			fn := c.onBoundary
			c.mu.Unlock()
			if fn != nil {
				fn(next)
			}
		})
	} else {
		c.timer = c.clock.AfterFunc(timing.Seconds(scheduleDuration), func() {
			c.mu.Lock()
			fn := c.onEnded
			c.mu.Unlock()
			if fn != nil {
				fn()
			}
		})
	}
}

// StopCurrentSource immediately silences and releases the active segment
// nodes and cancels any pending boundary timer. Used by pause, seek, and
// track switches.
func (c *Controller) StopCurrentSource() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	now := c.dev.Now()
	for _, a := range []*active{c.current, c.fading} {
		if a == nil {
			continue
		}
		a.gain.CancelScheduledValues(now)
		a.gain.SetValueAtTime(0, now)
		a.handle.Stop()
	}
	c.current = nil
	c.fading = nil
}

// SetVolume updates the master gain only; in-flight crossfade envelopes are
// relative to full volume and keep their shape.
func (c *Controller) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.dev.SetVolume(v)
}

// Volume returns the master gain.
func (c *Controller) Volume() float64 {
	return c.dev.Volume()
}
