// ABOUTME: Audio output device using the oto library
// ABOUTME: Renders scheduled segments with their gain envelopes in software
package device

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/timing"
)

// Oto plays scheduled segments through the system audio output. Gain
// envelopes (per-segment × master) are applied sample by sample while
// streaming into oto.
type Oto struct {
	mu        sync.Mutex
	clock     timing.Clock
	otoCtx    *oto.Context
	format    audio.Format
	volume    float64
	suspended bool
	closed    bool
}

// NewOto initializes the system output for the given format. The device
// starts suspended; Resume must be called before playback.
func NewOto(clock timing.Clock, format audio.Format) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	log.Debug().Int("rate", format.SampleRate).Int("channels", format.Channels).Msg("Audio output initialized")

	return &Oto{
		clock:     clock,
		otoCtx:    ctx,
		format:    format,
		volume:    1.0,
		suspended: true,
	}, nil
}

func (o *Oto) Now() float64 {
	return o.clock.Now()
}

func (o *Oto) NewGain() *Envelope {
	return NewEnvelope(1.0)
}

// Schedule queues the segment portion [offset, offset+duration) to start at
// device time when.
func (o *Oto) Schedule(seg *audio.Segment, when, offset, duration float64, gain *Envelope) Handle {
	h := &otoHandle{}

	delay := when - o.clock.Now()
	h.timer = o.clock.AfterFunc(timing.Seconds(delay), func() {
		o.mu.Lock()
		if o.closed || o.suspended {
			o.mu.Unlock()
			return
		}
		reader := &envelopeReader{
			dev:     o,
			samples: seg.Slice(offset, duration),
			format:  seg.Format,
			gain:    gain,
			start:   when,
		}
		player := o.otoCtx.NewPlayer(reader)
		o.mu.Unlock()

		h.setPlayer(player)
		player.Play()
	})

	return h
}

// SetVolume sets the master gain (0..1). In-flight per-segment envelopes are
// unaffected.
func (o *Oto) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	o.mu.Lock()
	o.volume = v
	o.mu.Unlock()

	log.Debug().Float64("volume", v).Msg("Master volume set")
}

func (o *Oto) Volume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// Resume unsuspends the device. Required once before the first playback.
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("device closed")
	}
	if !o.suspended {
		return nil
	}

	o.suspended = false
	return o.otoCtx.Resume()
}

// Suspend pauses the device output.
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.suspended {
		return nil
	}

	o.suspended = true
	return o.otoCtx.Suspend()
}

// Close suspends the device permanently. Idempotent.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true

	if !o.suspended {
		o.suspended = true
		return o.otoCtx.Suspend()
	}
	return nil
}

// otoHandle tracks one scheduled segment so it can be stopped early.
type otoHandle struct {
	mu      sync.Mutex
	timer   timing.Timer
	player  *oto.Player
	stopped bool
}

func (h *otoHandle) setPlayer(p *oto.Player) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		p.Close()
		return
	}
	h.player = p
}

func (h *otoHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.stopped = true

	if h.timer != nil {
		h.timer.Stop()
	}
	if h.player != nil {
		h.player.Close()
	}
}

// envelopeReader streams a segment's samples with gain applied.
type envelopeReader struct {
	dev     *Oto
	samples []int16
	format  audio.Format
	gain    *Envelope
	start   float64 // device time of the first frame
	pos     int     // samples consumed
}

func (r *envelopeReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, io.EOF
	}

	master := r.dev.Volume()
	rate := float64(r.format.SampleRate)
	channels := r.format.Channels

	n := 0
	for n+2 <= len(p) && r.pos < len(r.samples) {
		frame := r.pos / channels
		t := r.start + float64(frame)/rate
		v := float64(r.samples[r.pos]) * r.gain.ValueAt(t) * master

		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		s := int16(v)

		p[n] = byte(s)
		p[n+1] = byte(uint16(s) >> 8)
		n += 2
		r.pos++
	}

	return n, nil
}
