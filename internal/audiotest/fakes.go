// ABOUTME: Deterministic fakes for clock, output device, and chunk source
// ABOUTME: Shared by component and engine tests
package audiotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/device"
	"github.com/matiaszanolli/Auralis-sub010/internal/timing"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

// FakeClock is a manually advanced clock. Advance moves time forward and
// fires due timers in order, setting the observed time to each timer's
// deadline as it fires.
type FakeClock struct {
	mu     sync.Mutex
	now    float64
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      float64
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeClock creates a clock starting at time zero.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) timing.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now + d.Seconds(), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d seconds, firing due timers.
func (c *FakeClock) Advance(d float64) {
	c.mu.Lock()
	target := c.now + d

	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}

		next.fired = true
		c.now = next.at
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// Scheduled records one segment scheduled on the fake device.
type Scheduled struct {
	Segment  *audio.Segment
	When     float64
	Offset   float64
	Duration float64
	Gain     *device.Envelope
	Stopped  bool
}

// FakeDevice records scheduling calls instead of producing sound.
type FakeDevice struct {
	mu        sync.Mutex
	clock     *FakeClock
	volume    float64
	suspended bool
	resumes   int
	scheduled []*Scheduled
}

// NewFakeDevice creates a suspended device on the given clock.
func NewFakeDevice(clock *FakeClock) *FakeDevice {
	return &FakeDevice{clock: clock, volume: 1.0, suspended: true}
}

func (d *FakeDevice) Now() float64 {
	return d.clock.Now()
}

func (d *FakeDevice) NewGain() *device.Envelope {
	return device.NewEnvelope(1.0)
}

func (d *FakeDevice) Schedule(seg *audio.Segment, when, offset, duration float64, gain *device.Envelope) device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Scheduled{Segment: seg, When: when, Offset: offset, Duration: duration, Gain: gain}
	d.scheduled = append(d.scheduled, s)
	return &fakeHandle{s: s}
}

type fakeHandle struct {
	s *Scheduled
}

func (h *fakeHandle) Stop() {
	h.s.Stopped = true
}

func (d *FakeDevice) SetVolume(v float64) {
	d.mu.Lock()
	d.volume = v
	d.mu.Unlock()
}

func (d *FakeDevice) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *FakeDevice) Resume() error {
	d.mu.Lock()
	d.suspended = false
	d.resumes++
	d.mu.Unlock()
	return nil
}

func (d *FakeDevice) Suspend() error {
	d.mu.Lock()
	d.suspended = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDevice) Close() error {
	return d.Suspend()
}

// ScheduledCalls returns all recorded schedules in order.
func (d *FakeDevice) ScheduledCalls() []*Scheduled {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*Scheduled, len(d.scheduled))
	copy(out, d.scheduled)
	sort.SliceStable(out, func(i, j int) bool { return out[i].When < out[j].When })
	return out
}

// Resumes returns how often Resume was called.
func (d *FakeDevice) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}

// FetchCall records one chunk fetch observed by the fake source.
type FetchCall struct {
	TrackID string
	Chunk   int
	Enh     track.EnhancementConfig
}

// FakeSource serves canned metadata and synthesized chunk bytes. Individual
// chunks can be made to fail or hang.
type FakeSource struct {
	mu       sync.Mutex
	Meta     *track.StreamMetadata
	MetaErr  error
	ChunkErr map[int]error
	Hanging  map[int]bool
	Delay    time.Duration
	calls    []FetchCall
}

// NewFakeSource creates a source serving the given metadata.
func NewFakeSource(meta *track.StreamMetadata) *FakeSource {
	return &FakeSource{
		Meta:     meta,
		ChunkErr: make(map[int]error),
		Hanging:  make(map[int]bool),
	}
}

func (s *FakeSource) FetchMetadata(ctx context.Context, trackID string) (*track.StreamMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.MetaErr != nil {
		return nil, s.MetaErr
	}
	if s.Meta == nil || s.Meta.TrackID != trackID {
		return nil, fmt.Errorf("track not found: %s", trackID)
	}

	meta := *s.Meta
	return &meta, nil
}

func (s *FakeSource) FetchChunk(ctx context.Context, trackID string, index int, enh track.EnhancementConfig) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, FetchCall{TrackID: trackID, Chunk: index, Enh: enh})
	err := s.ChunkErr[index]
	hang := s.Hanging[index]
	delay := s.Delay
	meta := s.Meta
	s.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	// Raw 16-bit PCM sized to the chunk duration
	frames := int(meta.ChunkDuration * float64(meta.SampleRate))
	data := make([]byte, frames*meta.Channels*2)
	return data, nil
}

func (s *FakeSource) Close() error {
	return nil
}

// Calls returns the fetches observed so far.
func (s *FakeSource) Calls() []FetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FetchCall, len(s.calls))
	copy(out, s.calls)
	return out
}
