// ABOUTME: StreamEngine facade composing cache, loader, timing, and output
// ABOUTME: Exposes the transport API and event stream to external collaborators
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/device"
	"github.com/matiaszanolli/Auralis-sub010/internal/events"
	"github.com/matiaszanolli/Auralis-sub010/internal/loader"
	"github.com/matiaszanolli/Auralis-sub010/internal/output"
	"github.com/matiaszanolli/Auralis-sub010/internal/playback"
	"github.com/matiaszanolli/Auralis-sub010/internal/queue"
	"github.com/matiaszanolli/Auralis-sub010/internal/segcache"
	"github.com/matiaszanolli/Auralis-sub010/internal/source"
	"github.com/matiaszanolli/Auralis-sub010/internal/timing"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
)

const (
	// DefaultChunkTimeout bounds the wait for a chunk required for
	// immediate playback.
	DefaultChunkTimeout = 15 * time.Second

	// DefaultPrimeTimeout bounds the best-effort wait when priming
	// adjacent chunks after an enhancement switch.
	DefaultPrimeTimeout = 2500 * time.Millisecond
)

// errSuperseded marks a wait invalidated by a newer operation (load, switch,
// cleanup); the stale operation aborts without touching shared state.
var errSuperseded = errors.New("superseded by a newer operation")

// Config wires the engine's collaborators.
type Config struct {
	Source        source.Source
	Device        device.Device
	Clock         timing.Clock
	CacheCapacity int
	ChunkTimeout  time.Duration
	PrimeTimeout  time.Duration
	TickInterval  time.Duration
}

// Engine is the playback facade. It owns no algorithmic logic beyond
// sequencing its services: the loader fills the cache, the output controller
// schedules segments, the playback controller holds state, and the timing
// engine reports position.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	bus    *events.Bus
	cache  *segcache.Cache
	timing *timing.Engine
	outctl *output.Controller
	pb     *playback.Controller
	ldr    *loader.Manager

	meta   *track.StreamMetadata
	chunks []*track.ChunkInfo
	enh    track.EnhancementConfig

	gen    uint64
	closed bool
}

// NewEngine creates an engine on the given collaborators.
func NewEngine(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = timing.NewSystemClock()
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = DefaultChunkTimeout
	}
	if cfg.PrimeTimeout <= 0 {
		cfg.PrimeTimeout = DefaultPrimeTimeout
	}

	bus := events.NewBus()

	e := &Engine{
		cfg:    cfg,
		bus:    bus,
		cache:  segcache.New(cfg.CacheCapacity),
		timing: timing.NewEngine(cfg.Clock, cfg.TickInterval),
		outctl: output.NewController(cfg.Device, cfg.Clock),
		pb:     playback.NewController(bus),
	}

	e.outctl.SetBoundaryFunc(e.advance)
	e.outctl.SetEndedFunc(e.ended)

	return e
}

// Events returns the engine's event bus. Handlers run synchronously on the
// emitting goroutine and must not call back into the engine.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// LoadTrack fetches metadata, resets all per-track state, and primes the
// first chunk at critical priority.
func (e *Engine) LoadTrack(ctx context.Context, trackID string) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return ErrInvalidOperation
	}

	e.gen++
	gen := e.gen

	if e.ldr != nil {
		e.ldr.Cancel()
		e.ldr = nil
	}
	e.outctl.StopCurrentSource()
	e.timing.StopTimeUpdates()
	e.cache.Clear()
	e.meta = nil
	e.chunks = nil
	e.pb.SetState(playback.Loading)

	src := e.cfg.Source
	e.mu.Unlock()

	meta, err := src.FetchMetadata(ctx, trackID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.gen != gen {
		return ErrInvalidOperation
	}

	if err != nil {
		ferr := &MetadataFetchError{TrackID: trackID, Err: err}
		e.fail(ferr)
		return ferr
	}

	e.meta = meta
	e.chunks = track.BuildChunks(meta)
	e.timing.SetDuration(meta.Duration)
	e.timing.SetPauseTime(0)
	e.pb.SetPosition(0)
	e.pb.SetChunkIndex(0)

	ldr, err := loader.NewManager(src, e.cache, e.bus, meta, e.chunks, e.enh)
	if err != nil {
		ferr := &MetadataFetchError{TrackID: trackID, Err: err}
		e.fail(ferr)
		return ferr
	}
	e.ldr = ldr

	ldr.QueueChunk(0, queue.Critical)

	e.pb.SetState(playback.Ready)
	e.bus.Emit(events.Event{Type: events.MetadataLoaded, Duration: meta.Duration})

	log.Info().Str("track", trackID).Float64("duration", meta.Duration).Int("chunks", meta.TotalChunks).Msg("Track loaded")

	return nil
}

// Play starts or resumes output at the current position. Blocks (bounded)
// until the required chunk is ready.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidOperation
	}
	if e.meta == nil {
		return ErrNoTrackLoaded
	}
	if e.pb.State() == playback.Playing {
		return nil
	}

	// The device may start suspended pending a user gesture
	if err := e.cfg.Device.Resume(); err != nil {
		return err
	}

	pos := e.pb.Position()
	idx, off := e.meta.ChunkForPosition(pos)

	e.ldr.QueueChunk(idx, queue.Critical)
	if idx+1 < e.meta.TotalChunks {
		e.ldr.QueueChunk(idx+1, queue.Immediate)
	}

	if err := e.waitForChunk(idx, e.cfg.ChunkTimeout); err != nil {
		if errors.Is(err, errSuperseded) {
			return ErrInvalidOperation
		}
		terr := &ChunkLoadTimeoutError{Chunk: idx, Timeout: e.cfg.ChunkTimeout}
		e.fail(terr)
		return terr
	}

	seg := e.segmentFor(idx)
	e.outctl.PlayChunk(idx, seg, off, false, e.meta)
	e.pb.SetChunkIndex(idx)
	e.timing.Start(pos)
	e.timing.StartTimeUpdates(e.emitTime)
	e.pb.SetState(playback.Playing)
	e.bus.Emit(events.Event{Type: events.Playing})

	return nil
}

// Pause captures the exact position and stops output. A no-op unless
// playing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidOperation
	}
	if e.pb.State() != playback.Playing {
		return nil
	}

	pos := e.timing.CurrentTime()
	e.timing.SetPauseTime(pos)
	e.timing.StopTimeUpdates()
	e.outctl.StopCurrentSource()
	e.pb.SetPosition(pos)
	e.pb.SetState(playback.Paused)
	e.bus.Emit(events.Event{Type: events.Paused})

	return nil
}

// Seek moves playback to position t (seconds), clamped to the track bounds.
// The target chunk is requested at seek-target priority and its neighbors
// at adjacent priority. If playback was active it resumes from the exact
// offset once the target chunk is ready.
func (e *Engine) Seek(t float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidOperation
	}
	if e.meta == nil {
		return ErrNoTrackLoaded
	}

	if t < 0 {
		t = 0
	}
	if t > e.meta.Duration {
		t = e.meta.Duration
	}

	idx, off := e.meta.ChunkForPosition(t)
	wasPlaying := e.pb.State() == playback.Playing

	e.ldr.QueueChunk(idx, queue.SeekTarget)
	e.ldr.QueueChunk(idx-1, queue.Adjacent)
	e.ldr.QueueChunk(idx+1, queue.Adjacent)

	if wasPlaying {
		e.pb.SetState(playback.Seeking)
		e.outctl.StopCurrentSource()
		e.timing.StopTimeUpdates()

		if err := e.waitForChunk(idx, e.cfg.ChunkTimeout); err != nil {
			if errors.Is(err, errSuperseded) {
				return ErrInvalidOperation
			}
			terr := &ChunkLoadTimeoutError{Chunk: idx, Timeout: e.cfg.ChunkTimeout}
			e.fail(terr)
			e.bus.Emit(events.Event{Type: events.Seeked, CurrentTime: t})
			return terr
		}

		seg := e.segmentFor(idx)
		e.pb.SetChunkIndex(idx)
		e.pb.SetPosition(t)
		e.outctl.PlayChunk(idx, seg, off, false, e.meta)
		e.timing.Start(t)
		e.timing.StartTimeUpdates(e.emitTime)
		e.pb.SetState(playback.Playing)
	} else {
		e.pb.SetChunkIndex(idx)
		e.pb.SetPosition(t)
		e.timing.SetPauseTime(t)
		e.pb.SetState(playback.Paused)
	}

	e.bus.Emit(events.Event{Type: events.Seeked, CurrentTime: t})

	return nil
}

// SetEnhanced switches the enhancement profile. When the effective config
// changes, all cached segments are invalidated, the loader is rebuilt, and
// playback resumes at the preserved position without restarting from zero.
func (e *Engine) SetEnhanced(enabled bool, preset string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrInvalidOperation
	}

	cfg := track.EnhancementConfig{Enabled: enabled, Preset: preset}
	if enabled {
		cfg.Intensity = 1.0
	}

	if cfg == e.enh {
		return nil
	}

	if e.meta == nil {
		e.enh = cfg
		return nil
	}

	e.gen++
	wasPlaying := e.pb.State() == playback.Playing

	pos := e.pb.Position()
	if wasPlaying {
		pos = e.timing.CurrentTime()
	}

	e.outctl.StopCurrentSource()
	e.timing.StopTimeUpdates()
	e.ldr.Cancel()
	e.cache.Clear()

	e.chunks = track.BuildChunks(e.meta)
	e.enh = cfg

	ldr, err := loader.NewManager(e.cfg.Source, e.cache, e.bus, e.meta, e.chunks, e.enh)
	if err != nil {
		e.fail(err)
		return err
	}
	e.ldr = ldr

	idx, off := e.meta.ChunkForPosition(pos)
	ldr.QueueChunk(idx, queue.SeekTarget)
	if wasPlaying {
		ldr.QueueChunk(idx+1, queue.Adjacent)
		e.pb.SetState(playback.Buffering)
	}

	if err := e.waitForChunk(idx, e.cfg.ChunkTimeout); err != nil {
		if errors.Is(err, errSuperseded) {
			return ErrInvalidOperation
		}
		terr := &ChunkLoadTimeoutError{Chunk: idx, Timeout: e.cfg.ChunkTimeout}
		e.fail(terr)
		return terr
	}

	if wasPlaying {
		if idx+1 < e.meta.TotalChunks {
			// Best-effort priming; playback proceeds either way
			if err := e.waitForChunk(idx+1, e.cfg.PrimeTimeout); err != nil {
				if errors.Is(err, errSuperseded) {
					return ErrInvalidOperation
				}
				log.Debug().Int("chunk", idx+1).Msg("Adjacent chunk not primed in time")
			}
		}

		seg := e.segmentFor(idx)
		e.pb.SetChunkIndex(idx)
		e.pb.SetPosition(pos)
		e.outctl.PlayChunk(idx, seg, off, false, e.meta)
		e.timing.Start(pos)
		e.timing.StartTimeUpdates(e.emitTime)
		e.pb.SetState(playback.Playing)
	} else {
		e.pb.SetChunkIndex(idx)
		e.pb.SetPosition(pos)
		e.timing.SetPauseTime(pos)
	}

	log.Info().Bool("enabled", enabled).Str("preset", preset).Float64("position", pos).Msg("Enhancement switched")

	return nil
}

// SetVolume sets the master gain (0..1). Per-chunk crossfade envelopes are
// unaffected.
func (e *Engine) SetVolume(v float64) {
	e.outctl.SetVolume(v)
}

// Volume returns the master gain.
func (e *Engine) Volume() float64 {
	return e.outctl.Volume()
}

// CurrentTime returns the playback position in seconds.
func (e *Engine) CurrentTime() float64 {
	return e.timing.CurrentTime()
}

// Duration returns the loaded track's duration, or 0 when nothing is
// loaded.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.meta == nil {
		return 0
	}
	return e.meta.Duration
}

// State returns the playback state.
func (e *Engine) State() playback.State {
	return e.pb.State()
}

// Enhancement returns the active enhancement config.
func (e *Engine) Enhancement() track.EnhancementConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enh
}

// Cleanup tears down all services and listeners. Idempotent.
func (e *Engine) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.gen++

	if e.ldr != nil {
		e.ldr.Cancel()
		e.ldr = nil
	}
	e.outctl.StopCurrentSource()
	e.timing.StopTimeUpdates()
	e.cache.Clear()
	e.pb.SetState(playback.Idle)
	e.bus.Reset()

	e.cfg.Device.Suspend()
	e.cfg.Device.Close()
	e.cfg.Source.Close()
}

// advance runs at each chunk boundary: record the new chunk, prefetch the
// one after it, and schedule the incoming segment with its fade-in.
func (e *Engine) advance(next int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.meta == nil || e.pb.State() != playback.Playing {
		return
	}
	if next >= e.meta.TotalChunks {
		return
	}

	e.pb.SetChunkIndex(next)

	if next+1 < e.meta.TotalChunks {
		e.ldr.QueueChunk(next+1, queue.Immediate)
	}

	seg := e.segmentFor(next)
	if seg == nil {
		e.pb.SetState(playback.Buffering)
		e.ldr.QueueChunk(next, queue.Critical)

		if err := e.waitForChunk(next, e.cfg.ChunkTimeout); err != nil {
			if errors.Is(err, errSuperseded) {
				return
			}
			e.fail(&ChunkLoadTimeoutError{Chunk: next, Timeout: e.cfg.ChunkTimeout})
			return
		}

		seg = e.segmentFor(next)
		e.pb.SetState(playback.Playing)
	}

	e.outctl.PlayChunk(next, seg, 0, true, e.meta)
}

// ended runs when the final chunk plays out naturally.
func (e *Engine) ended() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.meta == nil || e.pb.State() != playback.Playing {
		return
	}

	e.timing.StopTimeUpdates()
	e.timing.SetPauseTime(e.meta.Duration)
	e.pb.SetPosition(e.meta.Duration)
	e.pb.SetState(playback.Idle)
	e.bus.Emit(events.Event{Type: events.Ended})
}

// waitForChunk releases the engine lock while waiting so loads can
// complete, then re-validates that no newer operation superseded this one.
// Called and returns with the lock held.
func (e *Engine) waitForChunk(index int, timeout time.Duration) error {
	ldr := e.ldr
	gen := e.gen
	e.mu.Unlock()

	err := ldr.WaitForChunk(index, timeout)

	e.mu.Lock()
	if e.closed || e.gen != gen {
		return errSuperseded
	}
	if errors.Is(err, loader.ErrCancelled) {
		return errSuperseded
	}
	return err
}

// segmentFor returns the decoded segment for a chunk, from the cache or the
// chunk bookkeeping.
func (e *Engine) segmentFor(index int) *audio.Segment {
	if seg, ok := e.cache.Get(track.Key(e.meta.TrackID, index, e.enh)); ok {
		return seg
	}
	if index >= 0 && index < len(e.chunks) {
		return e.chunks[index].Segment()
	}
	return nil
}

func (e *Engine) emitTime(current, duration float64) {
	e.pb.SetPosition(current)
	e.bus.Emit(events.Event{Type: events.TimeUpdate, CurrentTime: current, Duration: duration})
}

func (e *Engine) fail(err error) {
	log.Error().Err(err).Msg("Playback failed")
	e.pb.SetState(playback.Failed)
	e.bus.Emit(events.Event{Type: events.Error, Err: err})
}
