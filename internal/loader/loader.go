// ABOUTME: Fetches and decodes chunks in priority order
// ABOUTME: Single writer to the segment cache and chunk bookkeeping
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
	"github.com/matiaszanolli/Auralis-sub010/internal/events"
	"github.com/matiaszanolli/Auralis-sub010/internal/queue"
	"github.com/matiaszanolli/Auralis-sub010/internal/segcache"
	"github.com/matiaszanolli/Auralis-sub010/internal/source"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

// ErrWaitTimeout is returned when a chunk does not become ready within the
// caller's bound.
var ErrWaitTimeout = errors.New("timed out waiting for chunk")

// ErrCancelled is returned when the manager is cancelled while a caller is
// waiting.
var ErrCancelled = errors.New("load manager cancelled")

// Manager drains the priority queue: fetch raw bytes, decode, store in the
// cache, mark the chunk info loaded, emit chunk-loaded. A fetch or decode
// failure emits chunk-error and is not retried here; retry policy belongs
// to the caller. The manager is recreated on track or enhancement change;
// Cancel bumps the epoch so stale completions are discarded, never applied.
type Manager struct {
	mu      sync.Mutex
	src     source.Source
	cache   *segcache.Cache
	bus     *events.Bus
	q       *queue.LoadQueue
	meta    *track.StreamMetadata
	chunks  []*track.ChunkInfo
	enh     track.EnhancementConfig
	dec     audio.Decoder
	running bool
	epoch   uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a load manager for one (track, enhancement) pairing.
func NewManager(src source.Source, cache *segcache.Cache, bus *events.Bus, meta *track.StreamMetadata, chunks []*track.ChunkInfo, enh track.EnhancementConfig) (*Manager, error) {
	dec, err := audio.NewDecoder(audio.Format{
		Codec:      meta.Codec,
		SampleRate: meta.SampleRate,
		Channels:   meta.Channels,
		BitDepth:   16,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		src:    src,
		cache:  cache,
		bus:    bus,
		q:      queue.New(),
		meta:   meta,
		chunks: chunks,
		enh:    enh,
		dec:    dec,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// QueueChunk inserts a load request and starts the drain loop if idle.
// Chunks already loaded or in flight are not re-queued.
func (m *Manager) QueueChunk(index int, priority queue.Priority) {
	if index < 0 || index >= len(m.chunks) {
		return
	}

	info := m.chunks[index]
	if info.IsLoaded() || info.IsLoading() {
		return
	}

	if !m.q.Enqueue(index, priority) {
		return
	}

	log.Debug().Int("chunk", index).Str("priority", priority.String()).Msg("Queued chunk")

	m.mu.Lock()
	if !m.running {
		m.running = true
		go m.drain()
	}
	m.mu.Unlock()
}

// drain pops requests by urgency until the queue empties.
func (m *Manager) drain() {
	for {
		if m.ctx.Err() != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		}

		index, ok := m.q.Next()
		if !ok {
			m.mu.Lock()
			// Re-check under the lock so a concurrent enqueue is not stranded
			if index, ok = m.q.Next(); !ok {
				m.running = false
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
		}

		m.load(index)
	}
}

func (m *Manager) load(index int) {
	info := m.chunks[index]
	if info.IsLoaded() {
		return
	}

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	info.SetLoading(true)

	data, err := m.src.FetchChunk(m.ctx, m.meta.TrackID, index, m.enh)
	if err != nil {
		info.SetLoading(false)
		m.reportError(index, err)
		return
	}

	seg, err := m.dec.Decode(data)
	if err != nil {
		info.SetLoading(false)
		m.reportError(index, err)
		return
	}

	m.mu.Lock()
	stale := m.epoch != epoch || m.ctx.Err() != nil
	m.mu.Unlock()
	if stale {
		log.Debug().Int("chunk", index).Msg("Discarding stale chunk completion")
		return
	}

	m.cache.Set(track.Key(m.meta.TrackID, index, m.enh), seg)

	if !info.MarkLoaded(seg) {
		// Duplicate completion for an already loaded chunk
		return
	}

	m.bus.Emit(events.Event{Type: events.ChunkLoaded, Chunk: index})
}

func (m *Manager) reportError(index int, err error) {
	if m.ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return
	}

	log.Warn().Err(err).Int("chunk", index).Msg("Chunk load failed")
	m.bus.Emit(events.Event{Type: events.ChunkError, Chunk: index, Err: err})
}

// WaitForChunk blocks until the chunk is ready, the timeout elapses, or the
// manager is cancelled.
func (m *Manager) WaitForChunk(index int, timeout time.Duration) error {
	if index < 0 || index >= len(m.chunks) {
		return ErrWaitTimeout
	}

	info := m.chunks[index]

	select {
	case <-info.Ready():
		return nil
	case <-time.After(timeout):
		return ErrWaitTimeout
	case <-m.ctx.Done():
		return ErrCancelled
	}
}

// Remove cancels a pending (not yet started) request.
func (m *Manager) Remove(index int) {
	m.q.Remove(index)
}

// Cancel stops in-flight and queued work. Completions that raced past the
// fetch are discarded by the epoch check.
func (m *Manager) Cancel() {
	m.mu.Lock()
	m.epoch++
	m.mu.Unlock()

	m.cancel()
	m.q.Clear()
}
