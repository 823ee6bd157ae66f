// ABOUTME: Track metadata and per-chunk bookkeeping
// ABOUTME: Defines stream metadata, chunk lifecycle state, and cache keys
package track

import (
	"math"
	"sync"

	"github.com/matiaszanolli/Auralis-sub010/internal/audio"
)

// StreamMetadata describes a loaded track. Immutable once fetched.
type StreamMetadata struct {
	TrackID       string
	Duration      float64 // total duration in seconds
	TotalChunks   int
	ChunkDuration float64 // seconds of decoded audio per chunk
	ChunkInterval float64 // seconds between chunk start times
	Codec         string
	SampleRate    int
	Channels      int
}

// ChunkForPosition maps a playback position to the chunk that covers it and
// the offset into that chunk. The index is clamped to the valid chunk range.
func (m *StreamMetadata) ChunkForPosition(pos float64) (index int, offset float64) {
	if pos < 0 || m.ChunkInterval <= 0 {
		return 0, 0
	}

	index = int(math.Floor(pos / m.ChunkInterval))
	if index >= m.TotalChunks {
		index = m.TotalChunks - 1
	}
	offset = pos - float64(index)*m.ChunkInterval

	return index, offset
}

// CrossfadeDuration returns the overlap between consecutive chunks, the
// window available for crossfading. Zero when chunks do not overlap.
func (m *StreamMetadata) CrossfadeDuration() float64 {
	if m.ChunkDuration <= m.ChunkInterval {
		return 0
	}
	return m.ChunkDuration - m.ChunkInterval
}

// EnhancementConfig selects a server-side processing profile. It is part of
// the cache key and of every chunk fetch.
type EnhancementConfig struct {
	Enabled   bool
	Preset    string
	Intensity float64 // 0..1
}

// CacheKey identifies one decoded segment variant.
type CacheKey struct {
	TrackID  string
	Chunk    int
	Enhanced bool
	Preset   string
}

// Key builds the cache key for a chunk under the given enhancement config.
func Key(trackID string, chunk int, enh EnhancementConfig) CacheKey {
	return CacheKey{
		TrackID:  trackID,
		Chunk:    chunk,
		Enhanced: enh.Enabled,
		Preset:   enh.Preset,
	}
}

// ChunkInfo tracks the load state of a single chunk. Created in bulk when
// metadata arrives; the segment handle is populated exactly once by the
// load manager. Discarded wholesale on track or enhancement change.
type ChunkInfo struct {
	Index     int
	StartTime float64
	EndTime   float64

	mu      sync.Mutex
	segment *audio.Segment
	loading bool
	loaded  bool
	ready   chan struct{}
}

// BuildChunks creates the chunk bookkeeping array for a track.
func BuildChunks(m *StreamMetadata) []*ChunkInfo {
	chunks := make([]*ChunkInfo, m.TotalChunks)
	for i := range chunks {
		start := float64(i) * m.ChunkInterval
		chunks[i] = &ChunkInfo{
			Index:     i,
			StartTime: start,
			EndTime:   start + m.ChunkDuration,
			ready:     make(chan struct{}),
		}
	}
	return chunks
}

// Ready returns a channel closed once the chunk's segment is available.
func (c *ChunkInfo) Ready() <-chan struct{} {
	return c.ready
}

// SetLoading marks the chunk as having an in-flight fetch.
func (c *ChunkInfo) SetLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

// MarkLoaded stores the decoded segment and signals waiters. Returns false
// if the chunk was already loaded; duplicate completions are ignored.
func (c *ChunkInfo) MarkLoaded(seg *audio.Segment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return false
	}

	c.segment = seg
	c.loading = false
	c.loaded = true
	close(c.ready)

	return true
}

// Segment returns the decoded segment, or nil if not loaded yet.
func (c *ChunkInfo) Segment() *audio.Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.segment
}

// IsLoading reports whether a fetch is in flight for this chunk.
func (c *ChunkInfo) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// IsLoaded reports whether the chunk's segment is available.
func (c *ChunkInfo) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}
