// ABOUTME: Tests for the chunk load manager
// ABOUTME: Covers load completion, error reporting, waiting, and cancellation
package loader

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matiaszanolli/Auralis-sub010/internal/audiotest"
	"github.com/matiaszanolli/Auralis-sub010/internal/events"
	"github.com/matiaszanolli/Auralis-sub010/internal/queue"
	"github.com/matiaszanolli/Auralis-sub010/internal/segcache"
	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

func testMeta() *track.StreamMetadata {
	return &track.StreamMetadata{
		TrackID:       "track-1",
		Duration:      9.5,
		TotalChunks:   10,
		ChunkDuration: 1.05,
		ChunkInterval: 1.0,
		Codec:         "pcm",
		SampleRate:    1000,
		Channels:      2,
	}
}

func newTestManager(t *testing.T, src *audiotest.FakeSource) (*Manager, *segcache.Cache, *events.Bus, []*track.ChunkInfo) {
	t.Helper()

	meta := src.Meta
	cache := segcache.New(16)
	bus := events.NewBus()
	chunks := track.BuildChunks(meta)

	m, err := NewManager(src, cache, bus, meta, chunks, track.EnhancementConfig{})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, cache, bus, chunks
}

func TestLoadMarksChunkAndFillsCache(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	m, cache, bus, chunks := newTestManager(t, src)

	var mu sync.Mutex
	var loaded []int
	bus.Subscribe(events.ChunkLoaded, func(e events.Event) {
		mu.Lock()
		loaded = append(loaded, e.Chunk)
		mu.Unlock()
	})

	m.QueueChunk(0, queue.Critical)

	if err := m.WaitForChunk(0, time.Second); err != nil {
		t.Fatalf("WaitForChunk: %v", err)
	}

	if !chunks[0].IsLoaded() {
		t.Error("expected chunk 0 marked loaded")
	}
	if chunks[0].Segment() == nil {
		t.Error("expected segment handle on chunk info")
	}
	if _, ok := cache.Get(track.Key("track-1", 0, track.EnhancementConfig{})); !ok {
		t.Error("expected decoded segment in cache")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(loaded) != 1 || loaded[0] != 0 {
		t.Errorf("expected one chunkloaded event for chunk 0, got %v", loaded)
	}
}

func TestDecodedSegmentDuration(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	m, _, _, chunks := newTestManager(t, src)

	m.QueueChunk(3, queue.Preload)
	if err := m.WaitForChunk(3, time.Second); err != nil {
		t.Fatalf("WaitForChunk: %v", err)
	}

	seg := chunks[3].Segment()
	if d := seg.Duration(); d < 1.04 || d > 1.06 {
		t.Errorf("expected ~1.05s decoded duration, got %.4f", d)
	}
}

func TestChunkErrorEmitted(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	src.ChunkErr[2] = errors.New("boom")
	m, _, bus, chunks := newTestManager(t, src)

	errCh := make(chan events.Event, 1)
	bus.Subscribe(events.ChunkError, func(e events.Event) { errCh <- e })

	m.QueueChunk(2, queue.Critical)

	select {
	case e := <-errCh:
		if e.Chunk != 2 {
			t.Errorf("expected chunkerror for chunk 2, got %d", e.Chunk)
		}
		if e.Err == nil {
			t.Error("expected error payload")
		}
	case <-time.After(time.Second):
		t.Fatal("no chunkerror within 1s")
	}

	if chunks[2].IsLoaded() {
		t.Error("failed chunk must not be marked loaded")
	}
}

func TestWaitForChunkTimeout(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	src.Hanging[0] = true
	m, _, _, _ := newTestManager(t, src)

	m.QueueChunk(0, queue.Critical)

	err := m.WaitForChunk(0, 50*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout, got %v", err)
	}

	m.Cancel()
}

func TestWaitForChunkOutOfRange(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	m, _, _, _ := newTestManager(t, src)

	if err := m.WaitForChunk(-1, time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout for negative index, got %v", err)
	}
	if err := m.WaitForChunk(99, time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("expected ErrWaitTimeout for out-of-range index, got %v", err)
	}
}

func TestCancelUnblocksWaiters(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	src.Hanging[0] = true
	m, _, _, _ := newTestManager(t, src)

	m.QueueChunk(0, queue.Critical)

	done := make(chan error, 1)
	go func() { done <- m.WaitForChunk(0, 10*time.Second) }()

	time.Sleep(20 * time.Millisecond)
	m.Cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by Cancel")
	}
}

func TestCancelDiscardsSlowCompletion(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	src.Delay = 50 * time.Millisecond
	m, cache, bus, chunks := newTestManager(t, src)

	fired := make(chan struct{}, 4)
	bus.Subscribe(events.ChunkLoaded, func(e events.Event) { fired <- struct{}{} })

	m.QueueChunk(0, queue.Critical)
	time.Sleep(10 * time.Millisecond) // fetch is in flight
	m.Cancel()

	time.Sleep(100 * time.Millisecond)

	select {
	case <-fired:
		t.Error("cancelled completion must not emit chunkloaded")
	default:
	}
	if chunks[0].IsLoaded() {
		t.Error("cancelled completion must not mark the chunk loaded")
	}
	if cache.Len() != 0 {
		t.Error("cancelled completion must not populate the cache")
	}
}

func TestAlreadyLoadedChunkNotRequeued(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	m, _, _, _ := newTestManager(t, src)

	m.QueueChunk(1, queue.Critical)
	if err := m.WaitForChunk(1, time.Second); err != nil {
		t.Fatalf("WaitForChunk: %v", err)
	}

	m.QueueChunk(1, queue.Critical)
	time.Sleep(20 * time.Millisecond)

	calls := src.Calls()
	if len(calls) != 1 {
		t.Errorf("expected a single fetch for chunk 1, got %d", len(calls))
	}
}

func TestDrainServesMultipleChunks(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	m, _, _, chunks := newTestManager(t, src)

	for i := 0; i < 5; i++ {
		m.QueueChunk(i, queue.Preload)
	}

	for i := 0; i < 5; i++ {
		if err := m.WaitForChunk(i, time.Second); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if !chunks[i].IsLoaded() {
			t.Errorf("expected chunk %d loaded", i)
		}
	}
}

func TestEnhancedFetchCarriesConfig(t *testing.T) {
	src := audiotest.NewFakeSource(testMeta())
	cache := segcache.New(16)
	bus := events.NewBus()
	chunks := track.BuildChunks(src.Meta)
	enh := track.EnhancementConfig{Enabled: true, Preset: "warm", Intensity: 1.0}

	m, err := NewManager(src, cache, bus, src.Meta, chunks, enh)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.QueueChunk(0, queue.Critical)
	if err := m.WaitForChunk(0, time.Second); err != nil {
		t.Fatalf("WaitForChunk: %v", err)
	}

	calls := src.Calls()
	if len(calls) != 1 || !calls[0].Enh.Enabled || calls[0].Enh.Preset != "warm" {
		t.Errorf("expected enhanced fetch config, got %+v", calls)
	}

	if _, ok := cache.Get(track.Key("track-1", 0, enh)); !ok {
		t.Error("expected segment cached under the enhanced key")
	}
	if _, ok := cache.Get(track.Key("track-1", 0, track.EnhancementConfig{})); ok {
		t.Error("plain variant key must remain a miss")
	}
}
