// ABOUTME: Priority queue for pending chunk-fetch requests
// ABOUTME: Orders requests by urgency with FIFO tie-break and per-chunk dedupe
package queue

import (
	"container/heap"
	"sync"
)

// Priority orders load requests. Lower values are more urgent.
type Priority int

const (
	Critical Priority = iota
	Immediate
	SeekTarget
	Adjacent
	Preload
)

// String returns the string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case Immediate:
		return "immediate"
	case SeekTarget:
		return "seek-target"
	case Adjacent:
		return "adjacent"
	case Preload:
		return "preload"
	default:
		return "unknown"
	}
}

// request is one pending chunk fetch.
type request struct {
	chunk    int
	priority Priority
	seq      uint64 // enqueue order, FIFO tie-break within a priority level
	pos      int    // heap position
}

// LoadQueue orders pending chunk requests by urgency. It never holds two
// entries for the same chunk index: re-enqueueing at a more urgent level
// upgrades the existing entry, anything else is dropped.
type LoadQueue struct {
	mu      sync.Mutex
	items   requestHeap
	byChunk map[int]*request
	seq     uint64
}

// New creates an empty load queue.
func New() *LoadQueue {
	return &LoadQueue{
		byChunk: make(map[int]*request),
	}
}

// Enqueue inserts or upgrades a pending request. Returns true if the queue
// changed.
func (q *LoadQueue) Enqueue(chunk int, priority Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byChunk[chunk]; ok {
		if priority >= existing.priority {
			return false
		}
		existing.priority = priority
		heap.Fix(&q.items, existing.pos)
		return true
	}

	q.seq++
	req := &request{chunk: chunk, priority: priority, seq: q.seq}
	q.byChunk[chunk] = req
	heap.Push(&q.items, req)

	return true
}

// Next pops the most urgent request. The second return is false when the
// queue is empty.
func (q *LoadQueue) Next() (chunk int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return 0, false
	}

	req := heap.Pop(&q.items).(*request)
	delete(q.byChunk, req.chunk)

	return req.chunk, true
}

// Remove cancels a pending request. Returns false if the chunk was not
// queued.
func (q *LoadQueue) Remove(chunk int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	req, ok := q.byChunk[chunk]
	if !ok {
		return false
	}

	heap.Remove(&q.items, req.pos)
	delete(q.byChunk, chunk)

	return true
}

// Len returns the number of pending requests.
func (q *LoadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Clear drops all pending requests.
func (q *LoadQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = nil
	q.byChunk = make(map[int]*request)
}

// requestHeap implements heap.Interface ordered by priority, then enqueue
// sequence.
type requestHeap []*request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].pos = i
	h[j].pos = j
}

func (h *requestHeap) Push(x interface{}) {
	req := x.(*request)
	req.pos = len(*h)
	*h = append(*h, req)
}

func (h *requestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return req
}
