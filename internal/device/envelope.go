// ABOUTME: Scheduled gain automation for one segment
// ABOUTME: Supports stepped values and exponential ramps between set points
package device

import (
	"math"
	"sort"
	"sync"
)

// Envelope is a gain automation curve: a sequence of scheduled value points.
// Between a point and an exponential ramp target the gain follows
// v0 * (v1/v0)^(dt/span), the equal-power-sounding curve; between a point
// and a stepped successor it holds. Exponential ramps cannot reach exactly
// zero, so callers fade to a near-silence floor instead.
type Envelope struct {
	mu     sync.Mutex
	points []gainPoint
}

type gainPoint struct {
	time  float64
	value float64
	ramp  bool // exponential ramp from the previous point
}

// NewEnvelope creates an envelope holding the given value for all time.
func NewEnvelope(initial float64) *Envelope {
	return &Envelope{
		points: []gainPoint{{time: math.Inf(-1), value: initial}},
	}
}

// SetValueAtTime schedules a stepped change to v at time t.
func (e *Envelope) SetValueAtTime(v, t float64) {
	e.insert(gainPoint{time: t, value: v})
}

// ExponentialRampToValueAtTime schedules an exponential ramp ending at v at
// time t, starting from the previous scheduled point.
func (e *Envelope) ExponentialRampToValueAtTime(v, t float64) {
	e.insert(gainPoint{time: t, value: v, ramp: true})
}

func (e *Envelope) insert(p gainPoint) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.points = append(e.points, p)
	sort.SliceStable(e.points, func(i, j int) bool {
		return e.points[i].time < e.points[j].time
	})
}

// CancelScheduledValues drops every point scheduled at or after t.
func (e *Envelope) CancelScheduledValues(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.points[:0]
	for _, p := range e.points {
		if p.time < t {
			kept = append(kept, p)
		}
	}
	e.points = kept
}

// ValueAt evaluates the envelope at device time t.
func (e *Envelope) ValueAt(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.points) == 0 {
		return 0
	}

	// Find the last point at or before t and the one after it
	idx := -1
	for i, p := range e.points {
		if p.time <= t {
			idx = i
		} else {
			break
		}
	}

	if idx < 0 {
		return e.points[0].value
	}

	prev := e.points[idx]
	if idx+1 < len(e.points) {
		next := e.points[idx+1]
		if next.ramp && prev.value > 0 && next.value > 0 && next.time > prev.time {
			frac := (t - prev.time) / (next.time - prev.time)
			return prev.value * math.Pow(next.value/prev.value, frac)
		}
	}

	return prev.value
}
