// ABOUTME: Core audio types shared across the engine
// ABOUTME: Defines sample formats and decoded segments
package audio

// Format describes a PCM stream layout.
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Segment is one decoded, ready-to-play unit of audio. Samples are
// interleaved 16-bit PCM.
type Segment struct {
	Format  Format
	Samples []int16
}

// Frames returns the number of sample frames in the segment.
func (s *Segment) Frames() int {
	if s.Format.Channels == 0 {
		return 0
	}
	return len(s.Samples) / s.Format.Channels
}

// Duration returns the segment length in seconds.
func (s *Segment) Duration() float64 {
	if s.Format.SampleRate == 0 {
		return 0
	}
	return float64(s.Frames()) / float64(s.Format.SampleRate)
}

// Slice returns the interleaved samples covering [offset, offset+duration)
// seconds, clamped to the segment bounds.
func (s *Segment) Slice(offset, duration float64) []int16 {
	start := int(offset*float64(s.Format.SampleRate)) * s.Format.Channels
	end := start + int(duration*float64(s.Format.SampleRate))*s.Format.Channels

	if start < 0 {
		start = 0
	}
	if start > len(s.Samples) {
		start = len(s.Samples)
	}
	if end > len(s.Samples) || duration < 0 {
		end = len(s.Samples)
	}
	if end < start {
		end = start
	}

	return s.Samples[start:end]
}
