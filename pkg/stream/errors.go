// ABOUTME: Engine-level error taxonomy
// ABOUTME: Distinguishes fatal load failures, timeouts, and caller misuse
package stream

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTrackLoaded is returned by transport operations before a successful
// LoadTrack.
var ErrNoTrackLoaded = errors.New("no track loaded")

// ErrInvalidOperation is returned for caller misuse, such as operating on a
// cleaned-up engine.
var ErrInvalidOperation = errors.New("invalid operation")

// MetadataFetchError means the track could not be loaded at all. Fatal for
// the load attempt; the engine transitions to the error state.
type MetadataFetchError struct {
	TrackID string
	Err     error
}

func (e *MetadataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch metadata for track %s: %v", e.TrackID, e.Err)
}

func (e *MetadataFetchError) Unwrap() error {
	return e.Err
}

// ChunkLoadTimeoutError means a chunk required for the in-progress operation
// never became ready within its bound. The operation aborts and the engine
// transitions to the error state.
type ChunkLoadTimeoutError struct {
	Chunk   int
	Timeout time.Duration
}

func (e *ChunkLoadTimeoutError) Error() string {
	return fmt.Sprintf("chunk %d not ready within %s", e.Chunk, e.Timeout)
}
