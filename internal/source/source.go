// ABOUTME: Collaborator contracts for metadata and chunk delivery
// ABOUTME: Defines the source interface and its transport error taxonomy
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

// ErrNotFound is returned when the server does not know the track.
var ErrNotFound = errors.New("track not found")

// TransportError wraps a network-level fetch failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Source delivers stream metadata and raw chunk bytes. Implementations are
// safe for concurrent use.
type Source interface {
	// FetchMetadata returns the stream description for a track. Fails with
	// ErrNotFound or a *TransportError.
	FetchMetadata(ctx context.Context, trackID string) (*track.StreamMetadata, error)

	// FetchChunk returns the raw encoded bytes of one chunk, rendered under
	// the given enhancement config. Fails with a *TransportError.
	FetchChunk(ctx context.Context, trackID string, index int, enh track.EnhancementConfig) ([]byte, error)

	Close() error
}
