// ABOUTME: HTTP chunk source backed by a resty client
// ABOUTME: Fetches stream metadata and chunk bytes from a REST endpoint
package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

const requestTimeout = 30 * time.Second

// HTTPSource fetches metadata and chunks over HTTP.
type HTTPSource struct {
	client *resty.Client
}

// NewHTTPSource creates a source for the given server base URL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout),
	}
}

// streamMetadataPayload is the wire shape of the metadata endpoint.
type streamMetadataPayload struct {
	TrackID       string  `json:"track_id"`
	Duration      float64 `json:"duration"`
	TotalChunks   int     `json:"total_chunks"`
	ChunkDuration float64 `json:"chunk_duration"`
	ChunkInterval float64 `json:"chunk_interval"`
	Codec         string  `json:"codec"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
}

// FetchMetadata retrieves the stream description for a track.
func (s *HTTPSource) FetchMetadata(ctx context.Context, trackID string) (*track.StreamMetadata, error) {
	var payload streamMetadataPayload

	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(fmt.Sprintf("/tracks/%s/stream", trackID))
	if err != nil {
		return nil, &TransportError{Op: "metadata", Err: err}
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if !resp.IsSuccess() {
		return nil, &TransportError{
			Op:  "metadata",
			Err: fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.Status()),
		}
	}

	return &track.StreamMetadata{
		TrackID:       payload.TrackID,
		Duration:      payload.Duration,
		TotalChunks:   payload.TotalChunks,
		ChunkDuration: payload.ChunkDuration,
		ChunkInterval: payload.ChunkInterval,
		Codec:         payload.Codec,
		SampleRate:    payload.SampleRate,
		Channels:      payload.Channels,
	}, nil
}

// FetchChunk retrieves the raw bytes for one chunk.
func (s *HTTPSource) FetchChunk(ctx context.Context, trackID string, index int, enh track.EnhancementConfig) ([]byte, error) {
	req := s.client.R().SetContext(ctx)

	if enh.Enabled {
		req.SetQueryParam("enhanced", "true")
		if enh.Preset != "" {
			req.SetQueryParam("preset", enh.Preset)
		}
		req.SetQueryParam("intensity", strconv.FormatFloat(enh.Intensity, 'f', -1, 64))
	}

	resp, err := req.Get(fmt.Sprintf("/tracks/%s/chunks/%d", trackID, index))
	if err != nil {
		return nil, &TransportError{Op: "chunk", Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &TransportError{
			Op:  "chunk",
			Err: fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.Status()),
		}
	}

	// Cache-tier hint is informational only
	if tier := resp.Header().Get("X-Cache-Tier"); tier != "" {
		log.Debug().Str("tier", tier).Int("chunk", index).Msg("Chunk served from cache tier")
	}

	return resp.Body(), nil
}

// Close releases the underlying HTTP client.
func (s *HTTPSource) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}
