// ABOUTME: Tests for the WebSocket chunk source
// ABOUTME: Runs a local gorilla server to exercise correlation and frame parsing
package source

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

var upgrader = websocket.Upgrader{}

// wsTestServer speaks the stream protocol for one connection.
func wsTestServer(t *testing.T, handle func(conn *websocket.Conn, req wsRequest)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if req.Type == "client/hello" {
				continue
			}
			handle(conn, req)
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func chunkFrame(seq uint64, payload []byte) []byte {
	frame := make([]byte, chunkFrameHeader+len(payload))
	frame[0] = 0x01
	binary.BigEndian.PutUint64(frame[1:chunkFrameHeader], seq)
	copy(frame[chunkFrameHeader:], payload)
	return frame
}

func TestWSFetchMetadata(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		require.Equal(t, "metadata/get", req.Type)
		require.Equal(t, "track-1", req.TrackID)

		conn.WriteJSON(wsResponse{
			Type: "metadata",
			Seq:  req.Seq,
			Stream: streamMetadataPayload{
				TrackID:       "track-1",
				Duration:      95.0,
				TotalChunks:   10,
				ChunkDuration: 10.5,
				ChunkInterval: 10.0,
				Codec:         "opus",
				SampleRate:    48000,
				Channels:      2,
			},
		})
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	meta, err := src.FetchMetadata(context.Background(), "track-1")
	require.NoError(t, err)

	assert.Equal(t, "track-1", meta.TrackID)
	assert.Equal(t, 10, meta.TotalChunks)
	assert.Equal(t, "opus", meta.Codec)
	assert.Equal(t, 48000, meta.SampleRate)
}

func TestWSFetchChunkBinaryFrame(t *testing.T) {
	payload := []byte{9, 8, 7, 6}
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		require.Equal(t, "chunk/get", req.Type)
		require.Equal(t, 4, req.Chunk)

		conn.WriteMessage(websocket.BinaryMessage, chunkFrame(req.Seq, payload))
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	data, err := src.FetchChunk(context.Background(), "track-1", 4, track.EnhancementConfig{})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWSFetchChunkCarriesEnhancement(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		assert.True(t, req.Enhanced)
		assert.Equal(t, "warm", req.Preset)
		assert.Equal(t, 0.8, req.Intensity)

		conn.WriteMessage(websocket.BinaryMessage, chunkFrame(req.Seq, []byte{0}))
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	enh := track.EnhancementConfig{Enabled: true, Preset: "warm", Intensity: 0.8}
	_, err = src.FetchChunk(context.Background(), "track-1", 0, enh)
	require.NoError(t, err)
}

func TestWSNotFoundError(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		conn.WriteJSON(wsResponse{Type: "error", Seq: req.Seq, Code: "not_found", Message: "no such track"})
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.FetchMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWSConcurrentRequestsCorrelated(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		// Respond with the chunk index as payload so mixups are visible
		conn.WriteMessage(websocket.BinaryMessage, chunkFrame(req.Seq, []byte{byte(req.Chunk)}))
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(chunk int) {
			data, err := src.FetchChunk(context.Background(), "t", chunk, track.EnhancementConfig{})
			if err == nil && (len(data) != 1 || int(data[0]) != chunk) {
				err = assert.AnError
			}
			results <- err
		}(i)
	}

	for i := 0; i < 8; i++ {
		select {
		case err := <-results:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("request did not complete")
		}
	}
}

func TestWSConnectionDropFailsPending(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		conn.Close()
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	_, err = src.FetchChunk(context.Background(), "t", 0, track.EnhancementConfig{})
	assert.Error(t, err)
}

func TestWSRequestAfterClose(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	src.Close()

	_, err = src.FetchMetadata(context.Background(), "track-1")
	assert.Error(t, err)
}

func TestWSMalformedFramesIgnored(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, req wsRequest) {
		// Noise the client must survive before the real response
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0})
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		conn.WriteJSON(map[string]string{"type": "chatter"})

		conn.WriteMessage(websocket.BinaryMessage, chunkFrame(req.Seq, []byte{42}))
	})
	defer server.Close()

	src, err := NewWSSource(wsURL(server))
	require.NoError(t, err)
	defer src.Close()

	data, err := src.FetchChunk(context.Background(), "t", 0, track.EnhancementConfig{})
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, data)
}
