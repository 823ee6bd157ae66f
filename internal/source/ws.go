// ABOUTME: WebSocket chunk source for low-latency stream servers
// ABOUTME: Correlates requests and responses over a single connection
package source

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/matiaszanolli/Auralis-sub010/internal/track"
)

const wsHandshakeTimeout = 5 * time.Second

// chunkFrameHeader is 1 type byte plus an 8-byte big-endian sequence number.
const chunkFrameHeader = 9

// WSSource fetches metadata and chunks over a single WebSocket connection.
// Requests carry a sequence number; the read loop routes each response to
// its waiter. Chunk payloads arrive as binary frames, everything else as
// JSON.
type WSSource struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	seq       uint64
	pending   map[uint64]chan wsResult

	ctx    context.Context
	cancel context.CancelFunc
}

type wsResult struct {
	data []byte
	meta *track.StreamMetadata
	err  error
}

type wsRequest struct {
	Type      string  `json:"type"`
	Seq       uint64  `json:"seq"`
	ClientID  string  `json:"client_id,omitempty"`
	TrackID   string  `json:"track_id,omitempty"`
	Chunk     int     `json:"chunk,omitempty"`
	Enhanced  bool    `json:"enhanced,omitempty"`
	Preset    string  `json:"preset,omitempty"`
	Intensity float64 `json:"intensity,omitempty"`
}

type wsResponse struct {
	Type    string                `json:"type"`
	Seq     uint64                `json:"seq"`
	Code    string                `json:"code,omitempty"`
	Message string                `json:"message,omitempty"`
	Stream  streamMetadataPayload `json:"stream,omitempty"`
}

// NewWSSource connects to a stream server at the given ws:// URL.
func NewWSSource(serverURL string) (*WSSource, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.Dial(serverURL, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &WSSource{
		conn:      conn,
		connected: true,
		pending:   make(map[uint64]chan wsResult),
		ctx:       ctx,
		cancel:    cancel,
	}

	hello := wsRequest{Type: "client/hello", ClientID: uuid.New().String()}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		cancel()
		return nil, &TransportError{Op: "handshake", Err: err}
	}

	go s.readMessages()

	return s, nil
}

// FetchMetadata requests the stream description for a track.
func (s *WSSource) FetchMetadata(ctx context.Context, trackID string) (*track.StreamMetadata, error) {
	res, err := s.request(ctx, wsRequest{Type: "metadata/get", TrackID: trackID})
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.meta, nil
}

// FetchChunk requests the raw bytes for one chunk.
func (s *WSSource) FetchChunk(ctx context.Context, trackID string, index int, enh track.EnhancementConfig) ([]byte, error) {
	req := wsRequest{
		Type:      "chunk/get",
		TrackID:   trackID,
		Chunk:     index,
		Enhanced:  enh.Enabled,
		Preset:    enh.Preset,
		Intensity: enh.Intensity,
	}

	res, err := s.request(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.err != nil {
		return nil, res.err
	}
	return res.data, nil
}

// request sends one request and waits for its routed response.
func (s *WSSource) request(ctx context.Context, req wsRequest) (wsResult, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return wsResult{}, &TransportError{Op: req.Type, Err: fmt.Errorf("not connected")}
	}
	s.seq++
	req.Seq = s.seq
	ch := make(chan wsResult, 1)
	s.pending[req.Seq] = ch
	err := s.conn.WriteJSON(req)
	s.mu.Unlock()

	if err != nil {
		s.dropPending(req.Seq)
		return wsResult{}, &TransportError{Op: req.Type, Err: err}
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		s.dropPending(req.Seq)
		return wsResult{}, &TransportError{Op: req.Type, Err: ctx.Err()}
	case <-s.ctx.Done():
		return wsResult{}, &TransportError{Op: req.Type, Err: fmt.Errorf("connection closed")}
	}
}

func (s *WSSource) dropPending(seq uint64) {
	s.mu.Lock()
	delete(s.pending, seq)
	s.mu.Unlock()
}

// readMessages routes incoming frames to their waiting requests.
func (s *WSSource) readMessages() {
	defer s.Close()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("WebSocket read error")
			s.failAllPending(err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.handleBinary(data)
		case websocket.TextMessage:
			s.handleJSON(data)
		}
	}
}

// handleBinary resolves a chunk/get request. Frame layout: type byte (0x01),
// 8-byte big-endian request sequence, payload.
func (s *WSSource) handleBinary(data []byte) {
	if len(data) < chunkFrameHeader {
		log.Debug().Int("len", len(data)).Msg("Dropping short binary frame")
		return
	}
	if data[0] != 0x01 {
		log.Debug().Uint8("type", data[0]).Msg("Dropping unknown binary frame type")
		return
	}

	seq := binary.BigEndian.Uint64(data[1:chunkFrameHeader])
	s.resolve(seq, wsResult{data: data[chunkFrameHeader:]})
}

func (s *WSSource) handleJSON(data []byte) {
	var resp wsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Debug().Err(err).Msg("Failed to parse server message")
		return
	}

	switch resp.Type {
	case "metadata":
		s.resolve(resp.Seq, wsResult{meta: &track.StreamMetadata{
			TrackID:       resp.Stream.TrackID,
			Duration:      resp.Stream.Duration,
			TotalChunks:   resp.Stream.TotalChunks,
			ChunkDuration: resp.Stream.ChunkDuration,
			ChunkInterval: resp.Stream.ChunkInterval,
			Codec:         resp.Stream.Codec,
			SampleRate:    resp.Stream.SampleRate,
			Channels:      resp.Stream.Channels,
		}})

	case "error":
		err := error(&TransportError{Op: "request", Err: fmt.Errorf("%s: %s", resp.Code, resp.Message)})
		if resp.Code == "not_found" {
			err = ErrNotFound
		}
		s.resolve(resp.Seq, wsResult{err: err})

	default:
		log.Debug().Str("type", resp.Type).Msg("Ignoring unknown server message")
	}
}

func (s *WSSource) resolve(seq uint64, res wsResult) {
	s.mu.Lock()
	ch, ok := s.pending[seq]
	if ok {
		delete(s.pending, seq)
	}
	s.mu.Unlock()

	if ok {
		ch <- res
	}
}

func (s *WSSource) failAllPending(err error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[uint64]chan wsResult)
	s.mu.Unlock()

	for _, ch := range pending {
		ch <- wsResult{err: &TransportError{Op: "read", Err: err}}
	}
}

// Close shuts the connection down. Safe to call more than once.
func (s *WSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		s.connected = false
		s.cancel()
		s.conn.Close()
	}

	return nil
}
