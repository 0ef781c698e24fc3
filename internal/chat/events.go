package chat

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/bull/docchat/internal/model"
)

// Event types on the wire.
const (
	TypeMetadata = "metadata"
	TypeChunk    = "chunk"
	TypeDone     = "done"
	TypeError    = "error"
)

// Event is one line of a chat stream.
type Event interface {
	EventType() string
}

// MetadataEvent opens every stream, before any answer text.
type MetadataEvent struct {
	Type         string         `json:"type"`
	ChatID       string         `json:"chatId"`
	Sources      []model.Source `json:"sources"`
	HasDocuments bool           `json:"hasDocuments"`
}

// ChunkEvent carries one answer fragment.
type ChunkEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DoneEvent ends a successful stream.
type DoneEvent struct {
	Type string `json:"type"`
}

// ErrorEvent ends a failed stream.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (MetadataEvent) EventType() string { return TypeMetadata }
func (ChunkEvent) EventType() string    { return TypeChunk }
func (DoneEvent) EventType() string     { return TypeDone }
func (ErrorEvent) EventType() string    { return TypeError }

func newMetadata(chatID string, sources []model.Source, hasDocuments bool) MetadataEvent {
	if sources == nil {
		sources = []model.Source{}
	}
	return MetadataEvent{Type: TypeMetadata, ChatID: chatID, Sources: sources, HasDocuments: hasDocuments}
}

// Sink receives the events of one stream in order.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

// Send calls f(e).
func (f SinkFunc) Send(e Event) error { return f(e) }

// NDJSONSink writes one JSON object per line and flushes after each. When the
// writer is an http.ResponseWriter the stream headers are written with the
// first event, so callers can still reply with a plain error before that.
type NDJSONSink struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *json.Encoder
	started bool
}

// NewNDJSONSink creates a sink writing to w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w, enc: json.NewEncoder(w)}
}

// Started reports whether any event has been written.
func (s *NDJSONSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Send encodes e as a single line.
func (s *NDJSONSink) Send(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		if rw, ok := s.w.(http.ResponseWriter); ok {
			h := rw.Header()
			h.Set("Content-Type", "application/x-ndjson")
			h.Set("Cache-Control", "no-cache")
			h.Set("X-Accel-Buffering", "no")
			rw.WriteHeader(http.StatusOK)
		}
	}

	if err := s.enc.Encode(e); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
