package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ashureev/mpt-session/internal/chat"
)

// writeSSE writes one named server-sent event.
func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// sseSink streams turn events as named SSE events. Headers are committed
// on the first event only, so a turn that fails before output can still be
// answered with a JSON error.
type sseSink struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSESink(ctx context.Context, w http.ResponseWriter) (*sseSink, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseSink{ctx: ctx, w: w, flusher: flusher}, true
}

func (s *sseSink) send(event string, v any) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if !s.started {
		s.started = true
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
	}
	if err := writeSSE(s.w, event, string(data)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Meta(m chat.Meta) error { return s.send("meta", m) }

func (s *sseSink) Chunk(content string) error {
	return s.send("chunk", map[string]string{"content": content})
}

func (s *sseSink) Done(d chat.Done) error { return s.send("done", d) }

func (s *sseSink) Error(message string) error {
	return s.send("error", map[string]string{"message": message})
}

var _ chat.EventSink = (*sseSink)(nil)
