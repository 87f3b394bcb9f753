package mcphttp

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// messagesPath is what the endpoint event advertises to connecting clients.
const messagesPath = "/messages"

// readyText is the payload of the ready event.
const readyText = "MCP server ready"

// sseStream serializes event writes onto one client connection. The
// heartbeat goroutine and the handshake share it.
type sseStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// send writes one SSE frame and flushes it. Multi-line data is split into
// one data: line per payload line, per the SSE wire format.
func (s *sseStream) send(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// handleSSE implements GET /sse. It opens a session, announces it with the
// endpoint / session / ready handshake, then keeps the stream warm with
// heartbeat events until the client goes away or the server shuts down.
func (h *Handlers) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("Connection does not support streaming.")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	sess := h.sessions.Open()
	defer h.sessions.Close(sess.ID)

	log := h.logger.With(slog.String("session", sess.ID))
	log.Info("SSE client connected.", slog.String("remote", r.RemoteAddr))

	stream := &sseStream{w: w, flusher: flusher}
	handshake := []struct{ event, data string }{
		{"endpoint", messagesPath},
		{"session", sess.ID},
		{"ready", readyText},
	}
	for _, ev := range handshake {
		if err := stream.send(ev.event, ev.data); err != nil {
			log.Warn("Handshake write failed, closing stream.",
				slog.String("event", ev.event), slog.Any("error", err))
			return
		}
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("SSE client disconnected.")
			return
		case <-ticker.C:
			if err := stream.send("heartbeat", time.Now().UTC().Format(time.RFC3339)); err != nil {
				log.Warn("Heartbeat write failed, closing stream.", slog.Any("error", err))
				return
			}
		}
	}
}
