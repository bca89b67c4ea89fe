package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const keepAliveInterval = 25 * time.Second

// SSEHandler streams hub notifications to HTTP clients as server-sent
// events. There is no replay: a client that connects (or reconnects) sees
// only notifications committed after the subscription, and is expected to
// refetch current state first.
type SSEHandler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewSSEHandler creates a handler backed by the hub.
func NewSSEHandler(hub *Hub, logger *slog.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, logger: logger}
}

// Register mounts the stream endpoint on the router.
func (h *SSEHandler) Register(r chi.Router) {
	r.Get("/events", h.stream)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("marshal notification for sse", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Kind, payload)
			flusher.Flush()
		}
	}
}
