package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/deivygoficial/supermercado-app/internal/domain"
	"github.com/deivygoficial/supermercado-app/internal/hub"
)

type NotificationsHandler struct {
	hub *hub.Hub
}

func NewNotificationsHandler(h *hub.Hub) *NotificationsHandler {
	return &NotificationsHandler{hub: h}
}

// GET /api/orders/notifications (admin, long-lived)
//
// Server-sent event stream. The first frame acknowledges the connection;
// every subsequent frame is a new_order event. The subscription is removed
// when the client goes away, so a dead admin tab never lingers in the
// registry.
func (h *NotificationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	ack, err := json.Marshal(domain.ConnectedEvent())
	if err != nil {
		log.Printf("notifications: failed to marshal ack: %v", err)
		return
	}
	if err := writeFrame(w, flusher, ack); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-sub.Events():
			if !ok {
				// Dropped by the hub (shutdown or saturated buffer).
				return
			}
			if err := writeFrame(w, flusher, data); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
