package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AlexZinkM/xdaghub/internal/keyring"
	"github.com/AlexZinkM/xdaghub/internal/network"
)

// EventsHandler streams keyring and network events as server-sent events
type EventsHandler struct {
	keyring  *keyring.Keyring
	networks *network.Manager
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(kr *keyring.Keyring, nets *network.Manager) *EventsHandler {
	return &EventsHandler{keyring: kr, networks: nets}
}

type event struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Stream handles GET /events
// @Summary      Wallet events
// @Description  Server-sent events for lock status, account list, active account and network changes
// @Tags         events
// @Produce      text/event-stream
// @Success      200
// @Security     UIToken
// @Router       /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// subscribe per topic so every payload keeps its topic name
	ctx := r.Context()
	merged := make(chan event)
	forward := func(topic string, ch <-chan any) {
		for data := range ch {
			select {
			case merged <- event{Topic: topic, Data: data}:
			case <-ctx.Done():
			}
		}
	}
	for _, topic := range []string{keyring.TopicLockedStatus, keyring.TopicAccounts, keyring.TopicActiveAccount} {
		go forward(topic, h.keyring.Subscribe(ctx, topic))
	}
	go forward(network.TopicChanged, h.networks.Subscribe(ctx))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-merged:
			data, err := json.Marshal(ev.Data)
			if err != nil {
				log.Debugw("failed to encode event", "topic", ev.Topic, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
			flusher.Flush()
		}
	}
}
