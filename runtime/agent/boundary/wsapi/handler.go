// Package wsapi is an illustrative gorilla/websocket transport for the
// subscribe operation (C9): the same replay-then-live event contract as
// boundary/httpapi's SSE stream, delivered over a websocket connection
// instead. It is one adapter over the contract, not the contract itself.
package wsapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quillhq/planrunner/runtime/agent/boundary"
	"github.com/quillhq/planrunner/runtime/agent/stream"
)

// Handler adapts an Adapter's subscribe operation onto a websocket
// connection. The zero value is not usable; construct with New.
type Handler struct {
	adapter           *boundary.Adapter
	upgrader          websocket.Upgrader
	heartbeatInterval time.Duration
}

// New constructs a Handler. heartbeatInterval of zero disables heartbeats.
func New(adapter *boundary.Adapter, heartbeatInterval time.Duration) *Handler {
	return &Handler{
		adapter:           adapter,
		heartbeatInterval: heartbeatInterval,
		upgrader:          websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
}

// ServeSubscribe upgrades the connection and streams executionID's events:
// the existing log first, then live events, until a terminal event is sent
// or the connection is closed.
func (h *Handler) ServeSubscribe(w http.ResponseWriter, r *http.Request, executionID string) {
	replay, live, detach, err := h.adapter.Subscribe(executionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer detach()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, ev := range replay {
		if conn.WriteJSON(envelope(executionID, ev)) != nil {
			return
		}
		if ev.Type().Terminal() {
			return
		}
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	if h.heartbeatInterval > 0 {
		ticker = time.NewTicker(h.heartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case ev, ok := <-live:
			if !ok {
				return
			}
			if conn.WriteJSON(envelope(executionID, ev)) != nil {
				return
			}
			if ev.Type().Terminal() {
				return
			}
			// A heartbeat is only due after a full interval with no event.
			if ticker != nil {
				ticker.Reset(h.heartbeatInterval)
			}
		case <-tick:
			if conn.WriteJSON(envelope(executionID, stream.Heartbeat{})) != nil {
				return
			}
		}
	}
}

func envelope(executionID string, ev stream.Event) stream.Envelope {
	return stream.Envelope{ExecutionID: executionID, Type: ev.Type(), Payload: ev.Payload()}
}
