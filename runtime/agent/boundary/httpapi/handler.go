// Package httpapi is an illustrative net/http transport over the boundary
// adapter (C9): submit/start/subscribe/status/catalog as JSON endpoints,
// plus a server-sent-events stream for subscribe. It is one adapter over the
// contract, not the contract itself — any transport could expose the same
// three operations.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillhq/planrunner/runtime/agent/boundary"
	"github.com/quillhq/planrunner/runtime/agent/plan"
	"github.com/quillhq/planrunner/runtime/agent/stream"
	"github.com/quillhq/planrunner/runtime/agent/toolerrors"
)

// Handler adapts an Adapter onto net/http. The zero value is not usable;
// construct with New.
type Handler struct {
	adapter           *boundary.Adapter
	heartbeatInterval time.Duration
	metrics           *prometheus.Registry
}

// New constructs a Handler. heartbeatInterval of zero disables heartbeats on
// the SSE stream (§6.3 default is 15s). metrics, when non-nil, is exposed at
// /metrics; pass the same registry given to promreg.New so counts match
// what the execution registry records.
func New(adapter *boundary.Adapter, heartbeatInterval time.Duration, metrics *prometheus.Registry) *Handler {
	return &Handler{adapter: adapter, heartbeatInterval: heartbeatInterval, metrics: metrics}
}

// Mux returns an http.Handler routing every endpoint this package exposes,
// plus a /metrics endpoint when a Prometheus registry was supplied.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submit", h.handleSubmit)
	mux.HandleFunc("POST /start", h.handleStart)
	mux.HandleFunc("GET /executions/{id}/events", h.handleSubscribe)
	mux.HandleFunc("GET /executions/{id}", h.handleStatus)
	mux.HandleFunc("POST /executions/{id}/stop", h.handleStop)
	mux.HandleFunc("GET /tools", h.handleCatalog)
	if h.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

type submitRequest struct {
	Query string `json:"query"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pl, err := h.adapter.Submit(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

type startRequest struct {
	Plan  *plan.Plan `json:"plan"`
	Query string     `json:"query"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, err := h.adapter.Start(req.Plan, req.Query)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": id})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	replay, live, detach, err := h.adapter.Subscribe(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	defer detach()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("httpapi: response does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, ev := range replay {
		if writeSSEEvent(w, id, ev) {
			flusher.Flush()
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
		case <-r.Context().Done():
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			writeSSEEvent(w, id, ev)
			flusher.Flush()
			if ev.Type().Terminal() {
				return
			}
			// A heartbeat is only due after a full interval with no event.
			if ticker != nil {
				ticker.Reset(h.heartbeatInterval)
			}
		case <-tick:
			writeSSEEvent(w, id, stream.Heartbeat{})
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one event in SSE `event: <type>\ndata: <json>\n\n`
// framing. It never
// fails the connection on an encode error, since a single bad event should
// not tear down an otherwise healthy stream.
func writeSSEEvent(w http.ResponseWriter, executionID string, ev stream.Event) bool {
	payload, err := stream.Encode(executionID, ev)
	if err != nil {
		return false
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), payload)
	return true
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := h.adapter.Status(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.adapter.Stop(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.adapter.Catalog())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the client-facing {error, kind} shape: kind is the
// first non-empty Kind in err's ToolError chain, or "unknown" if err never
// carries one.
func writeError(w http.ResponseWriter, status int, err error) {
	kind := ""
	for te := toolerrors.FromError(err); te != nil; te = te.Cause {
		if te.Kind != "" {
			kind = te.Kind
			break
		}
	}
	if kind == "" {
		kind = "unknown"
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}
