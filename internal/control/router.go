// Package control is the gateway's side channel: everything that is not
// intercepted app traffic. Push injection, sync triggers, lifecycle
// messages, queue appends, the window websocket and metrics all land
// here, mounted away from the app routes.
package control

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"couriergate/internal/logging"
	"couriergate/internal/metrics"
	"couriergate/internal/queue"
	"couriergate/internal/windows"
	"couriergate/internal/worker"
)

// maxBodySize bounds control-plane request bodies. Push payloads and
// queued mutations are small JSON documents.
const maxBodySize = 64 << 10

type Server struct {
	worker *worker.Worker
	queue  *queue.Store
	hub    *windows.Hub
	logger logging.Logger
}

func NewRouter(w *worker.Worker, q *queue.Store, hub *windows.Hub, logger logging.Logger) http.Handler {
	s := &Server{worker: w, queue: q, hub: hub, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/push", s.handlePush)
	r.Post("/notification/click", s.handleNotificationClick)
	r.Post("/sync/{tag}", s.handleSync)
	r.Post("/periodic-sync/{tag}", s.handlePeriodicSync)
	r.Post("/message", s.handleMessage)
	r.Post("/queue/{key}", s.handleQueueAppend)
	r.Get("/state", s.handleState)
	r.Get("/ws", windows.Handler(hub, logger))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// handlePush accepts a raw push payload. Malformed payloads are dropped
// by the gateway, not rejected here; the transport has already delivered.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.worker.Dispatch(r.Context(), worker.EventPush, body); err != nil {
		s.logger.Error("push dispatch failed", "err", err.Error())
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleNotificationClick(w http.ResponseWriter, r *http.Request) {
	var ev struct {
		Action string         `json:"action"`
		Data   map[string]any `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&ev); err != nil {
		http.Error(w, "invalid click event", http.StatusBadRequest)
		return
	}

	outcome := s.worker.NotificationClick(r.Context(), ev.Action, ev.Data)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(outcome)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := s.worker.Dispatch(r.Context(), worker.EventSync, []byte(tag)); err != nil {
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePeriodicSync(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := s.worker.Dispatch(r.Context(), worker.EventPeriodicSync, []byte(tag)); err != nil {
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := s.worker.Dispatch(r.Context(), worker.EventMessage, body); err != nil {
		http.Error(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleQueueAppend enqueues one pending mutation under a queue key, the
// gateway-side write path the app uses while offline.
func (s *Server) handleQueueAppend(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if !json.Valid(body) {
		http.Error(w, "item must be JSON", http.StatusBadRequest)
		return
	}

	if err := s.queue.Append(r.Context(), key, body); err != nil {
		s.logger.Error("queue append failed", "key", key, "err", err.Error())
		http.Error(w, "append failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"state":   s.worker.Lifecycle.State().String(),
		"version": s.worker.Lifecycle.Version(),
	})
}
