// Package server exposes the history to consumers: a loopback HTTP API for
// browsing, searching, re-copying, pinning and deleting clips, and a
// websocket feed that pushes the updated history on every mutation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"clipd/internal/service"
	"clipd/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// snapshotLimit bounds the history pushed over the websocket feed.
const snapshotLimit = 100

type Config struct {
	Port int
}

type Server struct {
	svc    *service.Service
	hub    *Hub
	srv    *http.Server
	config Config
	logger *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(svc *service.Service, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:    svc,
		config: config,
		logger: logger,
	}
}

func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.hub = newHub(s.logger)
	go s.hub.run(ctx)
	s.wg.Add(1)
	go s.watchHistory(ctx, &s.wg)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/status", s.handleStatus)
	r.Get("/ws", s.serveWs)
	r.Route("/api", func(r chi.Router) {
		r.Get("/clips", s.handleListClips)
		r.Get("/clips/{id}", s.handleGetClip)
		r.Post("/clips/{id}/copy", s.handleCopyClip)
		r.Put("/clips/{id}/pin", s.handlePinClip)
		r.Delete("/clips/{id}", s.handleDeleteClip)
		r.Delete("/clips", s.handleDeleteAll)
		r.Get("/count", s.handleCount)
		r.Post("/service/stop", s.handleServiceStop)
	})

	addr := fmt.Sprintf("127.0.0.1:%d", s.config.Port)
	s.srv = &http.Server{Addr: addr, Handler: r}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("http server error on %s: %w", addr, err)
		}
	}()

	select {
	case err := <-serverErr:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("api server listening", "addr", addr)
		return nil
	}
}

func (s *Server) Stop() error {
	s.cancel()
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"monitoring": s.svc.Running(),
		"time":       time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var err error
	var clips any
	switch {
	case r.URL.Query().Get("pinned") == "true":
		clips, err = s.svc.Pinned(r.Context())
	case r.URL.Query().Get("q") != "":
		clips, err = s.svc.Search(r.Context(), r.URL.Query().Get("q"))
	default:
		clips, err = s.svc.History(r.Context(), limit, offset)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, clips)
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	id, ok := clipID(w, r)
	if !ok {
		return
	}

	clip, err := s.svc.Get(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, clip)
}

func (s *Server) handleCopyClip(w http.ResponseWriter, r *http.Request) {
	id, ok := clipID(w, r)
	if !ok {
		return
	}

	if err := s.svc.CopyToClipboard(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePinClip(w http.ResponseWriter, r *http.Request) {
	id, ok := clipID(w, r)
	if !ok {
		return
	}

	var body struct {
		Pinned bool `json:"pinned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := s.svc.SetPinned(r.Context(), id, body.Pinned); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	id, ok := clipID(w, r)
	if !ok {
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.svc.Count(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// handleServiceStop is the external stop command: it halts monitoring but
// leaves the API up so a consumer can restart it or inspect history.
func (s *Server) handleServiceStop(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Stop(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func clipID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid clip id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
