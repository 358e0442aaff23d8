// Package server wires the scadform HTTP surface: the compile websocket
// channel, a parameter-set event stream, and a small JSON API for parameter
// extraction and synthesis.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/scadform/scadform/internal/build"
	"github.com/scadform/scadform/internal/config"
	"github.com/scadform/scadform/internal/deps"
	"github.com/scadform/scadform/internal/logging"
	"github.com/scadform/scadform/internal/params"
	"github.com/scadform/scadform/internal/registry"
	"github.com/scadform/scadform/internal/types"
)

// Server hosts the compile channel and the parameter API.
type Server struct {
	config   *config.Config
	logger   logging.Logger
	registry *registry.ParamRegistry
	factory  *build.Factory
	orch     *build.Orchestrator
	channel  *Channel

	httpServer *http.Server
}

// New assembles a Server from configuration: engine factory, dependency
// cache, artifact cache, orchestrator, registry and channel.
func New(cfg *config.Config, logger logging.Logger) *Server {
	factory := build.NewFactory(build.EngineConfig{
		Command:        cfg.Engine.Command,
		OutputFlag:     cfg.Engine.OutputFlag,
		DefineFlag:     cfg.Engine.DefineFlag,
		LibraryPathEnv: cfg.Engine.LibraryPathEnv,
	}, logger)

	depCache := deps.NewCache(deps.Host{
		ListingURL: cfg.Library.ListingURL,
		FileURL:    cfg.Library.FileURL,
	}, http.DefaultClient, logger)

	library := deps.Library{Name: cfg.Library.Name, Version: cfg.Library.Version}

	orch := build.NewOrchestrator(
		factory,
		depCache,
		library,
		build.NewArtifactCache(cfg.Cache.ArtifactEntries),
		logger,
	)

	s := &Server{
		config:   cfg,
		logger:   logger.WithComponent("server"),
		registry: registry.NewParamRegistry(),
		factory:  factory,
		orch:     orch,
	}
	s.channel = NewChannel(orch, logger, cfg.Server.Host, cfg.Server.Port,
		cfg.Server.AllowedOrigins, cfg.Engine.Timeout)

	return s
}

// Registry exposes the parameter registry so a file watcher can feed it.
func (s *Server) Registry() *registry.ParamRegistry {
	return s.registry
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.registry.UnwatchAll()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.channel)
	mux.HandleFunc("/ws/events", s.handleEvents)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/synthesize", s.handleSynthesize)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	return mux
}

// handleParams returns the parameter descriptors for a source file. Files the
// watcher has registered are served from the registry; anything else is read
// from disk and extracted on demand.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("file")
	if path == "" {
		http.Error(w, "missing file parameter", http.StatusBadRequest)
		return
	}

	if set, ok := s.registry.Get(path); ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"path":        set.Path,
			"descriptors": set.Descriptors,
		})
		return
	}

	source, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("read %s: %v", path, err), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":        path,
		"descriptors": params.Extract(string(source)),
	})
}

type synthesizeRequest struct {
	Source    string           `json:"source"`
	Overrides []types.Override `json:"overrides"`
}

// handleSynthesize applies overrides to a source text and returns the
// rewritten source. Lines without a matching override come back unchanged.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	descriptors := params.Extract(req.Source)
	applied := params.Apply(descriptors, req.Overrides)

	writeJSON(w, http.StatusOK, map[string]any{
		"source":  params.Synthesize(req.Source, descriptors),
		"applied": applied,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"engineLoaded":    s.factory.Loaded(),
		"registeredFiles": s.registry.Count(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Metrics())
}

// handleEvents streams parameter-set change events over a websocket. The
// watcher is released when the peer disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.channel.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), err, "event stream upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events := s.registry.Watch()
	defer s.registry.Unwatch(events)

	ctx := r.Context()

	// Reads are drained so close frames from the peer end the stream.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
