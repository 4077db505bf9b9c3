// Package httpserver exposes monitor snapshots over HTTP, WebSocket and
// Prometheus.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/skobkin/proctop-web/internal/config"
	"github.com/skobkin/proctop-web/internal/monitor"
	"github.com/skobkin/proctop-web/internal/version"
)

const readHeaderTimeout = 5 * time.Second

// Server wraps the HTTP surface area of the application.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	monitor    *monitor.Manager

	wsSlots    chan struct{}
	wsActive   atomic.Int64
	wsTotal    atomic.Uint64
	wsRejected atomic.Uint64
	wsSent     atomic.Uint64
	wsDropped  atomic.Uint64
	wsConnIDs  atomic.Uint64
	requestIDs atomic.Uint64
}

// New assembles a Server with its handlers. monitorManager may be nil, in
// which case data endpoints answer 503.
func New(cfg config.Config, logger *slog.Logger, monitorManager *monitor.Manager) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		monitor: monitorManager,
	}

	if cfg.WS.MaxClients > 0 {
		s.wsSlots = make(chan struct{}, cfg.WS.MaxClients)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/readyz", s.handleReadyz)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api", s.handleAPIDocs)
	mux.HandleFunc("/api/", s.handleAPIDocs)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/system", s.handleSystem)
	mux.HandleFunc("/api/processes", s.handleProcesses)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", s.staticHandler())

	if cfg.EnablePrometheus {
		s.registerPrometheus(mux)
	}
	if cfg.EnablePprof {
		registerPprof(mux)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.withRequestLogging(mux),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// allowGet rejects anything but GET and reports whether the handler may continue.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.loggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	info := s.readiness()
	status := http.StatusOK
	if info.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, info)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	s.writeJSON(w, r, http.StatusOK, version.Current())
}

func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if r.URL.Path != "/api" && r.URL.Path != "/api/" {
		http.NotFound(w, r)
		return
	}

	logger := s.loggerFromContext(r.Context())
	data, err := embeddedAssets.ReadFile("assets/api.html")
	if err != nil {
		logger.Error("failed to read api docs asset", "err", err)
		http.Error(w, "missing api docs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		logger.Warn("failed to write api docs response", "err", err)
	}
}

// latest returns the current snapshot or writes a 503 and reports false.
func (s *Server) latest(w http.ResponseWriter) (monitor.Snapshot, bool) {
	if s.monitor == nil {
		http.Error(w, "monitor unavailable", http.StatusServiceUnavailable)
		return monitor.Snapshot{}, false
	}
	snapshot, ok := s.monitor.Latest()
	if !ok {
		http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
		return monitor.Snapshot{}, false
	}
	return snapshot, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	snapshot, ok := s.latest(w)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, snapshot)
}

type systemResponse struct {
	Timestamp time.Time `json:"ts"`
	monitor.System
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	snapshot, ok := s.latest(w)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, systemResponse{Timestamp: snapshot.Timestamp, System: snapshot.System})
}

type processesResponse struct {
	Timestamp time.Time         `json:"ts"`
	Processes []monitor.Process `json:"processes"`
}

// handleProcesses serves the ranked process table. An optional limit
// query parameter trims it further.
func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	limit := -1
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	snapshot, ok := s.latest(w)
	if !ok {
		return
	}
	processes := snapshot.Processes
	if limit >= 0 && limit < len(processes) {
		processes = processes[:limit]
	}
	s.writeJSON(w, r, http.StatusOK, processesResponse{Timestamp: snapshot.Timestamp, Processes: processes})
}

func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

func (s *Server) readiness() readyResponse {
	if s.monitor == nil {
		return readyResponse{Status: "degraded", Reason: "monitor_not_configured"}
	}
	if !s.monitor.Ready() {
		return readyResponse{Status: "initializing", Reason: "waiting_for_snapshot"}
	}
	return readyResponse{Status: "ok"}
}

type readyResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}
