// Package server provides navd's HTTP API: route queries, tile lookups,
// health/status, and a bearer-token-gated admin surface (§4.12, §6.5).
//
// Endpoints:
//
//	POST /route          - resolve a path between two world points
//	GET  /tile           - resolve a world point to its node id
//	GET  /health         - liveness probe
//	GET  /status         - runtime statistics
//	POST /admin/reload   - hot-swap the loaded snapshot (bearer-token gated)
//
// Middleware chain (outermost first): CORS, recovery, metrics, logging.
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orneryd/navpath/pkg/audit"
	"github.com/orneryd/navpath/pkg/config"
	"github.com/orneryd/navpath/pkg/requirement"
	"github.com/orneryd/navpath/pkg/routecache"
	"github.com/orneryd/navpath/pkg/search"
	"github.com/orneryd/navpath/pkg/snapshot"
)

// ErrServerClosed is returned by Start after Stop has been called.
var ErrServerClosed = fmt.Errorf("server: already closed")

// ErrInternalError is the generic message surfaced for recovered panics.
var ErrInternalError = fmt.Errorf("server: internal error")

// Config holds HTTP server settings, trimmed from config.ServerConfig at
// wiring time in cmd/navd.
type Config struct {
	Address      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableCORS   bool
	CORSOrigins  []string
	AdminToken   string
}

// DefaultConfig returns the defaults matching config.Default().Server.
func DefaultConfig() *Config {
	return &Config{
		Address:      "0.0.0.0",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		EnableCORS:   true,
		CORSOrigins:  []string{"*"},
	}
}

// Reloader swaps the engine backing route queries. Implemented by
// cmd/navd's reloader, which reopens the snapshot and tile index on
// demand; kept as an interface here so server has no direct dependency on
// snapshot loading.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Server is navd's HTTP API server.
//
// Thread-safe; Engine may be swapped concurrently with in-flight requests
// via SetEngine (used by the admin reload endpoint).
type Server struct {
	config   *Config
	audit    *audit.Logger
	cache    *routecache.Cache
	reloader Reloader

	engineMu sync.RWMutex
	engine   *search.Engine

	httpServer *http.Server
	listener   net.Listener

	mu      sync.RWMutex
	closed  atomic.Bool
	started time.Time

	requestCount   atomic.Int64
	errorCount     atomic.Int64
	activeRequests atomic.Int64
}

// New creates a Server bound to engine. cfg defaults via DefaultConfig if
// nil.
func New(engine *search.Engine, cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("server: engine required")
	}
	return &Server{config: cfg, engine: engine}, nil
}

// SetAuditLogger attaches an audit logger for §7 error events.
func (s *Server) SetAuditLogger(logger *audit.Logger) { s.audit = logger }

// SetCache attaches the optional route-result cache (§4.10). The server
// only stores it; handleRoute does not read from or write to it.
func (s *Server) SetCache(c *routecache.Cache) { s.cache = c }

// SetReloader attaches the admin-reload hook (§6.5).
func (s *Server) SetReloader(r Reloader) { s.reloader = r }

// currentEngine returns the engine under a read lock, safe to call
// concurrently with SetEngine.
func (s *Server) currentEngine() *search.Engine {
	s.engineMu.RLock()
	defer s.engineMu.RUnlock()
	return s.engine
}

// SetEngine atomically swaps the engine serving /route and /tile, used
// after a successful admin reload.
func (s *Server) SetEngine(e *search.Engine) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.engine = e
}

// Start begins listening and serving in a background goroutine.
func (s *Server) Start() error {
	if s.closed.Load() {
		return ErrServerClosed
	}

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.started = time.Now()

	s.httpServer = &http.Server{
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			fmt.Printf("navd: http server error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, waiting for in-flight requests
// to complete or ctx to expire.
func (s *Server) Stop(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Stats is a snapshot of runtime server metrics.
type Stats struct {
	Uptime         time.Duration `json:"uptime"`
	RequestCount   int64         `json:"request_count"`
	ErrorCount     int64         `json:"error_count"`
	ActiveRequests int64         `json:"active_requests"`
}

// Stats returns current runtime metrics; safe for concurrent use.
func (s *Server) Stats() Stats {
	return Stats{
		Uptime:         time.Since(s.started),
		RequestCount:   s.requestCount.Load(),
		ErrorCount:     s.errorCount.Load(),
		ActiveRequests: s.activeRequests.Load(),
	}
}

func (s *Server) buildRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/tile", s.handleTile)
	mux.HandleFunc("/admin/reload", s.withAdminAuth(s.handleAdminReload))

	handler := s.loggingMiddleware(mux)
	handler = s.metricsMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = s.corsMiddleware(handler)
	return handler
}

// Middleware

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableCORS {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			allowed := false
			for _, o := range s.config.CORSOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				fmt.Printf("navd: panic: %v\n%s\n", err, buf[:n])
				s.errorCount.Add(1)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requestCount.Add(1)
		s.activeRequests.Add(1)
		defer s.activeRequests.Add(-1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if r.URL.Path != "/health" {
			fmt.Printf("[http] %s %s %d %v\n", r.Method, r.URL.Path, wrapped.status, time.Since(start))
		}
	})
}

func (s *Server) withAdminAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminToken == "" {
			s.writeError(w, http.StatusServiceUnavailable, "admin surface disabled")
			return
		}
		got := r.Header.Get("Authorization")
		if !secureCompare(got, "Bearer "+s.config.AdminToken) {
			s.writeError(w, http.StatusUnauthorized, "invalid or missing admin token")
			return
		}
		handler(w, r)
	}
}

// secureCompare is a constant-time string comparison (§4.12: the admin
// token is compared in constant time). Both inputs are hashed to a fixed
// length first so the comparison's timing doesn't depend on either
// input's length, only its contents.
func secureCompare(a, b string) bool {
	ah := sha256.Sum256([]byte(a))
	bh := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ah[:], bh[:]) == 1
}

// Handlers

// routeRequestBody is the JSON wire shape of POST /route (§6.3).
type routeRequestBody struct {
	Start        pointBody           `json:"start"`
	Goal         pointBody           `json:"goal"`
	Requirements []requirement.Input `json:"requirements"`
	Options      *optionsBody        `json:"options"`
	Surge        *familyBody         `json:"surge"`
	Dive         *familyBody         `json:"dive"`
}

type pointBody struct {
	X     int32 `json:"x"`
	Y     int32 `json:"y"`
	Plane int32 `json:"plane"`
}

type optionsBody struct {
	ReturnGeometry bool    `json:"return_geometry"`
	OnlyActions    bool    `json:"only_actions"`
	Weight         float32 `json:"weight"`
	Seed           *uint64 `json:"seed"`
	MaxExpansions  uint32  `json:"max_expansions"`
}

type familyBody struct {
	Enabled        bool   `json:"enabled"`
	InitialCharges uint8  `json:"initial_charges"`
	CooldownMS     uint32 `json:"cooldown_ms"`
}

func toPoint(p pointBody) snapshot.Point { return snapshot.Point{X: p.X, Y: p.Y, Plane: p.Plane} }

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var body routeRequestBody
	if err := s.readJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Options != nil && body.Options.Weight != 0 && (body.Options.Weight < 1.0 || body.Options.Weight > 1.5) {
		s.writeError(w, http.StatusBadRequest, "malformed-request: weight must be in [1.0, 1.5]")
		return
	}

	req := search.Request{
		Start:        toPoint(body.Start),
		Goal:         toPoint(body.Goal),
		Requirements: body.Requirements,
	}
	if body.Options != nil {
		req.Options = search.Options{
			ReturnGeometry: body.Options.ReturnGeometry,
			OnlyActions:    body.Options.OnlyActions,
			Weight:         body.Options.Weight,
			Seed:           body.Options.Seed,
			MaxExpansions:  body.Options.MaxExpansions,
		}
	}
	if body.Surge != nil {
		req.Surge.Enabled = body.Surge.Enabled
		req.Surge.InitialCharges = body.Surge.InitialCharges
		req.Surge.CooldownMS = body.Surge.CooldownMS
	}
	if body.Dive != nil {
		req.Dive.Enabled = body.Dive.Enabled
		req.Dive.InitialCharges = body.Dive.InitialCharges
		req.Dive.CooldownMS = body.Dive.CooldownMS
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	engine := s.currentEngine()
	result, err := engine.Route(ctx, req)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "route: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	x := parseIntQuery(r, "x", 0)
	y := parseIntQuery(r, "y", 0)
	plane := parseIntQuery(r, "plane", 0)

	engine := s.currentEngine()
	node, ok := engine.Graph.Tiles.Lookup(int32(x), int32(y), int32(plane))
	if !ok {
		s.writeError(w, http.StatusNotFound, "no node at coordinate")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"node_id": uint32(node),
		"x":       x, "y": y, "plane": plane,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Stats()
	engine := s.currentEngine()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "running",
		"server": stats,
		"graph": map[string]any{
			"nodes": engine.Graph.N(),
		},
		"pool": map[string]any{
			"size":      engine.Pool.Size(),
			"available": engine.Pool.Available(),
		},
	})
}

// handleAdminReload triggers Reloader.Reload, which is expected to build
// a fresh *search.Engine from disk and call SetEngine (§6.5).
func (s *Server) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.reloader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "reload not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	err := s.reloader.Reload(ctx)
	if s.audit != nil {
		if err != nil {
			s.audit.LogError(audit.EventAdminReload, "snapshot", err.Error())
		} else {
			s.audit.LogSuccess(audit.EventAdminReload, "snapshot", nil)
		}
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reload failed: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}

// helpers

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) readJSON(r *http.Request, v any) error {
	body := io.LimitReader(r.Body, 1<<20)
	return json.NewDecoder(body).Decode(v)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.errorCount.Add(1)
	s.writeJSON(w, status, map[string]any{"error": true, "message": message, "code": status})
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	var n int
	_, err := fmt.Sscanf(v, "%d", &n)
	if err != nil {
		return defaultVal
	}
	return n
}

// FromAppConfig builds a server Config from the application-wide config
// (§4.9), keeping the two configuration shapes decoupled.
func FromAppConfig(c *config.Config) *Config {
	return &Config{
		Address:      c.Server.Address,
		Port:         c.Server.Port,
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  c.Server.IdleTimeout,
		EnableCORS:   c.Server.EnableCORS,
		CORSOrigins:  c.Server.CORSOrigins,
		AdminToken:   c.Server.AdminToken,
	}
}
