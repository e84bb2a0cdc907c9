// Package bridge serves editor sessions to a host over WebSocket.
//
// The bridge is the reference transport for the engine: a chi router with a
// health check, a session listing and a WebSocket endpoint per session. Each
// connection decodes JSON [Inbound] frames, applies them to its session and
// writes [Outbound] frames (envelopes, menu overlays, popups, fit requests
// and errors) from a single writer goroutine.
//
// # Routes
//
//	GET /healthz        {"status": "ok", "version": "..."}
//	GET /sessions       {"sessions": ["..."]}
//	GET /ws/{session}   WebSocket; "new" creates a session
package bridge

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/flowco/flowsync/pkg/buildinfo"
	"github.com/flowco/flowsync/pkg/session"
)

// Settings tunes connections.
type Settings struct {
	// PingInterval is the keepalive period. Zero disables pings and the
	// read deadline.
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ReadLimit caps the size of one inbound frame.
	ReadLimit int64
	// SendBuffer is the number of outbound frames queued per connection.
	SendBuffer int
	// AllowedOrigins restricts upgrades by Origin header. Empty allows all.
	AllowedOrigins []string
}

// DefaultSettings returns the settings used by `flowsync serve`.
func DefaultSettings() Settings {
	return Settings{
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadLimit:    8 << 20,
		SendBuffer:   64,
	}
}

// Server routes HTTP and WebSocket traffic to sessions.
type Server struct {
	reg      *session.Registry
	logger   *log.Logger
	settings Settings
	upgrader websocket.Upgrader
	router   chi.Router
}

// NewServer creates a server over reg.
func NewServer(reg *session.Registry, logger *log.Logger, settings Settings) *Server {
	if logger == nil {
		logger = log.Default()
	}
	d := DefaultSettings()
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = d.WriteTimeout
	}
	if settings.ReadLimit <= 0 {
		settings.ReadLimit = d.ReadLimit
	}
	if settings.SendBuffer <= 0 {
		settings.SendBuffer = d.SendBuffer
	}

	s := &Server{reg: reg, logger: logger, settings: settings}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/healthz", s.handleHealth)
	r.Get("/sessions", s.handleSessions)
	r.Get("/ws/{session}", s.handleWebSocket)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.settings.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.settings.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Server", buildinfo.ServerHeader())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"sessions": s.reg.Len(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.reg.IDs()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, release, err := s.reg.Acquire(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer release()
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade", "session", sess.ID(), "err", err)
		return
	}
	newConn(ws, sess, s.logger.With("session", sess.ID()), s.settings).serve(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
