// Package echoserver is a local probe target. It speaks HTTP/1.1 and
// cleartext HTTP/2 on the same port and has endpoints for status codes,
// redirect chains and cookies.
package echoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// SessionCookie is the cookie set by /cookie.
const SessionCookie = "svcbench_session"

// Stats tracks request statistics
type Stats struct {
	TotalRequests atomic.Int64
	Errors        atomic.Int64
	StartTime     time.Time
}

// Server is the echo target.
type Server struct {
	server  *http.Server
	logger  *zap.Logger
	stats   *Stats
	session atomic.Int64
}

// New creates a server listening on addr.
func New(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		logger: logger.Named("echo"),
		stats:  &Stats{StartTime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status/{code}", s.handleStatus)
	mux.HandleFunc("/redirect/{n}", s.handleRedirect)
	mux.HandleFunc("/cookie", s.handleCookie)
	mux.HandleFunc("/api/echo", s.handleEcho)
	mux.HandleFunc("/api/stats", s.handleStats)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.count(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, including h2c upgrade support.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Stats returns the live request counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Start binds the address and serves in the background. It returns the
// bound address.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, err
	}

	s.logger.Info("listening", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", zap.Error(err))
		}
	}()

	return ln.Addr(), nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.stats.TotalRequests.Add(1)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("proto", r.Proto))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) fail(w http.ResponseWriter, msg string, code int) {
	s.stats.Errors.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.fail(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{
		"service": "svcbench-echo",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.stats.StartTime).String(),
	})
}

// handleStatus replies with the status code named in the path.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 999 {
		s.fail(w, "invalid status code", http.StatusBadRequest)
		return
	}

	w.WriteHeader(code)
	fmt.Fprintf(w, "%d\n", code)
}

// handleRedirect sends a chain of n redirects ending at /health.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 {
		s.fail(w, "invalid redirect count", http.StatusBadRequest)
		return
	}

	target := "/health"
	if n > 1 {
		target = "/redirect/" + strconv.Itoa(n-1)
	}
	if n == 0 {
		s.handleHealth(w, r)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// handleCookie hands out a session cookie and reports whether the request
// already carried one.
func (s *Server) handleCookie(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    strconv.FormatInt(s.session.Add(1), 10),
			Path:     "/",
			HttpOnly: true,
		})
		writeJSON(w, map[string]any{"session": nil})
		return
	}

	writeJSON(w, map[string]any{"session": c.Value})
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var body any
	json.NewDecoder(r.Body).Decode(&body)

	writeJSON(w, map[string]any{
		"method":    r.Method,
		"path":      r.URL.Path,
		"proto":     r.Proto,
		"headers":   r.Header,
		"body":      body,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.stats.StartTime)
	total := s.stats.TotalRequests.Load()

	writeJSON(w, map[string]any{
		"uptime":           uptime.String(),
		"total_requests":   total,
		"errors":           s.stats.Errors.Load(),
		"requests_per_sec": fmt.Sprintf("%.2f", float64(total)/uptime.Seconds()),
	})
}
