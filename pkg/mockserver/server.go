// Package mockserver provides a test-local HTTP responder that satisfies the
// golden controller's MockServer contract. Tests point the code under test at
// BaseURI; the controller programs the canned body to serve. Explicit routes
// can be layered on top for tests that need per-path matching, and every
// request observed is recorded and counted.
package mockserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/-/metrics"

// ErrServerClosed is returned when a response is registered after Close.
var ErrServerClosed = errors.New("mock server is closed")

// Request captures a single request observed by the server.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

type response struct {
	status      int
	body        []byte
	contentType string
}

// Option customises server behaviour.
type Option func(*Server)

// WithoutMetricsRoute disables serving the Prometheus registry at /-/metrics.
// MetricsHandler remains available either way.
func WithoutMetricsRoute() Option {
	return func(s *Server) {
		s.metricsRoute = false
	}
}

// Server is an httptest-backed mock responder. The zero value is not usable;
// construct it with New and release it with Close.
type Server struct {
	mu       sync.RWMutex
	routes   map[string]response
	fallback *response
	requests []Request
	closed   bool

	srv          *httptest.Server
	registry     *prometheus.Registry
	hits         *prometheus.CounterVec
	metricsRoute bool
}

// New starts a mock server on a loopback listener.
func New(opts ...Option) *Server {
	registry := prometheus.NewRegistry()
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "goldtape_mock_requests_total",
		Help: "Requests handled by the goldtape mock server.",
	}, []string{"method", "path", "outcome"})
	registry.MustRegister(hits)

	s := &Server{
		routes:       make(map[string]response),
		registry:     registry,
		hits:         hits,
		metricsRoute: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// BaseURI returns the server's base URI for redirecting request code in
// tests.
func (s *Server) BaseURI() string {
	return s.srv.URL
}

// RegisterResponse programs the canned body served to requests that match no
// explicit route. The most recent registration wins; JSON bodies are served
// as application/json.
func (s *Server) RegisterResponse(identifier string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("register response for %s: %w", identifier, ErrServerClosed)
	}
	s.fallback = &response{
		status:      http.StatusOK,
		body:        body,
		contentType: detectContentType(body),
	}
	return nil
}

// Handle programs an explicit route. Exact method+path matches take
// precedence over the fallback registered through RegisterResponse.
func (s *Server) Handle(method, path string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = response{
		status:      status,
		body:        body,
		contentType: detectContentType(body),
	}
}

// HandleJSON programs an explicit route serving the JSON encoding of v.
func (s *Server) HandleJSON(method, path string, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode mock response for %s %s: %w", method, path, err)
	}
	s.Handle(method, path, status, body)
	return nil
}

// Requests returns a copy of every request observed so far.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Reset drops all routes, the fallback response, and the recorded requests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = make(map[string]response)
	s.fallback = nil
	s.requests = nil
}

// MetricsHandler exposes the server's Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Close shuts the listener down. Further registrations fail with
// ErrServerClosed.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.srv.Close()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if s.metricsRoute && r.URL.Path == metricsPath {
		s.MetricsHandler().ServeHTTP(w, r)
		return
	}

	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
	resp, ok := s.routes[r.Method+" "+r.URL.Path]
	if !ok && s.fallback != nil {
		resp = *s.fallback
		ok = true
	}
	s.mu.Unlock()

	if !ok {
		s.hits.WithLabelValues(r.Method, r.URL.Path, "unmatched").Inc()
		http.NotFound(w, r)
		return
	}

	s.hits.WithLabelValues(r.Method, r.URL.Path, "served").Inc()
	w.Header().Set("Content-Type", resp.contentType)
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

func detectContentType(body []byte) string {
	if json.Valid(body) && len(body) > 0 {
		return "application/json"
	}
	return "application/octet-stream"
}
