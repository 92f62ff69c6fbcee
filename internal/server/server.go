// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/daishir0/api-curl-link/internal/config"
	"github.com/daishir0/api-curl-link/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Options are the optional parts of a Server.
type Options struct {
	Metrics *metrics.Collector
	// MCP is mounted at /mcp behind the API key check when not nil
	MCP http.Handler
}

// Server represents the HTTP server
type Server struct {
	app     *app.App
	cfg     *config.Config
	logger  *logrus.Entry
	metrics *metrics.Collector
	mux     *http.ServeMux
}

// NewServer creates a new HTTP server
func NewServer(a *app.App, cfg *config.Config, logger *logrus.Entry, opts Options) *Server {
	s := &Server{
		app:     a,
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes(opts.MCP)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"duration": time.Since(start).String(),
	}).Debug("Handled request")
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(mcpHandler http.Handler) {
	s.handle("/", http.HandlerFunc(s.handleLinks))
	s.handle("/health", http.HandlerFunc(s.handleHealth))
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
	if mcpHandler != nil {
		s.handle("/mcp", s.requireAPIKey(mcpHandler))
	}
}

func (s *Server) handle(pattern string, h http.Handler) {
	if s.metrics != nil {
		h = s.metrics.Middleware(pattern, h)
	}
	s.mux.Handle(pattern, h)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// handleLinks is the link extraction endpoint. Rejections happen in order:
// method, credential, URL.
func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.MethodAllowed(r.Method) {
		s.writeError(w, app.ErrMethodNotAllowed)
		return
	}

	p := readParams(w, r)
	if !s.validKey(p.APIKey) {
		s.logger.WithField("remote", r.RemoteAddr).Warn("Rejected request with invalid API key")
		s.writeError(w, app.ErrInvalidAPIKey)
		return
	}

	res, err := s.app.Links(r.Context(), app.Request{
		URL:   p.URL,
		Scope: p.XPath,
		Force: p.Force == "1",
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Cache", string(res.Cache))
	w.Write(res.Body)
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.validKey(r.Header.Get(paramAPIKey)) {
			s.writeError(w, app.ErrInvalidAPIKey)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) validKey(key string) bool {
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIKey)) == 1
}

// writeError maps pipeline errors to status codes and {"error": ...} bodies.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, message, known := app.Describe(err)
	if !known {
		s.logger.WithError(err).Error("Unexpected pipeline error")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
