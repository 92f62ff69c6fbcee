// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
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

// Package testutil provides a small test site for end-to-end tests of the
// link endpoint: plain, legacy-encoded, compressed, redirecting and slow
// pages plus a robots.txt.
package testutil

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"golang.org/x/text/encoding/japanese"
)

// Test data shared across tests
var (
	IndexHTML = `<!DOCTYPE html>
<html>
<head><title>Test Site</title></head>
<body>
<nav>
    <a href="/">Home</a>
    <a href="/docs/">Documentation</a>
</nav>
<article id="main">
    <a href="post.html">Read the   first
        post</a>
    <a href="https://other.example/ref">Reference <img alt="external"></a>
    <a href="#top">Back to top</a>
    <a href="javascript:void(0)">Menu</a>
</article>
</body>
</html>`

	// SJISLabel is the anchor text of the Shift_JIS page
	SJISLabel = "製品情報"
	sjisHTML  = `<html><head><meta charset="Shift_JIS"><title>製品</title></head>` +
		`<body><a href="/products">` + SJISLabel + `</a></body></html>`

	RobotsFile = `
User-agent: *
Allow: /
Disallow: /private
`
)

// Site is a running test site that counts requests per path
type Site struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

// Hits returns how many requests path received
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Site) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// NewUnstartedTestServer creates an unstarted test site with all endpoints configured
func NewUnstartedTestServer() *Site {
	site := &Site{hits: make(map[string]int)}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(IndexHTML))
	})

	mux.HandleFunc("/sjis", func(w http.ResponseWriter, r *http.Request) {
		body, err := japanese.ShiftJIS.NewEncoder().String(sjisHTML)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	})

	mux.HandleFunc("/gzip", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(IndexHTML))
		gz.Close()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	})

	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(RobotsFile))
	})

	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="/secret">Secret</a>`))
	})

	mux.HandleFunc("/500", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<p>Something broke. <a href="/status">Status page</a></p>`))
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		w.Write([]byte(`<a href="/">Home</a>`))
	})

	site.Server = httptest.NewUnstartedServer(site.count(mux))
	return site
}

// NewTestServer creates and starts a test site
func NewTestServer() *Site {
	site := NewUnstartedTestServer()
	site.Start()
	return site
}
