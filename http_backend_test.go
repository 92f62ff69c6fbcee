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

package curllink

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/redirect-1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect-2", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/redirect-2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Final</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := NewFetcher(FetchConfig{Timeout: 5 * time.Second})
	resp, err := f.Fetch(context.Background(), server.URL+"/redirect-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if resp.FinalURL != server.URL+"/final" {
		t.Errorf("FinalURL = %s, want %s/final", resp.FinalURL, server.URL)
	}
	if string(resp.Body) != "<html><body>Final</body></html>" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if len(resp.RedirectChain) != 2 {
		t.Fatalf("expected 2 redirects, got %d", len(resp.RedirectChain))
	}
	if resp.RedirectChain[0].StatusCode != 301 || resp.RedirectChain[0].URL != server.URL+"/redirect-1" {
		t.Errorf("unexpected first hop %+v", resp.RedirectChain[0])
	}
	if resp.RedirectChain[1].StatusCode != 302 || resp.RedirectChain[1].Location != server.URL+"/final" {
		t.Errorf("unexpected second hop %+v", resp.RedirectChain[1])
	}
}

func TestFetchTooManyRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusFound)
	}))
	defer server.Close()

	_, err := NewFetcher(FetchConfig{}).Fetch(context.Background(), server.URL+"/loop")
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("expected ErrTooManyRedirects, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Timeout {
		t.Errorf("expected a non-timeout FetchError, got %#v", err)
	}
}

func TestFetchDecodesContentEncoding(t *testing.T) {
	const page = "<html><body><a href=\"/x\">compressed</a></body></html>"

	encoders := map[string]func(*bytes.Buffer){
		"gzip": func(b *bytes.Buffer) {
			w := gzip.NewWriter(b)
			w.Write([]byte(page))
			w.Close()
		},
		"deflate": func(b *bytes.Buffer) {
			w := zlib.NewWriter(b)
			w.Write([]byte(page))
			w.Close()
		},
		"raw-deflate": func(b *bytes.Buffer) {
			w, _ := flate.NewWriter(b, flate.DefaultCompression)
			w.Write([]byte(page))
			w.Close()
		},
		"br": func(b *bytes.Buffer) {
			w := brotli.NewWriter(b)
			w.Write([]byte(page))
			w.Close()
		},
	}

	for name, encode := range encoders {
		t.Run(name, func(t *testing.T) {
			var compressed bytes.Buffer
			encode(&compressed)
			header := strings.TrimPrefix(name, "raw-")

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Accept-Encoding") != "gzip, deflate, br" {
					t.Errorf("Accept-Encoding = %q", r.Header.Get("Accept-Encoding"))
				}
				w.Header().Set("Content-Encoding", header)
				w.Write(compressed.Bytes())
			}))
			defer server.Close()

			resp, err := NewFetcher(FetchConfig{}).Fetch(context.Background(), server.URL)
			if err != nil {
				t.Fatalf("Fetch failed: %v", err)
			}
			if string(resp.Body) != page {
				t.Errorf("decoded body = %q", resp.Body)
			}
		})
	}
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterHTML("https://x.com/", "<a href=\"/\">home</a>")

	f := NewFetcher(FetchConfig{
		UserAgent: "custom-agent/2.0",
		Headers:   http.Header{"Accept-Language": {"ja"}, "X-Extra": {"1"}},
	})
	f.WithTransport(mock)

	if _, err := f.Fetch(context.Background(), "https://x.com/"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	h := mock.LastHeaders("https://x.com/")
	if h.Get("User-Agent") != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q", h.Get("User-Agent"))
	}
	if h.Get("Accept-Language") != "ja" || h.Get("X-Extra") != "1" {
		t.Errorf("extra headers missing: %v", h)
	}
}

func TestFetchDefaultUserAgent(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterHTML("https://x.com/", "ok")

	f := NewFetcher(FetchConfig{})
	f.WithTransport(mock)
	if _, err := f.Fetch(context.Background(), "https://x.com/"); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got := mock.LastHeaders("https://x.com/").Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
	}
}

func TestFetchMaxBodySize(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://x.com/big", &MockResponse{Body: bytes.Repeat([]byte("a"), 100)})

	f := NewFetcher(FetchConfig{MaxBodySize: 10})
	f.WithTransport(mock)
	resp, err := f.Fetch(context.Background(), "https://x.com/big")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(resp.Body) != 10 {
		t.Errorf("body length = %d, want 10", len(resp.Body))
	}
}

func TestFetchReturnsErrorStatuses(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://x.com/gone", &MockResponse{
		StatusCode: http.StatusGone,
		Body:       []byte(`<a href="/home">Home</a>`),
	})

	f := NewFetcher(FetchConfig{})
	f.WithTransport(mock)
	resp, err := f.Fetch(context.Background(), "https://x.com/gone")
	if err != nil {
		t.Fatalf("non-2xx statuses are not errors: %v", err)
	}
	if resp.StatusCode != http.StatusGone || len(resp.Body) == 0 {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestFetchTimeout(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterResponse("https://slow.example/", &MockResponse{Delay: time.Minute})

	f := NewFetcher(FetchConfig{Timeout: 50 * time.Millisecond})
	f.WithTransport(mock)

	_, err := f.Fetch(context.Background(), "https://slow.example/")
	if err == nil {
		t.Fatal("expected a timeout")
	}
	if !IsTimeout(err) {
		t.Errorf("expected a timeout FetchError, got %v", err)
	}
}

func TestFetchTransportError(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterError("https://down.example/", errors.New("connection refused"))

	f := NewFetcher(FetchConfig{})
	f.WithTransport(mock)

	_, err := f.Fetch(context.Background(), "https://down.example/")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Timeout {
		t.Error("transport error must not be reported as timeout")
	}
	if fe.URL != "https://down.example/" {
		t.Errorf("FetchError.URL = %q", fe.URL)
	}
}

func TestFetchTLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	if _, err := NewFetcher(FetchConfig{}).Fetch(context.Background(), server.URL); err == nil {
		t.Error("self-signed certificate should fail verification")
	}

	resp, err := NewFetcher(FetchConfig{InsecureSkipVerify: true}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch with verification disabled failed: %v", err)
	}
	if string(resp.Body) != "secure" {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestFetchTrace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("traced"))
	}))
	defer server.Close()

	resp, err := NewFetcher(FetchConfig{TraceHTTP: true}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Trace == nil {
		t.Fatal("expected a trace")
	}
	if resp.Trace.FirstByteDuration <= 0 {
		t.Errorf("FirstByteDuration = %v", resp.Trace.FirstByteDuration)
	}
}

func TestLimitRuleRejectsWaitPastDeadline(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterHTML("https://limited.example/", "ok")

	f := NewFetcher(FetchConfig{Timeout: 100 * time.Millisecond})
	f.WithTransport(mock)
	if err := f.Limit(&LimitRule{DomainGlob: "*.example", RequestsPerSecond: 0.1, Burst: 1}); err != nil {
		t.Fatalf("Limit: %v", err)
	}

	if _, err := f.Fetch(context.Background(), "https://limited.example/"); err != nil {
		t.Fatalf("first fetch should use the burst: %v", err)
	}
	_, err := f.Fetch(context.Background(), "https://limited.example/")
	if !IsTimeout(err) {
		t.Fatalf("second fetch should time out waiting for the limiter, got %v", err)
	}
	if mock.Requests("https://limited.example/") != 1 {
		t.Errorf("limited request reached the transport")
	}
}

func TestLimitRuleMatch(t *testing.T) {
	rule := &LimitRule{DomainGlob: "*.example.com"}
	if err := rule.Init(); err != nil {
		t.Fatal(err)
	}
	if !rule.Match("www.example.com") {
		t.Error("glob should match subdomain")
	}
	if rule.Match("example.org") {
		t.Error("glob should not match other domain")
	}

	if err := (&LimitRule{}).Init(); !errors.Is(err, ErrNoPattern) {
		t.Errorf("expected ErrNoPattern, got %v", err)
	}
}

func TestParseLimitRules(t *testing.T) {
	rules, err := ParseLimitRules("*.example.com=2:5, *=0.5")
	if err != nil {
		t.Fatalf("ParseLimitRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[0].DomainGlob != "*.example.com" || rules[0].RequestsPerSecond != 2 || rules[0].Burst != 5 {
		t.Errorf("unexpected first rule %+v", rules[0])
	}
	if rules[1].DomainGlob != "*" || rules[1].RequestsPerSecond != 0.5 || rules[1].Burst != 1 {
		t.Errorf("unexpected second rule %+v", rules[1])
	}

	for _, bad := range []string{"nopattern", "=1", "x.com=fast", "x.com=1:many"} {
		if _, err := ParseLimitRules(bad); err == nil {
			t.Errorf("ParseLimitRules(%q) should fail", bad)
		}
	}

	if rules, err := ParseLimitRules(""); err != nil || len(rules) != 0 {
		t.Errorf("empty input should give no rules, got %v %v", rules, err)
	}
}
