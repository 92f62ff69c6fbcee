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
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/daishir0/api-curl-link/internal/config"
	"github.com/daishir0/api-curl-link/internal/metrics"
	"github.com/daishir0/api-curl-link/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "s3cret"
	testPage = "https://example.com/blog/post.html"
)

type fixture struct {
	server *Server
	mock   *curllink.MockTransport
	fs     afero.Fs
}

func newFixture(t *testing.T, fs afero.Fs, mcpHandler http.Handler) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = testKey

	mock := curllink.NewMockTransport()
	mock.RegisterHTML(testPage, `<body><article><a href="next.html">Next post</a></article><footer><a href="/about">About us and more</a></footer></body>`)
	mock.RegisterError("https://down.example/", errors.New("connection refused"))

	fetcher := curllink.NewFetcher(curllink.FetchConfig{Timeout: 5 * time.Second})
	fetcher.WithTransport(mock)

	artifacts := storage.NewArtifacts(fs, "/cache")
	logger, _ := test.NewNullLogger()
	collector := metrics.NewCollector()
	a := app.NewApp(app.Deps{
		Fetcher:   fetcher,
		Index:     storage.NewFileIndex(artifacts, cfg.Policy()),
		Artifacts: artifacts,
		Logger:    logrus.NewEntry(logger),
		Emitter:   collector,
	})
	s := NewServer(a, cfg, logrus.NewEntry(logger), Options{Metrics: collector, MCP: mcpHandler})
	return &fixture{server: s, mock: mock, fs: fs}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func headerRequest(method string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func formRequest(fields url.Values, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestLinksEndpointValidation(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs(), nil)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "method not allowed comes first",
			req:     headerRequest(http.MethodDelete, map[string]string{"URL": "::bad"}),
			status:  http.StatusMethodNotAllowed,
			message: "Method Not Allowed",
		},
		{
			name:    "missing key",
			req:     headerRequest(http.MethodGet, map[string]string{"URL": testPage}),
			status:  http.StatusForbidden,
			message: "Invalid API Key",
		},
		{
			name:    "wrong key checked before URL",
			req:     headerRequest(http.MethodGet, map[string]string{"API-KEY": "nope", "URL": "::bad"}),
			status:  http.StatusForbidden,
			message: "Invalid API Key",
		},
		{
			name:    "missing URL",
			req:     headerRequest(http.MethodGet, map[string]string{"API-KEY": testKey}),
			status:  http.StatusBadRequest,
			message: "Valid URL is required",
		},
		{
			name:    "relative URL",
			req:     headerRequest(http.MethodGet, map[string]string{"API-KEY": testKey, "URL": "/just/a/path"}),
			status:  http.StatusBadRequest,
			message: "Valid URL is required",
		},
		{
			name:    "fetch failure",
			req:     headerRequest(http.MethodGet, map[string]string{"API-KEY": testKey, "URL": "https://down.example/"}),
			status:  http.StatusInternalServerError,
			message: "Failed to fetch URL: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.req)
			assert.Equal(t, tt.status, rec.Code)
			assert.True(t, strings.HasPrefix(errorMessage(t, rec), tt.message), errorMessage(t, rec))
			assert.Empty(t, rec.Header().Get("X-Cache"))
		})
	}
	assert.Equal(t, 0, f.mock.Requests(testPage), "rejected requests never fetch")
}

func TestLinksEndpointHeadersMissThenHit(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs(), nil)
	headers := map[string]string{"API-KEY": testKey, "URL": testPage}

	first := f.do(headerRequest(http.MethodGet, headers))
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", first.Header().Get("Content-Type"))

	want := `{
    "status": "success",
    "count": 2,
    "results": [
        {
            "title": "About us and more",
            "link": "https://example.com/about"
        },
        {
            "title": "Next post",
            "link": "https://example.com/blog/next.html"
        }
    ]
}`
	assert.Equal(t, want, first.Body.String())

	second := f.do(headerRequest(http.MethodGet, headers))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, 1, f.mock.Requests(testPage))

	headers["FORCE"] = "1"
	forced := f.do(headerRequest(http.MethodGet, headers))
	assert.Equal(t, "MISS", forced.Header().Get("X-Cache"))
	assert.Equal(t, 2, f.mock.Requests(testPage))
}

func TestLinksEndpointFormFieldsWinOverHeaders(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs(), nil)

	rec := f.do(formRequest(
		url.Values{"API-KEY": {testKey}, "URL": {testPage}, "XPATH": {"//article"}},
		map[string]string{"API-KEY": "wrong", "URL": "https://ignored.example/"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"count": 1`)

	// An empty form field is still present and shadows the header
	rec = f.do(formRequest(url.Values{"API-KEY": {""}}, map[string]string{"API-KEY": testKey, "URL": testPage}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLinksEndpointMultipartAndJSON(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("API-KEY", testKey)
	mw.WriteField("URL", testPage)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"API-KEY":"`+testKey+`","URL":"`+testPage+`","FORCE":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), "numeric FORCE 1 bypasses the cache")
	assert.Equal(t, 2, f.mock.Requests(testPage))
}

func TestLinksEndpointStorageFailure(t *testing.T) {
	f := newFixture(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)

	rec := f.do(headerRequest(http.MethodGet, map[string]string{"API-KEY": testKey, "URL": testPage}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to save cache", errorMessage(t, rec))
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, afero.NewMemMapFs(), nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(headerRequest(http.MethodGet, map[string]string{"API-KEY": testKey, "URL": testPage}))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_curl_link_cache_requests_total{result="miss"} 1`)
}

func TestMCPMountRequiresKey(t *testing.T) {
	reached := false
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusAccepted)
	})
	f := newFixture(t, afero.NewMemMapFs(), mcpHandler)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, reached)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("API-KEY", testKey)
	rec = f.do(req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, reached)
}
