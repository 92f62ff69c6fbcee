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

package curllink

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// MockResponse represents a mock HTTP response
type MockResponse struct {
	// StatusCode is the HTTP status code to return (default: 200)
	StatusCode int
	// Body is the raw response body, sent without any encoding
	Body []byte
	// Headers are the HTTP headers to include in the response
	Headers http.Header
	// Delay simulates latency. It is cut short when the request context ends.
	Delay time.Duration
	// Error simulates a network error
	Error error
}

type mockPattern struct {
	pattern  *regexp.Regexp
	response *MockResponse
}

// MockTransport implements http.RoundTripper for tests. Responses are
// registered per exact URL or per URL pattern, and every request is counted.
// Unregistered URLs get a 404.
type MockTransport struct {
	mutex     sync.RWMutex
	responses map[string]*MockResponse
	patterns  []mockPattern
	requests  map[string]int
	headers   map[string]http.Header
}

// NewMockTransport creates a new MockTransport instance
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[string]*MockResponse),
		requests:  make(map[string]int),
		headers:   make(map[string]http.Header),
	}
}

// RegisterResponse registers a mock response for an exact URL match
func (m *MockTransport) RegisterResponse(url string, response *MockResponse) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.responses[url] = withDefaults(response)
}

// RegisterHTML registers a 200 text/html response
func (m *MockTransport) RegisterHTML(url, html string) {
	m.RegisterResponse(url, &MockResponse{
		Body:    []byte(html),
		Headers: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
	})
}

// RegisterRedirect registers a redirect from url to location
func (m *MockTransport) RegisterRedirect(url, location string, status int) {
	m.RegisterResponse(url, &MockResponse{
		StatusCode: status,
		Headers:    http.Header{"Location": {location}},
	})
}

// RegisterError registers a mock error for a URL (simulates network failure)
func (m *MockTransport) RegisterError(url string, err error) {
	m.RegisterResponse(url, &MockResponse{Error: err})
}

// RegisterPattern registers a mock response for URLs matching a regex pattern
func (m *MockTransport) RegisterPattern(pattern string, response *MockResponse) error {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.patterns = append(m.patterns, mockPattern{pattern: regex, response: withDefaults(response)})
	return nil
}

// Requests returns how many times url was requested
func (m *MockTransport) Requests(url string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.requests[url]
}

// LastHeaders returns the request headers of the latest request to url
func (m *MockTransport) LastHeaders(url string) http.Header {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.headers[url]
}

// RoundTrip implements the http.RoundTripper interface
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	url := req.URL.String()

	m.mutex.Lock()
	m.requests[url]++
	m.headers[url] = req.Header.Clone()
	mockResp, found := m.responses[url]
	if !found {
		for _, p := range m.patterns {
			if p.pattern.MatchString(url) {
				mockResp, found = p.response, true
				break
			}
		}
	}
	m.mutex.Unlock()

	if !found {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(bytes.NewBufferString("Not Found")),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}

	if mockResp.Delay > 0 {
		select {
		case <-time.After(mockResp.Delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	if mockResp.Error != nil {
		return nil, mockResp.Error
	}

	return &http.Response{
		StatusCode:    mockResp.StatusCode,
		Body:          io.NopCloser(bytes.NewReader(mockResp.Body)),
		Header:        mockResp.Headers.Clone(),
		ContentLength: int64(len(mockResp.Body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}, nil
}

func withDefaults(response *MockResponse) *MockResponse {
	if response.StatusCode == 0 {
		response.StatusCode = http.StatusOK
	}
	if response.Headers == nil {
		response.Headers = make(http.Header)
	}
	return response
}
