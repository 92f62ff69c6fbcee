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

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/daishir0/api-curl-link/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitUpdatesCounters(t *testing.T) {
	c := NewCollector()

	c.Emit(app.EventCacheHit, app.CacheEvent{Key: "k"})
	c.Emit(app.EventCacheMiss, app.CacheEvent{Key: "k"})
	c.Emit(app.EventCacheMiss, app.CacheEvent{Key: "k", Force: true})
	c.Emit(app.EventFetchFailed, app.FetchFailedEvent{Timeout: true, Err: errors.New("deadline")})
	c.Emit(app.EventFetchFailed, app.FetchFailedEvent{Err: errors.New("refused")})
	c.Emit(app.EventFetchCompleted, app.FetchEvent{StatusCode: 404, Duration: time.Second})
	c.Emit(app.EventLinksExtracted, app.ExtractEvent{Links: 3, Outcome: curllink.OutcomeExtracted})
	c.Emit(app.EventCacheEvicted, app.EvictEvent{Entries: make([]storage.Entry, 2)})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("forced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchErrors.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchErrors.WithLabelValues("transport")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheEvictions))
	assert.Equal(t, 1, testutil.CollectAndCount(c.fetchDuration))
}

func TestMiddlewareAndHandler(t *testing.T) {
	c := NewCollector()
	h := c.Middleware("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/", "403")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `api_curl_link_http_requests_total{endpoint="/",method="POST",status="403"} 1`))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "other", statusClass(0))
}
