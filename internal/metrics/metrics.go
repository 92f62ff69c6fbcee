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

// Package metrics exposes pipeline and HTTP metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "api_curl_link"

// Collector manages the service's Prometheus metrics. It implements
// app.EventEmitter so pipeline events become counters.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	fetchErrors         *prometheus.CounterVec
	linksExtracted      *prometheus.HistogramVec
	cacheEvictions      prometheus.Counter
}

// NewCollector creates the collectors on a private registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Link requests by cache result",
		},
		[]string{"result"},
	)
	c.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status_class"},
	)
	c.fetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed upstream fetches",
		},
		[]string{"kind"},
	)
	c.linksExtracted = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "links_extracted",
			Help:      "Number of links per extraction",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
		[]string{"outcome"},
	)
	c.cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Index entries removed by retention sweeps",
	})

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.cacheLookups,
		c.fetchDuration,
		c.fetchErrors,
		c.linksExtracted,
		c.cacheEvictions,
	)
	return c
}

// Registry returns the registry holding every collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Emit implements app.EventEmitter
func (c *Collector) Emit(eventType app.EventType, data interface{}) {
	switch eventType {
	case app.EventCacheHit:
		c.cacheLookups.WithLabelValues("hit").Inc()
	case app.EventCacheMiss:
		result := "miss"
		if ev, ok := data.(app.CacheEvent); ok && ev.Force {
			result = "forced"
		}
		c.cacheLookups.WithLabelValues(result).Inc()
	case app.EventFetchCompleted:
		if ev, ok := data.(app.FetchEvent); ok {
			c.fetchDuration.WithLabelValues(statusClass(ev.StatusCode)).Observe(ev.Duration.Seconds())
		}
	case app.EventFetchFailed:
		kind := "transport"
		if ev, ok := data.(app.FetchFailedEvent); ok && ev.Timeout {
			kind = "timeout"
		}
		c.fetchErrors.WithLabelValues(kind).Inc()
	case app.EventLinksExtracted:
		if ev, ok := data.(app.ExtractEvent); ok {
			c.linksExtracted.WithLabelValues(ev.Outcome.String()).Observe(float64(ev.Links))
		}
	case app.EventCacheEvicted:
		if ev, ok := data.(app.EvictEvent); ok {
			c.cacheEvictions.Add(float64(len(ev.Entries)))
		}
	}
}

// Middleware records request counts and durations for next under endpoint.
func (c *Collector) Middleware(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		c.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus metrics HTTP handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
