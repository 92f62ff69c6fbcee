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

package app

import (
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/storage"
)

// EventType represents the type of event
type EventType string

const (
	EventCacheHit       EventType = "cache:hit"
	EventCacheMiss      EventType = "cache:miss"
	EventFetchCompleted EventType = "fetch:completed"
	EventFetchFailed    EventType = "fetch:failed"
	EventLinksExtracted EventType = "links:extracted"
	EventCacheEvicted   EventType = "cache:evicted"
)

// EventEmitter is the interface for emitting pipeline events.
// The metrics collector is the production implementation.
type EventEmitter interface {
	Emit(eventType EventType, data interface{})
}

// NoOpEmitter is a default implementation that does nothing
// Useful for testing or when events aren't needed
type NoOpEmitter struct{}

// Emit does nothing
func (n *NoOpEmitter) Emit(eventType EventType, data interface{}) {}

// CacheEvent is the payload of EventCacheHit and EventCacheMiss
type CacheEvent struct {
	Key   string
	Force bool
}

// FetchEvent is the payload of EventFetchCompleted
type FetchEvent struct {
	URL        string
	StatusCode int
	Bytes      int
	Redirects  int
	Duration   time.Duration
}

// FetchFailedEvent is the payload of EventFetchFailed
type FetchFailedEvent struct {
	URL      string
	Timeout  bool
	Err      error
	Duration time.Duration
}

// ExtractEvent is the payload of EventLinksExtracted
type ExtractEvent struct {
	Key     string
	Links   int
	Outcome curllink.Outcome
}

// EvictEvent is the payload of EventCacheEvicted
type EvictEvent struct {
	Entries []storage.Entry
}
