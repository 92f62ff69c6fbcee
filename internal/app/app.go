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
	"context"
	"errors"
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CacheStatus tells whether a response was replayed from the cache.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// Fetcher retrieves a page. *curllink.Fetcher is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*curllink.FetchResponse, error)
}

// Request asks for the links of one page.
type Request struct {
	URL string
	// Scope is an XPath expression restricting extraction, "" for the whole page
	Scope string
	// Force skips the cache lookup
	Force bool
}

// Result is a serialized success body. On a hit Body is the cached
// artifact unchanged.
type Result struct {
	Body  []byte
	Cache CacheStatus
	Key   string
}

// Deps are the collaborators of an App.
type Deps struct {
	Fetcher   Fetcher
	Index     storage.Index
	Artifacts *storage.Artifacts
	Logger    *logrus.Entry
	Emitter   EventEmitter
	// Now stamps new entries, time.Now when nil
	Now func() time.Time
}

// App represents the core application logic
type App struct {
	fetcher   Fetcher
	index     storage.Index
	artifacts *storage.Artifacts
	logger    *logrus.Entry
	emitter   EventEmitter
	now       func() time.Time
	inflight  singleflight.Group
}

// NewApp creates a new App instance with dependencies injected
func NewApp(deps Deps) *App {
	if deps.Emitter == nil {
		deps.Emitter = &NoOpEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		fetcher:   deps.Fetcher,
		index:     deps.Index,
		artifacts: deps.Artifacts,
		logger:    deps.Logger,
		emitter:   deps.Emitter,
		now:       deps.Now,
	}
}

// Links returns the serialized link list of req.URL, from the cache when a
// fresh entry exists and req.Force is false.
//
// Errors are *ValidationError for a bad URL, *curllink.FetchError when
// the page could not be retrieved, and *StorageError when the result could
// not be persisted.
func (a *App) Links(ctx context.Context, req Request) (*Result, error) {
	target, err := curllink.ValidateURL(req.URL)
	if err != nil {
		return nil, ErrInvalidURL
	}
	key := curllink.EncodeKey(target, req.Scope)
	log := a.logger.WithFields(logrus.Fields{
		"key":   key,
		"url":   target,
		"xpath": req.Scope,
		"force": req.Force,
	})

	if !req.Force {
		if body, ok := a.cached(key, log); ok {
			a.emitter.Emit(EventCacheHit, CacheEvent{Key: key})
			log.WithField("cache", CacheHit).Info("Serving cached links")
			return &Result{Body: body, Cache: CacheHit, Key: key}, nil
		}
	}
	a.emitter.Emit(EventCacheMiss, CacheEvent{Key: key, Force: req.Force})

	// Concurrent misses for one key share a single fetch. The shared fetch
	// must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, joined := a.inflight.Do(key, func() (interface{}, error) {
		return a.refresh(shared, target, req.Scope, key, log)
	})
	if err != nil {
		return nil, err
	}
	if joined {
		log.Debug("Joined an in-flight fetch")
	}
	return &Result{Body: v.([]byte), Cache: CacheMiss, Key: key}, nil
}

// cached returns the artifact of a fresh entry. Index and artifact read
// failures are treated as a miss.
func (a *App) cached(key string, log *logrus.Entry) ([]byte, bool) {
	path, ok, err := a.index.Lookup(key)
	if err != nil {
		log.WithError(err).Warn("Cache lookup failed, fetching instead")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	body, err := a.artifacts.Load(path)
	if err != nil {
		log.WithError(err).WithField("artifact", path).Warn("Cached artifact unreadable, fetching instead")
		return nil, false
	}
	return body, true
}

func (a *App) refresh(ctx context.Context, target, scope, key string, log *logrus.Entry) ([]byte, error) {
	start := time.Now()
	resp, err := a.fetcher.Fetch(ctx, target)
	if err != nil {
		var fe *curllink.FetchError
		if !errors.As(err, &fe) {
			fe = &curllink.FetchError{URL: target, Err: err}
		}
		a.emitter.Emit(EventFetchFailed, FetchFailedEvent{
			URL: target, Timeout: fe.Timeout, Err: fe.Err, Duration: time.Since(start),
		})
		log.WithError(fe.Err).WithField("timeout", fe.Timeout).Error("Fetch failed")
		return nil, fe
	}

	fetchLog := log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(resp.Body),
		"duration": time.Since(start).String(),
	})
	if len(resp.RedirectChain) > 0 {
		fetchLog = fetchLog.WithField("final_url", resp.FinalURL)
	}
	if resp.Trace != nil {
		fetchLog = fetchLog.WithFields(logrus.Fields{
			"dns":        resp.Trace.DNSDuration.String(),
			"connect":    resp.Trace.ConnectDuration.String(),
			"first_byte": resp.Trace.FirstByteDuration.String(),
		})
	}
	fetchLog.Debug("Fetched page")
	a.emitter.Emit(EventFetchCompleted, FetchEvent{
		URL:        target,
		StatusCode: resp.StatusCode,
		Bytes:      len(resp.Body),
		Redirects:  len(resp.RedirectChain),
		Duration:   time.Since(start),
	})

	// The validated target always parses
	base, _ := curllink.ParseBase(target)
	ex := curllink.Extract(resp.Body, base, scope)
	a.emitter.Emit(EventLinksExtracted, ExtractEvent{Key: key, Links: len(ex.Links), Outcome: ex.Outcome})
	log.WithFields(logrus.Fields{
		"links":       len(ex.Links),
		"outcome":     ex.Outcome.String(),
		"encoding":    ex.Encoding,
		"diagnostics": ex.Diagnostics,
	}).Debug("Extracted links")

	body, err := curllink.NewLinkResponse(ex.Links).Marshal()
	if err != nil {
		return nil, &StorageError{Op: "encode response", Err: err}
	}

	createdAt := a.now()
	path, err := a.artifacts.Save(key, createdAt, body)
	if err != nil {
		log.WithError(err).Error("Failed to save artifact")
		return nil, &StorageError{Op: "save artifact", Err: err}
	}

	evicted, err := a.index.Insert(key, path, createdAt)
	if err != nil {
		log.WithError(err).WithField("artifact", path).Warn("Failed to update cache index")
	}
	if len(evicted) > 0 {
		a.emitter.Emit(EventCacheEvicted, EvictEvent{Entries: evicted})
		log.WithField("evicted", len(evicted)).Debug("Swept cache entries")
	}

	log.WithFields(logrus.Fields{
		"cache":    CacheMiss,
		"links":    len(ex.Links),
		"artifact": path,
	}).Info("Served fresh links")
	return body, nil
}
