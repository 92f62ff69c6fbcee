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
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsTTL = time.Hour

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// robotsCache keeps parsed robots.txt files per origin.
type robotsCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]robotsEntry
}

func newRobotsCache(ttl time.Duration) *robotsCache {
	return &robotsCache{ttl: ttl, entries: make(map[string]robotsEntry)}
}

func (c *robotsCache) get(origin string) (*robotstxt.RobotsData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[origin]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return nil, false
	}
	return e.data, true
}

func (c *robotsCache) put(origin string, data *robotstxt.RobotsData) {
	c.mu.Lock()
	c.entries[origin] = robotsEntry{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()
}

// robotsAllowed reports whether the configured user agent may fetch u.
// An unreachable robots.txt allows everything and is retried next time.
func (f *Fetcher) robotsAllowed(ctx context.Context, u *url.URL) bool {
	origin := u.Scheme + "://" + u.Host
	data, ok := f.robots.get(origin)
	if !ok {
		data = f.fetchRobots(ctx, origin)
		if data == nil {
			return true
		}
		f.robots.put(origin, data)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, f.config.UserAgent)
}

func (f *Fetcher) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := f.newRequest(ctx, origin+"/robots.txt")
	if err != nil {
		return nil
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return nil
	}
	// 4xx allows everything, 5xx disallows everything
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		return nil
	}
	return data
}
