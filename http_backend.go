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
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"
)

const (
	maxRedirects = 10
	// DefaultUserAgent identifies the service to origin servers
	DefaultUserAgent = "Mozilla/5.0 (compatible; api-curl-link/1.0)"
	acceptEncoding   = "gzip, deflate, br"
)

// FetchConfig controls how a Fetcher retrieves pages.
type FetchConfig struct {
	// Timeout bounds a whole fetch, redirects and rate limit waits included.
	// Zero means no deadline beyond the caller's context.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool
	// UserAgent is sent on every request and used for robots.txt matching
	UserAgent string
	// Headers are added to every request
	Headers http.Header
	// MaxBodySize caps the decoded body in bytes, 0 means unlimited
	MaxBodySize int
	// RespectRobotsTxt makes Fetch refuse URLs disallowed by robots.txt
	RespectRobotsTxt bool
	// TraceHTTP records connection timings in FetchResponse.Trace
	TraceHTTP bool
}

// RedirectResponse is one intermediate hop of a redirect chain.
type RedirectResponse struct {
	URL        string
	StatusCode int
	Location   string
}

// FetchResponse is the final, non-redirect response of a fetch. Any status
// code is returned as is; only transport failures are errors.
type FetchResponse struct {
	StatusCode    int
	Body          []byte
	Headers       http.Header
	FinalURL      string
	RedirectChain []*RedirectResponse
	Trace         *FetchTrace
}

// Fetcher retrieves page bodies over HTTP(S).
type Fetcher struct {
	config FetchConfig
	client *http.Client
	limits []*LimitRule
	lock   sync.RWMutex
	robots *robotsCache
}

// NewFetcher creates a Fetcher using its own transport.
func NewFetcher(cfg FetchConfig) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return &Fetcher{
		config: cfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		robots: newRobotsCache(robotsTTL),
	}
}

// WithTransport replaces the RoundTripper used for every request.
func (f *Fetcher) WithTransport(transport http.RoundTripper) {
	f.client.Transport = transport
}

// Fetch retrieves target, following up to 10 redirects.
// Errors are always *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*FetchResponse, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if f.config.RespectRobotsTxt && !f.robotsAllowed(ctx, u) {
		return nil, &FetchError{URL: target, Err: ErrRobotsTxtBlocked}
	}

	req, err := f.newRequest(ctx, u.String())
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, newFetchError(target, err)
	}
	return resp, nil
}

func (f *Fetcher) newRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range f.config.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	return req, nil
}

func (f *Fetcher) do(ctx context.Context, req *http.Request) (*FetchResponse, error) {
	var redirectChain []*RedirectResponse
	current := req

	for redirects := 0; ; redirects++ {
		if err := f.wait(ctx, current.URL.Hostname()); err != nil {
			return nil, err
		}
		var trace *FetchTrace
		if f.config.TraceHTTP {
			trace = &FetchTrace{}
			current = trace.WithTrace(current)
		}

		res, err := f.client.Do(current)
		if err != nil {
			return nil, err
		}

		location := res.Header.Get("Location")
		if res.StatusCode >= 300 && res.StatusCode < 400 && location != "" {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
			res.Body.Close()
			if redirects >= maxRedirects {
				return nil, ErrTooManyRedirects
			}

			next, err := current.URL.Parse(location)
			if err != nil {
				return nil, err
			}
			redirectChain = append(redirectChain, &RedirectResponse{
				URL:        current.URL.String(),
				StatusCode: res.StatusCode,
				Location:   next.String(),
			})

			nextReq, err := http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
			if err != nil {
				return nil, err
			}
			nextReq.Header = current.Header.Clone()
			// Drop credentials when the host changes
			if next.Host != current.URL.Host {
				nextReq.Header.Del("Authorization")
				nextReq.Header.Del("Cookie")
			}
			current = nextReq
			continue
		}

		body, err := f.readBody(res)
		res.Body.Close()
		if err != nil {
			return nil, err
		}
		return &FetchResponse{
			StatusCode:    res.StatusCode,
			Body:          body,
			Headers:       res.Header,
			FinalURL:      current.URL.String(),
			RedirectChain: redirectChain,
			Trace:         trace,
		}, nil
	}
}

func (f *Fetcher) readBody(res *http.Response) ([]byte, error) {
	var reader io.Reader = res.Body
	if !res.Uncompressed {
		switch strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding"))) {
		case "gzip", "x-gzip":
			zr, err := gzip.NewReader(res.Body)
			if err == io.EOF {
				return []byte{}, nil
			}
			if err != nil {
				return nil, err
			}
			defer zr.Close()
			reader = zr
		case "deflate":
			zr, err := newDeflateReader(res.Body)
			if err != nil {
				return nil, err
			}
			defer zr.Close()
			reader = zr
		case "br":
			reader = brotli.NewReader(res.Body)
		}
	}
	if f.config.MaxBodySize > 0 {
		reader = io.LimitReader(reader, int64(f.config.MaxBodySize))
	}
	return io.ReadAll(reader)
}

// newDeflateReader accepts both zlib-wrapped and raw deflate streams, since
// servers disagree on what "deflate" means.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func (f *Fetcher) wait(ctx context.Context, host string) error {
	if r := f.matchingRule(host); r != nil {
		return r.Wait(ctx, host)
	}
	return nil
}

func (f *Fetcher) matchingRule(host string) *LimitRule {
	f.lock.RLock()
	defer f.lock.RUnlock()
	for _, r := range f.limits {
		if r.Match(host) {
			return r
		}
	}
	return nil
}

// Limit adds a rate limit rule. The first matching rule applies.
func (f *Fetcher) Limit(rule *LimitRule) error {
	if err := rule.Init(); err != nil {
		return err
	}
	f.lock.Lock()
	f.limits = append(f.limits, rule)
	f.lock.Unlock()
	return nil
}

// Limits adds multiple rate limit rules.
func (f *Fetcher) Limits(rules []*LimitRule) error {
	for _, r := range rules {
		if err := f.Limit(r); err != nil {
			return err
		}
	}
	return nil
}

// LimitRule restricts the request rate to matching hosts.
// Both DomainRegexp and DomainGlob can be used to specify
// the included host patterns, but at least one is required.
// Each matching host gets its own token bucket.
type LimitRule struct {
	// DomainRegexp is a regular expression to match against hosts
	DomainRegexp string
	// DomainGlob is a glob pattern to match against hosts
	DomainGlob string
	// RequestsPerSecond is the sustained rate, <= 0 means unlimited
	RequestsPerSecond float64
	// Burst is the number of requests allowed at once, at least 1
	Burst int

	compiledRegexp *regexp.Regexp
	compiledGlob   glob.Glob
	mu             sync.Mutex
	limiters       map[string]*rate.Limiter
}

// Init initializes the private members of LimitRule
func (r *LimitRule) Init() error {
	hasPattern := false
	if r.DomainRegexp != "" {
		c, err := regexp.Compile(r.DomainRegexp)
		if err != nil {
			return err
		}
		r.compiledRegexp = c
		hasPattern = true
	}
	if r.DomainGlob != "" {
		c, err := glob.Compile(r.DomainGlob)
		if err != nil {
			return err
		}
		r.compiledGlob = c
		hasPattern = true
	}
	if !hasPattern {
		return ErrNoPattern
	}
	r.limiters = make(map[string]*rate.Limiter)
	return nil
}

// Match checks that the host parameter triggers the rule
func (r *LimitRule) Match(host string) bool {
	if r.compiledRegexp != nil && r.compiledRegexp.MatchString(host) {
		return true
	}
	return r.compiledGlob != nil && r.compiledGlob.Match(host)
}

// Wait blocks until host may be requested again. A wait that cannot finish
// before the context deadline fails with context.DeadlineExceeded.
func (r *LimitRule) Wait(ctx context.Context, host string) error {
	err := r.limiter(host).Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func (r *LimitRule) limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limiters == nil {
		r.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := r.limiters[host]
	if !ok {
		limit := rate.Inf
		if r.RequestsPerSecond > 0 {
			limit = rate.Limit(r.RequestsPerSecond)
		}
		l = rate.NewLimiter(limit, max(r.Burst, 1))
		r.limiters[host] = l
	}
	return l
}

// ParseLimitRules parses a comma separated list of "glob=rps[:burst]"
// entries, e.g. "*.example.com=2:5,*=10".
func ParseLimitRules(s string) ([]*LimitRule, error) {
	var rules []*LimitRule
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pattern, limit, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("limit rule %q: expected glob=rps[:burst]", entry)
		}
		rps, burst, hasBurst := strings.Cut(limit, ":")
		rule := &LimitRule{DomainGlob: strings.TrimSpace(pattern), Burst: 1}
		var err error
		if rule.RequestsPerSecond, err = strconv.ParseFloat(strings.TrimSpace(rps), 64); err != nil {
			return nil, fmt.Errorf("limit rule %q: bad rate: %w", entry, err)
		}
		if hasBurst {
			if rule.Burst, err = strconv.Atoi(strings.TrimSpace(burst)); err != nil {
				return nil, fmt.Errorf("limit rule %q: bad burst: %w", entry, err)
			}
		}
		if err := rule.Init(); err != nil {
			return nil, fmt.Errorf("limit rule %q: %w", entry, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
