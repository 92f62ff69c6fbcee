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
	"errors"
	"fmt"
	"net"
)

var (
	// ErrRobotsTxtBlocked is returned when robots.txt disallows the target
	ErrRobotsTxtBlocked = errors.New("URL blocked by robots.txt")
	// ErrTooManyRedirects is returned when a redirect chain is longer than
	// maxRedirects
	ErrTooManyRedirects = errors.New("stopped after 10 redirects")
	// ErrNoPattern is the error type for LimitRules without patterns
	ErrNoPattern = errors.New("no pattern defined in LimitRule")
)

// FetchError is returned by Fetcher.Fetch when no response body could be
// obtained. Timeout is set when the failure was the fetch deadline.
type FetchError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timed out: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a FetchError caused by the deadline.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Timeout
}

func newFetchError(target string, err error) *FetchError {
	fe := &FetchError{URL: target, Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		fe.Timeout = true
	}
	return fe
}
