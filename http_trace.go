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
	"net/http"
	"net/http/httptrace"
	"time"
)

// FetchTrace holds the connection timings of the last hop of a fetch.
type FetchTrace struct {
	start, dns, connect time.Time
	DNSDuration         time.Duration
	ConnectDuration     time.Duration
	FirstByteDuration   time.Duration
	// Reused is set when the connection came from the idle pool
	Reused bool
}

// trace returns a httptrace.ClientTrace object to be used with an http
// request via httptrace.WithClientTrace() that fills in the FetchTrace.
func (ft *FetchTrace) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(hostPort string) { ft.start = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) { ft.Reused = info.Reused },

		DNSStart: func(httptrace.DNSStartInfo) { ft.dns = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			ft.DNSDuration = time.Since(ft.dns)
		},

		ConnectStart: func(network, addr string) { ft.connect = time.Now() },
		ConnectDone: func(network, addr string, err error) {
			ft.ConnectDuration = time.Since(ft.connect)
		},

		GotFirstResponseByte: func() {
			ft.FirstByteDuration = time.Since(ft.start)
		},
	}
}

// WithTrace returns the given HTTP Request with this FetchTrace added to its
// context.
func (ft *FetchTrace) WithTrace(req *http.Request) *http.Request {
	return req.WithContext(httptrace.WithClientTrace(req.Context(), ft.trace()))
}
