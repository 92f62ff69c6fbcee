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
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
)

// Parameter names, identical as body fields and as headers
const (
	paramAPIKey = "API-KEY"
	paramURL    = "URL"
	paramXPath  = "XPATH"
	paramForce  = "FORCE"
)

const maxParamBody = 1 << 20

type params struct {
	APIKey string
	URL    string
	XPath  string
	Force  string
}

// readParams collects the request parameters. A body field wins over the
// header of the same name whenever it is present, even when empty. Bodies
// may be urlencoded or multipart forms, or a JSON object.
func readParams(w http.ResponseWriter, r *http.Request) params {
	var body map[string]string
	if r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(w, r.Body, maxParamBody)
		body = bodyFields(r)
	}

	lookup := func(name, fallback string) string {
		if v, ok := body[name]; ok {
			return v
		}
		if vs := r.Header.Values(name); len(vs) > 0 {
			return vs[0]
		}
		return fallback
	}
	return params{
		APIKey: lookup(paramAPIKey, ""),
		URL:    lookup(paramURL, ""),
		XPath:  lookup(paramXPath, ""),
		Force:  lookup(paramForce, "0"),
	}
}

func bodyFields(r *http.Request) map[string]string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return jsonFields(r)
	}

	// ParseMultipartForm falls back to ParseForm for urlencoded bodies
	_ = r.ParseMultipartForm(maxParamBody)
	fields := make(map[string]string)
	for _, name := range []string{paramAPIKey, paramURL, paramXPath, paramForce} {
		if vs, ok := r.PostForm[name]; ok && len(vs) > 0 {
			fields[name] = vs[0]
		}
	}
	return fields
}

func jsonFields(r *http.Request) map[string]string {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil
	}
	fields := make(map[string]string)
	for _, name := range []string{paramAPIKey, paramURL, paramXPath, paramForce} {
		switch v := raw[name].(type) {
		case string:
			fields[name] = v
		case float64:
			fields[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[name] = "0"
			if v {
				fields[name] = "1"
			}
		}
	}
	return fields
}
