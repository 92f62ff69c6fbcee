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
	"encoding/json"
)

// StatusSuccess is the status field of every successful response.
const StatusSuccess = "success"

// LinkResponse is the success body of the endpoint. Its serialized form is
// also the cached artifact, so a cache hit replays it byte for byte.
type LinkResponse struct {
	Status  string       `json:"status"`
	Count   int          `json:"count"`
	Results []LinkResult `json:"results"`
}

// NewLinkResponse wraps an extracted result set.
func NewLinkResponse(links []LinkResult) *LinkResponse {
	if links == nil {
		links = []LinkResult{}
	}
	return &LinkResponse{
		Status:  StatusSuccess,
		Count:   len(links),
		Results: links,
	}
}

// Marshal renders the response as indented JSON. Non-ASCII text and HTML
// characters are written as is.
func (r *LinkResponse) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
