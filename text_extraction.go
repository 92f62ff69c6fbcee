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
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// anchorLabel returns the visible text of an anchor with surrounding
// whitespace trimmed and inner runs of whitespace collapsed to one space.
func anchorLabel(s *goquery.Selection) string {
	return normalizeWhitespace(s.Text())
}

// normalizeWhitespace collapses multiple consecutive whitespace characters
// (spaces, tabs, newlines) into a single space.
func normalizeWhitespace(text string) string {
	// Split by any whitespace and rejoin with single spaces
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// scriptPrefixes are pseudo URLs that run or render code instead of
// pointing at a page.
var scriptPrefixes = []string{"javascript:", "vbscript:", "data:text/html"}

// skipHref reports whether an href can never yield a link: empty, a bare
// fragment marker or a script pseudo URL.
func skipHref(href string) bool {
	if href == "" || href == "#" {
		return true
	}
	for _, prefix := range scriptPrefixes {
		if len(href) >= len(prefix) && strings.EqualFold(href[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}
