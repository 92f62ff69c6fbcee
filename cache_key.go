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
	"fmt"
	"regexp"

	"github.com/cespare/xxhash/v2"
)

// KeyPlaceholder replaces every character that is not safe in a file name.
const KeyPlaceholder = "_"

// MaxKeyLength bounds a cache key so that "<timestamp>-<key>.json" stays
// within common file name limits.
const MaxKeyLength = 200

const (
	scopeSeparator  = "+"
	digestSeparator = "."
	digestLength    = 16
)

var unsafeKeyChars = regexp.MustCompile(`[^\w.\-]`)

// SanitizeKeyPart replaces every character outside [A-Za-z0-9_.-] with
// KeyPlaceholder.
func SanitizeKeyPart(s string) string {
	return unsafeKeyChars.ReplaceAllString(s, KeyPlaceholder)
}

// EncodeKey derives the cache key of a (URL, scope) request.
//
// The key is the sanitized URL, a "+" and the sanitized scope when a scope is
// given, and a "." followed by the xxhash of the raw pair. The digest keeps
// keys distinct when sanitizing maps two inputs to the same text.
func EncodeKey(rawURL, scope string) string {
	target := normalizeURL(rawURL)
	readable := SanitizeKeyPart(target)
	if scope != "" {
		readable += scopeSeparator + SanitizeKeyPart(scope)
	}

	h := xxhash.New()
	h.WriteString(target)
	h.WriteString("\x00")
	h.WriteString(scope)
	digest := fmt.Sprintf("%016x", h.Sum64())

	if limit := MaxKeyLength - len(digestSeparator) - digestLength; len(readable) > limit {
		readable = readable[:limit]
	}
	return readable + digestSeparator + digest
}
