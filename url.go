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
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

// DefaultScheme is prefixed to protocol-relative references ("//host/path").
const DefaultScheme = "https:"

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)

var (
	// ErrMissingURL is returned by ValidateURL for an empty URL
	ErrMissingURL = errors.New("missing URL")
	// ErrInvalidURL is returned by ValidateURL for anything that is not an
	// absolute http or https URL with a host
	ErrInvalidURL = errors.New("invalid URL")
)

// BaseInfo is the base a page's relative references are resolved against.
type BaseInfo struct {
	// Origin is scheme and host, e.g. "https://example.com:8443"
	Origin string
	// Directory is the parent path of the page, "" for pages in the root
	Directory string
	// Combined is Origin + Directory
	Combined string
}

// ValidateURL checks that raw is an absolute http(s) URL with a host and
// returns its normalized form.
func ValidateURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingURL
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", fmt.Errorf("%w: %q contains whitespace", ErrInvalidURL, raw)
	}
	if !schemePrefix.MatchString(raw) {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, raw)
	}
	u, err := urlParser.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Protocol() {
	case "http:", "https:":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Protocol())
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u.String(), nil
}

// normalizeURL returns the whatwg serialization of u, or u itself when it
// does not parse.
func normalizeURL(u string) string {
	parsed, err := urlParser.Parse(u)
	if err != nil {
		return u
	}
	return parsed.String()
}

// ParseBase splits a page URL into origin and directory.
func ParseBase(pageURL string) (BaseInfo, error) {
	u, err := urlParser.Parse(pageURL)
	if err != nil {
		return BaseInfo{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	origin := u.Protocol() + "//" + u.Host()

	dir := path.Dir(u.Pathname())
	if dir == "/" || dir == "." {
		dir = ""
	}
	return BaseInfo{
		Origin:    origin,
		Directory: dir,
		Combined:  origin + dir,
	}, nil
}

// Resolve turns an href into an absolute URL. Rules are applied in order:
// explicit "scheme://" is kept, "//" gets DefaultScheme, "/" is joined to the
// origin, anything else to the page directory.
func Resolve(candidate string, base BaseInfo) string {
	switch {
	case schemePrefix.MatchString(candidate):
		return candidate
	case strings.HasPrefix(candidate, "//"):
		return DefaultScheme + candidate
	case strings.HasPrefix(candidate, "/"):
		return base.Origin + candidate
	default:
		return base.Combined + "/" + candidate
	}
}
