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
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// CanonicalEncoding is the encoding every page is transcoded to before parsing.
const CanonicalEncoding = "UTF-8"

// legacyEncodings are the non-UTF-8 candidates, keyed by the lowercased name
// chardet reports. ASCII is covered by the UTF-8 check.
var legacyEncodings = map[string]string{
	"iso-2022-jp": "ISO-2022-JP",
	"euc-jp":      "EUC-JP",
	"shift_jis":   "Shift_JIS",
}

var (
	metaCharsetPattern = regexp.MustCompile(`(?i)<meta[^>]+charset=`)
	utf8MetaTag        = []byte(`<meta http-equiv="Content-Type" content="text/html; charset=UTF-8">`)
)

// detectEncoding picks the source encoding of body: UTF-8 when the bytes are
// valid UTF-8 and carry no ISO-2022 escapes, otherwise the best ranked
// Japanese candidate, otherwise the best ranked candidate with a known
// decoder. It returns "" when nothing matches.
func detectEncoding(body []byte) string {
	if bytes.IndexByte(body, 0x1b) < 0 && utf8.Valid(body) {
		return CanonicalEncoding
	}
	results, err := chardet.NewHtmlDetector().DetectAll(body)
	if err == nil {
		for _, r := range results {
			if name, ok := legacyEncodings[strings.ToLower(r.Charset)]; ok {
				return name
			}
		}
		// No Japanese candidate: take the best ranked one we can decode
		for _, r := range results {
			if strings.EqualFold(r.Charset, CanonicalEncoding) {
				continue
			}
			if enc, name := charset.Lookup(r.Charset); enc != nil {
				return name
			}
		}
	}
	if utf8.Valid(body) {
		return CanonicalEncoding
	}
	return ""
}

// toUTF8 transcodes body to UTF-8 and makes sure it declares that encoding.
// The detected source encoding is returned with any diagnostics.
func toUTF8(body []byte) ([]byte, string, []string) {
	var diagnostics []string

	source := detectEncoding(body)
	switch source {
	case CanonicalEncoding:
	case "":
		diagnostics = append(diagnostics, "source encoding not detected; invalid UTF-8 sequences replaced")
		body = []byte(strings.ToValidUTF8(string(body), "\uFFFD"))
	default:
		enc, _ := charset.Lookup(source)
		decoded, err := enc.NewDecoder().Bytes(body)
		if err != nil {
			diagnostics = append(diagnostics, "decoding "+source+" failed: "+err.Error())
			body = []byte(strings.ToValidUTF8(string(body), "\uFFFD"))
		} else {
			diagnostics = append(diagnostics, "transcoded from "+source)
			body = decoded
		}
	}

	if !metaCharsetPattern.Match(body) {
		diagnostics = append(diagnostics, "charset declaration injected")
		out := make([]byte, 0, len(utf8MetaTag)+len(body))
		out = append(out, utf8MetaTag...)
		body = append(out, body...)
	}
	return body, source, diagnostics
}
