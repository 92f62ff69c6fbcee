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
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// LinkResult is one hyperlink found on a page.
type LinkResult struct {
	// Label is the anchor text, trimmed and whitespace-collapsed
	Label string `json:"title"`
	// Target is the absolute URL the anchor points to
	Target string `json:"link"`
}

// Outcome tells how an extraction ended. None of the outcomes is an error.
type Outcome int

const (
	// OutcomeExtracted means anchors were searched in the document or scope
	OutcomeExtracted Outcome = iota
	// OutcomeScopeUnmatched means the scope expression selected no node
	OutcomeScopeUnmatched
	// OutcomeScopeInvalid means the scope expression could not be evaluated
	OutcomeScopeInvalid
	// OutcomeUnparsed means no document tree could be built
	OutcomeUnparsed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeScopeUnmatched:
		return "scope_unmatched"
	case OutcomeScopeInvalid:
		return "scope_invalid"
	case OutcomeUnparsed:
		return "unparsed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Extraction is the result of Extract. Links is never nil.
type Extraction struct {
	Links   []LinkResult
	Outcome Outcome
	// Encoding is the detected source encoding, "" when unknown
	Encoding string
	// Diagnostics are informational notes about recovery steps taken
	Diagnostics []string
}

// Extract returns the links of markup, resolved against base. When scope is
// not empty only anchors below the first node it selects are considered.
//
// Links are deduplicated by target (first anchor wins) and ordered by
// descending label length, keeping document order among equal lengths.
func Extract(markup []byte, base BaseInfo, scope string) Extraction {
	body, encoding, diagnostics := toUTF8(markup)
	ex := Extraction{
		Links:       []LinkResult{},
		Encoding:    encoding,
		Diagnostics: diagnostics,
	}

	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil || doc == nil {
		ex.Outcome = OutcomeUnparsed
		if err != nil {
			ex.Diagnostics = append(ex.Diagnostics, "parse failed: "+err.Error())
		}
		return ex
	}

	root := doc
	if scope != "" {
		node, err := selectScope(doc, scope)
		if err != nil {
			ex.Outcome = OutcomeScopeInvalid
			ex.Diagnostics = append(ex.Diagnostics, err.Error())
			return ex
		}
		if node == nil {
			ex.Outcome = OutcomeScopeUnmatched
			return ex
		}
		root = node
	}

	ex.Links = collectLinks(root, base)
	ex.Outcome = OutcomeExtracted
	return ex
}

// selectScope returns the first node matched by expr, or nil.
func selectScope(doc *html.Node, expr string) (node *html.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			node, err = nil, fmt.Errorf("scope %q: %v", expr, r)
		}
	}()
	node, err = htmlquery.Query(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("scope %q: %w", expr, err)
	}
	return node, nil
}

func collectLinks(root *html.Node, base BaseInfo) []LinkResult {
	links := []LinkResult{}
	seen := make(map[string]struct{})

	goquery.NewDocumentFromNode(root).Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}
		target := Resolve(href, base)

		label := anchorLabel(s)
		if label == "" {
			return
		}
		if _, dup := seen[target]; dup {
			return
		}
		seen[target] = struct{}{}
		links = append(links, LinkResult{Label: label, Target: target})
	})

	slices.SortStableFunc(links, func(a, b LinkResult) int {
		return utf8.RuneCountInString(b.Label) - utf8.RuneCountInString(a.Label)
	})
	return links
}
