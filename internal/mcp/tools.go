package mcp

import (
	"context"
	"encoding/json"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	s.registerExtractLinksTool()
}

// ExtractLinksArgs defines the input schema for extract_links tool
type ExtractLinksArgs struct {
	URL   string `json:"url" jsonschema:"absolute http or https URL of the page"`
	XPath string `json:"xpath,omitempty" jsonschema:"XPath expression restricting extraction to matching elements"`
	Force bool   `json:"force,omitempty" jsonschema:"bypass the cache and fetch the page again"`
}

// ExtractLinksResult defines the output schema for extract_links tool
type ExtractLinksResult struct {
	Status  string                `json:"status"`
	Count   int                   `json:"count"`
	Results []curllink.LinkResult `json:"results"`
	Cache   string                `json:"cache,omitempty"`
	Error   string                `json:"error,omitempty"`
}

func (s *MCPServer) registerExtractLinksTool() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_links",
		Description: "Fetches a web page and returns its hyperlinks as title/link pairs, optionally restricted to an XPath scope",
	}, s.extractLinks)
}

func (s *MCPServer) extractLinks(ctx context.Context, req *mcp.CallToolRequest, args ExtractLinksArgs) (*mcp.CallToolResult, ExtractLinksResult, error) {
	s.logger.WithField("url", args.URL).Debug("Tool called: extract_links")

	res, err := s.app.Links(ctx, app.Request{URL: args.URL, Scope: args.XPath, Force: args.Force})
	if err != nil {
		return nil, ExtractLinksResult{Status: "error", Results: []curllink.LinkResult{}, Error: toolError(err)}, nil
	}

	// Hits replay the stored body, so both paths decode the same bytes
	var resp curllink.LinkResponse
	if err := json.Unmarshal(res.Body, &resp); err != nil {
		return nil, ExtractLinksResult{Status: "error", Results: []curllink.LinkResult{}, Error: "corrupt cached response"}, nil
	}
	return nil, ExtractLinksResult{
		Status:  resp.Status,
		Count:   resp.Count,
		Results: resp.Results,
		Cache:   string(res.Cache),
	}, nil
}

func toolError(err error) string {
	_, message, _ := app.Describe(err)
	return message
}
