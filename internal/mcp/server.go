package mcp

import (
	"net/http"

	"github.com/daishir0/api-curl-link/internal/app"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

const (
	ServerName    = "api-curl-link"
	ServerVersion = "1.0.0"
)

// MCPServer exposes link extraction to MCP clients
type MCPServer struct {
	server *mcp.Server
	app    *app.App
	logger *logrus.Entry
}

// NewMCPServer creates a new MCP server instance on top of an existing app
func NewMCPServer(a *app.App, logger *logrus.Entry) *MCPServer {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s := &MCPServer{
		server: mcpServer,
		app:    a,
		logger: logger.WithField("component", "mcp"),
	}
	s.registerTools()

	s.logger.Info("MCP server initialized")
	return s
}

// GetServer returns the internal MCP server instance
func (s *MCPServer) GetServer() *mcp.Server {
	return s.server
}

// Handler returns the streamable HTTP transport, ready to mount on a mux
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(req *http.Request) *mcp.Server {
			return s.server
		},
		nil,
	)
}
