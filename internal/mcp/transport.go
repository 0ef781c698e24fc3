package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves s over Streamable HTTP. Stateless disables session
// management, which suits deployments behind a load balancer.
func NewHTTPHandler(s *Server, stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.MCPServer()
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
