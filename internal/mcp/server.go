// ABOUTME: MCP server initialization and configuration
// ABOUTME: Exposes the live snapshot to AI agents as read-only tools

package mcp

import (
	"context"
	"fmt"

	"github.com/fightbackff-oss/trackmate/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps an MCP server over the reconciliation engine. Tools read
// cloned snapshots; agents never mutate state through this surface.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
}

// NewServer creates an MCP server with all capabilities.
func NewServer(eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "trackmate",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:    mcpServer,
		engine: eng,
	}

	s.registerTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
