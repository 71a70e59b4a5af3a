package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/coldstart/internal/app"
)

// ServerName is the name reported to MCP clients
const ServerName = "coldstart"

// Server exposes the coldstart pipeline as MCP tools over stdio
type Server struct {
	mcp *server.MCPServer
	app *app.App
}

// NewServer registers the tools against an assembled App. The App stays
// owned by the caller.
func NewServer(a *app.App) *Server {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, app.Version, server.WithToolCapabilities(false)),
		app: a,
	}
	s.registerTools()
	return s
}

// Serve reads MCP messages from stdin and blocks until the client
// disconnects
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(chunkFileTool(), s.handleChunkFile)
	s.mcp.AddTool(indexPathTool(), s.handleIndexPath)
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
