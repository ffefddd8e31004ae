// Package mcp exposes declaration bundling over the Model Context Protocol
// so coding agents can generate and inspect declaration bundles without
// shelling out.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/dtsbundle/pkg/mcplog"
)

const serverVersion = "0.1.0-dev"

// Server implements the MCP server for dtsbundle, exposing generation and
// inspection tools.
type Server struct {
	mcpServer *server.MCPServer
	cwd       string
	logger    *mcplog.Logger // may be nil if logging is disabled
	slogger   *slog.Logger
}

// NewServer creates a new MCP server rooted at cwd. Pass nil for logger to
// disable JSONL tool-call logging.
func NewServer(cwd string, logger *mcplog.Logger, slogger *slog.Logger) *Server {
	if slogger == nil {
		slogger = slog.Default()
	}
	s := &Server{cwd: cwd, logger: logger, slogger: slogger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if logger != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}

	s.mcpServer = server.NewMCPServer("dtsbundle", serverVersion, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: generateDtsTool(), Handler: s.handleGenerateDts},
		server.ServerTool{Tool: inspectDeclarationTool(), Handler: s.handleInspectDeclaration},
		server.ServerTool{Tool: listEntrypointsTool(), Handler: s.handleListEntrypoints},
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Close shuts down the logger if one is active. Should be deferred after
// NewServer.
func (s *Server) Close() error {
	if s.logger != nil {
		return s.logger.Close()
	}
	return nil
}
