package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/dtsbundle/pkg/mcplog"
)

// loggingMiddleware returns a ToolHandlerMiddleware that records every tool
// call in bundling terms: the entrypoints and options the caller passed,
// and the files/chunks/diagnostics the call produced. If the logger is nil
// this method must not be called (guarded by the NewServer caller).
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := mcplog.Now()
			result, err := next(ctx, req)

			entries, options := mcplog.BundleContext(req.GetArguments())
			stats := mcplog.StatsFor(result)
			var errStr *string
			if err != nil {
				msg := err.Error()
				errStr = &msg
			}

			_ = s.logger.Write(mcplog.LogEntry{
				Ts:            start.UTC().Format(time.RFC3339),
				Tool:          req.Params.Name,
				Entries:       entries,
				Options:       options,
				Files:         stats.Files,
				Chunks:        stats.Chunks,
				Diagnostics:   stats.Diagnostics,
				DurationMs:    time.Since(start).Milliseconds(),
				ResponseBytes: stats.Bytes,
				Error:         errStr,
			})

			return result, err
		}
	}
}
