// Package mcplog records one structured JSONL line per MCP tool call, in
// terms of what dtsbundle actually did: which entrypoints were bundled,
// which bundling options were active, and how many declaration files,
// chunks and diagnostics came back.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// LogEntry is the schema for one JSONL line written per MCP tool call.
type LogEntry struct {
	Ts   string `json:"ts"`
	Tool string `json:"tool"`

	// Entries are the entry files or patterns of a generate_dts call, or
	// the inspected file / glob pattern of the other tools.
	Entries []string `json:"entries,omitempty"`

	// Options are the bundling options the caller set (resolve, splitting,
	// minify, infer_types, cwd).
	Options map[string]any `json:"options,omitempty"`

	// Files, Chunks and Diagnostics summarise the tool result: declaration
	// files produced, how many of them were shared chunks, and how many
	// diagnostics came back.
	Files       int `json:"files"`
	Chunks      int `json:"chunks"`
	Diagnostics int `json:"diagnostics"`

	DurationMs    int64   `json:"duration_ms"`
	ResponseBytes int     `json:"response_bytes"`
	Error         *string `json:"error"`
}

// Logger appends structured JSONL entries to a file.
// It is safe for concurrent use.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// DefaultLogPath returns the conventional tool-call log location for a
// project: <cwd>/.dtsbundle/mcp.jsonl.
func DefaultLogPath(cwd string) string {
	return filepath.Join(cwd, ".dtsbundle", "mcp.jsonl")
}

// NewLogger opens (or creates) the file at path for append-only writing.
// Parent directories are created automatically.
// Returns nil, nil if path is empty; callers treat a nil Logger as disabled.
func NewLogger(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends a single JSONL entry. Errors are returned but are typically
// ignored by the caller so that log failures never affect tool call results.
func (l *Logger) Write(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// optionKeys are the tool arguments worth logging as bundling options.
// Everything else (free-form text, large payloads) stays out of the log.
var optionKeys = []string{"cwd", "resolve", "infer_types", "splitting", "minify"}

// BundleContext extracts the entry list and the recognised bundling
// options from a tool call's arguments.
//
// The entries argument of generate_dts is comma-separated; the file and
// pattern arguments of the inspection tools count as single entries. String
// option values are truncated so a pathological cwd never bloats the log.
func BundleContext(args map[string]any) (entries []string, options map[string]any) {
	const maxStringValue = 128

	for _, key := range []string{"entries", "file", "pattern"} {
		raw, ok := args[key].(string)
		if !ok || raw == "" {
			continue
		}
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				entries = append(entries, trimmed)
			}
		}
	}

	for _, key := range optionKeys {
		value, ok := args[key]
		if !ok {
			continue
		}
		if s, isString := value.(string); isString {
			if s == "" {
				continue
			}
			if len(s) > maxStringValue {
				s = s[:maxStringValue]
			}
			value = s
		}
		if options == nil {
			options = make(map[string]any)
		}
		options[key] = value
	}
	return entries, options
}

// ResultStats summarises one tool result for the log entry.
type ResultStats struct {
	// Bytes is the serialized length of the result content.
	Bytes int

	// Files, Chunks and Diagnostics are parsed out of the result payload:
	// generate_dts reports files (with kinds) and errors,
	// inspect_declaration reports a declaration and diagnostics.
	Files       int
	Chunks      int
	Diagnostics int
}

// StatsFor inspects a CallToolResult's text payload. A nil result or a
// payload that is not dtsbundle's JSON shape yields byte size only.
func StatsFor(result *mcp.CallToolResult) ResultStats {
	if result == nil {
		return ResultStats{}
	}
	stats := ResultStats{}
	if b, err := json.Marshal(result.Content); err == nil {
		stats.Bytes = len(b)
	}

	var payload struct {
		Files []struct {
			Kind string `json:"kind"`
		} `json:"files"`
		Errors      []string `json:"errors"`
		Diagnostics []string `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &payload); err != nil {
		return stats
	}
	stats.Files = len(payload.Files)
	for _, file := range payload.Files {
		if file.Kind == "chunk" {
			stats.Chunks++
		}
	}
	stats.Diagnostics = len(payload.Errors) + len(payload.Diagnostics)
	return stats
}

// resultText concatenates the text content blocks of a result.
func resultText(result *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, content := range result.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			sb.WriteString(tc.Text)
		case *mcp.TextContent:
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// Now is a replaceable clock for testing.
var Now = func() time.Time { return time.Now() }
