package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/dtsbundle/pkg/declgen"
	"github.com/gnana997/dtsbundle/pkg/generator"
	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/resolver"
)

// argString reads a string argument with a default.
func argString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// argBool reads a boolean argument defaulting to false.
func argBool(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// generatedFile is the JSON shape of one output in tool results.
type generatedFile struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
	Text string `json:"text"`
}

// handleGenerateDts runs a full bundle and returns the generated files and
// diagnostics as JSON.
func (s *Server) handleGenerateDts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	entriesArg := argString(args, "entries", "")
	if entriesArg == "" {
		return mcp.NewToolResultError("entries is required"), nil
	}
	var entries []string
	for _, entry := range strings.Split(entriesArg, ",") {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}

	opts := generator.Options{
		Cwd:        argString(args, "cwd", s.cwd),
		Resolve:    resolver.Policy{All: argBool(args, "resolve")},
		InferTypes: argBool(args, "infer_types"),
		Splitting:  argBool(args, "splitting"),
		Minify:     argBool(args, "minify"),
		Logger:     s.slogger,
	}

	result, err := generator.GenerateDts(ctx, entries, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := struct {
		Files  []generatedFile `json:"files"`
		Errors []string        `json:"errors"`
	}{Errors: []string{}}
	for _, file := range result.Files {
		payload.Files = append(payload.Files, generatedFile{
			Kind: string(file.Kind),
			Path: file.Path,
			Text: file.Text,
		})
	}
	for _, diag := range result.Errors {
		payload.Errors = append(payload.Errors, diag.String())
	}
	return jsonResult(payload)
}

// handleInspectDeclaration emits the isolated declaration of one file.
func (s *Server) handleInspectDeclaration(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	file := argString(args, "file", "")
	if file == "" {
		return mcp.NewToolResultError("file is required"), nil
	}
	cwd := argString(args, "cwd", s.cwd)
	if !filepath.IsAbs(file) {
		file = filepath.Join(cwd, file)
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read file: %v", err)), nil
	}

	parsers := parser.NewManager(s.slogger)
	defer parsers.Close()
	emitted, err := declgen.NewEmitter(parsers, s.slogger).Emit(file, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := struct {
		Declaration string   `json:"declaration"`
		Diagnostics []string `json:"diagnostics"`
	}{Declaration: emitted.Code, Diagnostics: []string{}}
	for _, diag := range emitted.Diagnostics {
		payload.Diagnostics = append(payload.Diagnostics, diag.String())
	}
	return jsonResult(payload)
}

// handleListEntrypoints globs for TypeScript sources.
func (s *Server) handleListEntrypoints(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	pattern := argString(args, "pattern", "")
	if pattern == "" {
		return mcp.NewToolResultError("pattern is required"), nil
	}
	cwd := argString(args, "cwd", s.cwd)
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(cwd, pattern)
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}

	var files []string
	for _, match := range matches {
		if parser.IsSourceFile(match) {
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return jsonResult(struct {
		Files []string `json:"files"`
	}{Files: files})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
