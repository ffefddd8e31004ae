package mcp

import "github.com/mark3labs/mcp-go/mcp"

// generateDtsTool declares the generate_dts tool schema.
func generateDtsTool() mcp.Tool {
	return mcp.NewTool("generate_dts",
		mcp.WithDescription("Bundle the type declarations of one or more TypeScript entrypoints into a single .d.ts per entry"),
		mcp.WithString("entries",
			mcp.Required(),
			mcp.Description("Comma-separated entry files or glob patterns, relative to cwd")),
		mcp.WithString("cwd",
			mcp.Description("Project root; defaults to the server's working directory")),
		mcp.WithBoolean("resolve",
			mcp.Description("Inline declarations from node_modules packages instead of keeping imports external")),
		mcp.WithBoolean("infer_types",
			mcp.Description("Use the whole-program checker instead of per-file isolated declarations (requires tsconfig.json)")),
		mcp.WithBoolean("splitting",
			mcp.Description("Allow shared chunk outputs for multi-entry bundles")),
		mcp.WithBoolean("minify",
			mcp.Description("Shorten internal identifiers and strip whitespace")),
	)
}

// inspectDeclarationTool declares the inspect_declaration tool schema.
func inspectDeclarationTool() mcp.Tool {
	return mcp.NewTool("inspect_declaration",
		mcp.WithDescription("Emit the isolated declaration text of a single TypeScript file, with diagnostics"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path to the .ts file, relative to cwd")),
		mcp.WithString("cwd",
			mcp.Description("Project root; defaults to the server's working directory")),
	)
}

// listEntrypointsTool declares the list_entrypoints tool schema.
func listEntrypointsTool() mcp.Tool {
	return mcp.NewTool("list_entrypoints",
		mcp.WithDescription("List TypeScript source files matching a glob pattern"),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Doublestar glob pattern, e.g. src/**/*.ts")),
		mcp.WithString("cwd",
			mcp.Description("Project root; defaults to the server's working directory")),
	)
}
