package generator

import "github.com/gnana997/dtsbundle/pkg/declgen"

// FileKind distinguishes entry outputs from shared chunks.
type FileKind string

const (
	// KindEntryPoint is a declaration bundle for one entry.
	KindEntryPoint FileKind = "entry-point"
	// KindChunk is a shared declaration chunk produced by splitting.
	KindChunk FileKind = "chunk"
)

// File is one generated declaration bundle.
type File struct {
	// Kind is entry-point or chunk.
	Kind FileKind

	// Text is the bundled declaration text.
	Text string

	// Path is the output file name, extension included.
	Path string

	// FileName is Path without its declaration extension.
	FileName string

	// Extension is the declaration extension derived from the chunk's JS
	// extension: .js → .d.ts, .mjs → .d.mts, .cjs → .d.cts.
	Extension string
}

// Result is the outcome of one GenerateDts call. Errors carries the
// non-fatal isolated-declaration diagnostics keyed by source file; the
// generated files are returned alongside so callers can render both.
type Result struct {
	Files  []File
	Errors []declgen.Diagnostic
}
