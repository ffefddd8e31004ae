// Package bundler links fake-JS modules: it resolves the module graph
// through caller-provided hooks, tree-shakes statements unreachable from
// entry exports, renames colliding symbols, synthesises namespace objects
// for inlined namespace imports, and optionally splits shared statements
// into a chunk.
//
// The identifier conventions here are load-bearing for the reverse
// transform: collision renames append a number (User, User2, …), synthetic
// namespace locals are named exports_* and re-exported under the
// user-facing name, and namespace objects materialise as
// `NS(local, { name: () => local, … });` calls.
package bundler

import (
	"log/slog"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

// ResolveResult is the outcome of resolving one import specifier.
type ResolveResult struct {
	// Path is the resolved module path (absolute for first-party files) or
	// the specifier to keep when External.
	Path string

	// External marks specifiers that stay as import statements in the
	// output instead of being inlined.
	External bool
}

// ResolveFunc resolves an import specifier relative to its importer.
type ResolveFunc func(specifier, importer string) (ResolveResult, error)

// LoadFunc returns the fake-JS text of a resolved module path. It may be
// invoked concurrently; implementations must be safe for parallel calls.
type LoadFunc func(path string) (string, error)

// Options configures one Bundle call.
type Options struct {
	// Entries are the resolved entry module paths, in output order.
	Entries []string

	// Resolve and Load are the plugin-like hooks the driver supplies.
	Resolve ResolveFunc
	Load    LoadFunc

	// Splitting moves statements reachable from more than one entry into a
	// shared chunk.
	Splitting bool

	// Naming is the entry output naming pattern. Supports [name] and
	// [hash]; when empty, an entry is named [name] plus .js, .mjs or .cjs
	// after its source flavour. The shared chunk name ignores it.
	Naming string

	// Parsers supplies pooled tree-sitter parsers for the graph scan.
	Parsers *parser.Manager

	// Workers bounds graph-scan concurrency; 0 means auto.
	Workers int

	Logger *slog.Logger
}

// OutputKind distinguishes entry outputs from shared chunks.
type OutputKind int

const (
	// KindEntryPoint is an output produced for one entry module.
	KindEntryPoint OutputKind = iota
	// KindChunk is a shared chunk produced by code splitting.
	KindChunk
)

// String returns the result-facing kind name.
func (k OutputKind) String() string {
	if k == KindChunk {
		return "chunk"
	}
	return "entry-point"
}

// OutputFile is one bundled fake-JS output.
type OutputFile struct {
	// Kind is entry-point or chunk.
	Kind OutputKind

	// Path is the output file name derived from the naming pattern.
	Path string

	// Text is the bundled fake-JS.
	Text string

	// EntryPath is the source entry path for entry-point outputs.
	EntryPath string
}
