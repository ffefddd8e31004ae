package generator

import (
	"log/slog"

	"github.com/gnana997/dtsbundle/pkg/resolver"
)

// Options configures one GenerateDts call. The zero value bundles from the
// process working directory with every package external.
type Options struct {
	// Cwd is the project root. Defaults to the process working directory.
	Cwd string

	// PreferredTsconfig points at an alternative project configuration.
	// Defaults to <Cwd>/tsconfig.json when needed.
	PreferredTsconfig string

	// Resolve controls which external package specifiers are inlined
	// versus left external: a global flag or an allow-list.
	Resolve resolver.Policy

	// InferTypes produces declarations with the whole-program checker
	// instead of the per-file isolated transformer. Requires a project
	// config to exist.
	InferTypes bool

	// Tsgo switches the checker executable to the native-preview binary.
	Tsgo bool

	// Splitting allows the bundler to emit shared chunks.
	Splitting bool

	// Minify renames user-visible identifiers to short ones and strips
	// whitespace in the final declaration text.
	Minify bool

	// Naming is forwarded to the bundler for output file naming.
	// Supports [name] and [hash].
	Naming string

	// Workers bounds parallelism; 0 means auto.
	Workers int

	// Logger may be nil.
	Logger *slog.Logger
}
