// Package generator orchestrates declaration bundling: per-file declaration
// pre-production, the forward transform behind the bundler's load hook, and
// the reverse transform plus tree-shake over every bundle output.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/dtsbundle/pkg/bundler"
	"github.com/gnana997/dtsbundle/pkg/checker"
	"github.com/gnana997/dtsbundle/pkg/declgen"
	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/resolver"
	"github.com/gnana997/dtsbundle/pkg/syntax"
	"github.com/gnana997/dtsbundle/pkg/transform"
	"github.com/gnana997/dtsbundle/pkg/util"
)

// moduleCacheSize bounds the LRU of transformed fake-JS modules. Watch mode
// regenerates repeatedly; unchanged files hit the cache.
const moduleCacheSize = 4096

// GenerateDts bundles the type declarations of the given entrypoints into
// one declaration file per entry, plus shared chunk declarations when
// splitting is enabled.
//
// Entrypoints may be paths or doublestar glob patterns relative to
// Options.Cwd. Non-fatal isolated-declaration diagnostics come back in
// Result.Errors alongside the generated files.
func GenerateDts(ctx context.Context, entrypoints []string, opts Options) (*Result, error) {
	if opts.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		opts.Cwd = wd
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := expandEntries(opts.Cwd, entrypoints)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entrypoint resolves to a TypeScript source file")
	}

	g, err := newGenerator(opts, logger)
	if err != nil {
		return nil, err
	}
	defer g.close()

	if opts.InferTypes {
		if err := g.startChecker(ctx); err != nil {
			return nil, err
		}
		defer g.emitted.Cleanup()
	}

	outputs, err := bundler.Bundle(ctx, bundler.Options{
		Entries:   entries,
		Resolve:   g.resolveHook,
		Load:      g.loadHook,
		Splitting: opts.Splitting,
		Naming:    opts.Naming,
		Parsers:   g.parsers,
		Workers:   opts.Workers,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, out := range outputs {
		file, keep, err := g.finishOutput(out)
		if err != nil {
			return nil, err
		}
		if keep {
			result.Files = append(result.Files, file)
		}
	}
	result.Errors = g.collectedDiagnostics()
	return result, nil
}

// expandEntries resolves entry patterns to absolute TypeScript source
// paths. Plain paths pass through; patterns expand via doublestar.
func expandEntries(cwd string, entrypoints []string) ([]string, error) {
	var entries []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		if parser.IsSourceFile(path) && !seen[path] {
			seen[path] = true
			entries = append(entries, path)
		}
	}

	for _, pattern := range entrypoints {
		if !strings.ContainsAny(pattern, "*?[{") {
			add(pattern)
			continue
		}
		abs := pattern
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, abs)
		}
		matches, err := doublestar.FilepathGlob(abs)
		if err != nil {
			return nil, fmt.Errorf("invalid entry pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			add(match)
		}
	}
	return entries, nil
}

// generator holds the per-call collaborators.
type generator struct {
	opts   Options
	logger *slog.Logger

	parsers  *parser.Manager
	emitter  *declgen.Emitter
	forward  *transform.Forward
	reverse  *transform.Reverse
	minifier *transform.Minifier
	res      *resolver.Resolver
	files    *util.FileCache
	modules  *lru.Cache[string, string]
	emitted  *checker.Emitted

	diagMu      sync.Mutex
	diagnostics []declgen.Diagnostic
}

func newGenerator(opts Options, logger *slog.Logger) (*generator, error) {
	modules, err := lru.New[string, string](moduleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create module cache: %w", err)
	}

	parsers := parser.NewManager(logger)
	res := resolver.New(opts.Cwd, opts.Resolve, logger)
	if baseURL, paths := loadTsconfigPaths(opts.tsconfigPath()); paths != nil {
		res.SetPaths(baseURL, paths)
	}

	return &generator{
		opts:     opts,
		logger:   logger,
		parsers:  parsers,
		emitter:  declgen.NewEmitter(parsers, logger),
		forward:  transform.NewForward(parsers, logger),
		reverse:  transform.NewReverse(parsers, logger),
		minifier: transform.NewMinifier(parsers, logger),
		res:      res,
		files:    util.NewFileCache(&util.FileCacheConfig{Logger: logger}),
		modules:  modules,
	}, nil
}

func (g *generator) close() {
	g.files.Close()
	g.parsers.Close()
}

// tsconfigPath returns the project config to use.
func (o Options) tsconfigPath() string {
	if o.PreferredTsconfig != "" {
		return o.PreferredTsconfig
	}
	return filepath.Join(o.Cwd, "tsconfig.json")
}

// startChecker validates the project config and runs the whole-program
// declaration pre-emit.
func (g *generator) startChecker(ctx context.Context) error {
	tsconfig := g.opts.tsconfigPath()
	if _, err := os.Stat(tsconfig); err != nil {
		return fmt.Errorf(
			"inferTypes requires a project config: %s does not exist; create a tsconfig.json or set PreferredTsconfig",
			tsconfig)
	}
	emitted, err := checker.New(g.opts.Cwd, tsconfig, g.opts.Tsgo, g.logger).
		EmitDeclarations(ctx)
	if err != nil {
		return err
	}
	g.emitted = emitted
	return nil
}

// resolveHook adapts the module resolver to the bundler's hook shape.
func (g *generator) resolveHook(specifier, importer string) (bundler.ResolveResult, error) {
	resolved, err := g.res.Resolve(specifier, importer)
	if err != nil {
		return bundler.ResolveResult{}, err
	}
	return bundler.ResolveResult{Path: resolved.Path, External: resolved.External}, nil
}

// loadHook produces the fake-JS for one resolved path: declaration text
// first (verbatim for node_modules, pre-emitted or isolated-emitted
// otherwise), then the forward transform. Results cache by path and mtime.
// The bundler may call this concurrently; every transform invocation is
// file-local.
func (g *generator) loadHook(path string) (string, error) {
	key := cacheKey(path)
	if cached, ok := g.modules.Get(key); ok {
		return cached, nil
	}

	declText, err := g.declarationFor(path)
	if err != nil {
		return "", err
	}
	fakeJS, err := g.forward.Transform(declText)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	g.modules.Add(key, fakeJS)
	return fakeJS, nil
}

// declarationFor acquires the declaration text of one source file.
func (g *generator) declarationFor(path string) (string, error) {
	// Third-party declarations survive bundling unmodified: their text is
	// the file body, no generation step.
	if syntax.IsNodeModulesPath(path) || parser.IsDeclarationFile(path) {
		content, err := g.files.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	}

	if g.emitted != nil {
		if decl, ok := g.emitted.DeclarationFor(path); ok {
			return decl, nil
		}
		g.logger.Debug("no pre-emitted declaration, falling back to isolated emitter",
			"file", path)
	}

	content, err := g.files.ReadFile(path)
	if err != nil {
		return "", err
	}
	result, err := g.emitter.Emit(path, content)
	if err != nil {
		return "", err
	}
	if len(result.Diagnostics) > 0 {
		g.diagMu.Lock()
		g.diagnostics = append(g.diagnostics, result.Diagnostics...)
		g.diagMu.Unlock()
	}
	return result.Code, nil
}

// finishOutput runs the reverse transform, the tree-shake pass and optional
// minification over one bundle output. keep is false when the chunk
// contained only types unreachable from entry exports.
func (g *generator) finishOutput(out bundler.OutputFile) (File, bool, error) {
	declText, err := g.reverse.Transform(out.Text)
	if err != nil {
		return File{}, false, fmt.Errorf("failed to reconstruct %s: %w", out.Path, err)
	}

	shaken, err := g.emitter.TreeShake(declText)
	if err != nil {
		return File{}, false, fmt.Errorf("failed to tree-shake %s: %w", out.Path, err)
	}
	if shaken.Code == "" {
		if len(shaken.Diagnostics) > 0 {
			return File{}, false, fmt.Errorf("declaration pass failed for %s: %s",
				out.Path, shaken.Diagnostics[0].Message)
		}
		g.logger.Debug("dropping empty chunk", "path", out.Path)
		return File{}, false, nil
	}

	text := shaken.Code
	if g.opts.Minify {
		text, err = g.minifier.Minify(text)
		if err != nil {
			return File{}, false, fmt.Errorf("failed to minify %s: %w", out.Path, err)
		}
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	jsExt := filepath.Ext(out.Path)
	declExt := parser.DeclarationExtension(jsExt)
	fileName := strings.TrimSuffix(filepath.Base(out.Path), jsExt)

	kind := KindEntryPoint
	if out.Kind == bundler.KindChunk {
		kind = KindChunk
	}
	return File{
		Kind:      kind,
		Text:      text,
		Path:      fileName + declExt,
		FileName:  fileName,
		Extension: declExt,
	}, true, nil
}

// collectedDiagnostics returns the per-file diagnostics sorted by file and
// position.
func (g *generator) collectedDiagnostics() []declgen.Diagnostic {
	g.diagMu.Lock()
	defer g.diagMu.Unlock()
	diags := make([]declgen.Diagnostic, len(g.diagnostics))
	copy(diags, g.diagnostics)
	sort.Slice(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		if diags[i].Line != diags[j].Line {
			return diags[i].Line < diags[j].Line
		}
		return diags[i].Column < diags[j].Column
	})
	return diags
}

// cacheKey keys the module cache by path and mtime so watch-mode edits
// invalidate naturally.
func cacheKey(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s\x00%d", path, info.ModTime().UnixNano())
}
