// Package resolver maps import specifiers to files on disk: first-party
// relative paths, tsconfig path aliases, and node_modules packages. It
// decides nothing about declaration generation; it only finds files and
// classifies externals per the resolve policy.
package resolver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Policy controls which bare package specifiers are inlined into the bundle
// versus left as external imports. The zero value externalises everything.
type Policy struct {
	// All inlines every resolvable package.
	All bool

	// Packages is an allow-list of package names to inline when All is
	// false.
	Packages []string
}

// Inlines reports whether the policy wants pkg bundled.
func (p Policy) Inlines(pkg string) bool {
	if p.All {
		return true
	}
	for _, allowed := range p.Packages {
		if allowed == pkg {
			return true
		}
	}
	return false
}

// Result is one resolution outcome.
type Result struct {
	// Path is the absolute file path, or the original specifier when
	// External.
	Path string

	// External marks specifiers the bundle keeps as imports.
	External bool
}

// Resolver resolves import specifiers for the bundler's resolve hook.
type Resolver struct {
	cwd    string
	policy Policy
	// paths are tsconfig-style aliases: pattern → candidate templates.
	// A single `*` wildcard is supported on both sides.
	paths   map[string][]string
	baseURL string
	logger  *slog.Logger
}

// New creates a resolver rooted at cwd. Logger may be nil.
func New(cwd string, policy Policy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cwd: cwd, policy: policy, logger: logger}
}

// SetPaths installs tsconfig path aliases resolved against baseURL.
func (r *Resolver) SetPaths(baseURL string, paths map[string][]string) {
	r.baseURL = baseURL
	r.paths = paths
}

// extensionProbes is the candidate order for extensionless specifiers.
var extensionProbes = []string{".ts", ".tsx", ".d.ts", ".mts", ".cts", ".d.mts", ".d.cts"}

// Resolve maps one specifier to a file or an external. Relative and
// absolute specifiers must resolve or the bundle fails; bare specifiers
// fall back to external when the policy excludes them or no declaration
// entry is found.
func (r *Resolver) Resolve(specifier, importer string) (Result, error) {
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		base := filepath.Join(filepath.Dir(importer), specifier)
		if found, ok := r.probeFile(base); ok {
			return Result{Path: found}, nil
		}
		return Result{}, fmt.Errorf("cannot resolve %q from %s", specifier, importer)
	}
	if filepath.IsAbs(specifier) {
		if found, ok := r.probeFile(specifier); ok {
			return Result{Path: found}, nil
		}
		return Result{}, fmt.Errorf("cannot resolve %q", specifier)
	}

	if resolved, ok := r.resolveAlias(specifier); ok {
		return Result{Path: resolved}, nil
	}

	// node: builtins never inline
	if strings.HasPrefix(specifier, "node:") {
		return Result{Path: specifier, External: true}, nil
	}

	pkg := packageName(specifier)
	if !r.policy.Inlines(pkg) {
		return Result{Path: specifier, External: true}, nil
	}
	if found, ok := r.resolvePackage(specifier, pkg, importer); ok {
		return Result{Path: found}, nil
	}
	r.logger.Debug("package has no resolvable declarations, keeping external",
		"specifier", specifier)
	return Result{Path: specifier, External: true}, nil
}

// probeFile finds the file a possibly extensionless path points at. A
// runtime .js/.mjs/.cjs extension retries the TypeScript flavours first,
// matching how TS sources import emitted paths.
func (r *Resolver) probeFile(base string) (string, bool) {
	if fileExists(base) && !isDirectory(base) {
		return base, true
	}

	stripped := base
	switch {
	case strings.HasSuffix(base, ".js"):
		stripped = strings.TrimSuffix(base, ".js")
	case strings.HasSuffix(base, ".mjs"):
		stripped = strings.TrimSuffix(base, ".mjs")
	case strings.HasSuffix(base, ".cjs"):
		stripped = strings.TrimSuffix(base, ".cjs")
	}

	for _, ext := range extensionProbes {
		if candidate := stripped + ext; fileExists(candidate) {
			return candidate, true
		}
	}
	for _, ext := range extensionProbes {
		if candidate := filepath.Join(stripped, "index"+ext); fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// resolveAlias applies tsconfig path mappings.
func (r *Resolver) resolveAlias(specifier string) (string, bool) {
	for pattern, targets := range r.paths {
		matched, captured := matchStar(pattern, specifier)
		if !matched {
			continue
		}
		for _, target := range targets {
			candidate := strings.Replace(target, "*", captured, 1)
			candidate = filepath.Join(r.baseURL, candidate)
			if found, ok := r.probeFile(candidate); ok {
				return found, true
			}
		}
	}
	return "", false
}

// matchStar matches specifier against a pattern containing at most one `*`.
func matchStar(pattern, specifier string) (bool, string) {
	star := strings.Index(pattern, "*")
	if star < 0 {
		return pattern == specifier, ""
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
		return false, ""
	}
	return true, specifier[len(prefix) : len(specifier)-len(suffix)]
}

// resolvePackage locates a package's declaration entry under node_modules,
// walking up from the importer's directory.
func (r *Resolver) resolvePackage(specifier, pkg, importer string) (string, bool) {
	subpath := strings.TrimPrefix(strings.TrimPrefix(specifier, pkg), "/")

	dir := filepath.Dir(importer)
	if dir == "." || importer == "" {
		dir = r.cwd
	}
	for {
		pkgDir := filepath.Join(dir, "node_modules", pkg)
		if isDirectory(pkgDir) {
			if found, ok := r.packageEntry(pkgDir, subpath); ok {
				return found, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// packageEntry finds the declaration file a package (or subpath of it)
// exposes: the package.json types field for the bare import, extension
// probes otherwise.
func (r *Resolver) packageEntry(pkgDir, subpath string) (string, bool) {
	if subpath != "" {
		return r.probeFile(filepath.Join(pkgDir, subpath))
	}

	manifest := filepath.Join(pkgDir, "package.json")
	if data, err := os.ReadFile(manifest); err == nil {
		var pj struct {
			Types   string `json:"types"`
			Typings string `json:"typings"`
		}
		if err := json.Unmarshal(data, &pj); err == nil {
			entry := pj.Types
			if entry == "" {
				entry = pj.Typings
			}
			if entry != "" {
				if found, ok := r.probeFile(filepath.Join(pkgDir, entry)); ok {
					return found, true
				}
			}
		}
	}
	return r.probeFile(filepath.Join(pkgDir, "index"))
}

// packageName extracts the package part of a bare specifier, handling
// scoped packages.
func packageName(specifier string) string {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
