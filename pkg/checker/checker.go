// Package checker pre-emits a shadow declaration tree with the TypeScript
// compiler. It is the slow path behind the inferTypes option: unlike the
// per-file isolated emitter it supports inference across files, at the cost
// of a subprocess and a full project pass.
package checker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Checker shells out to tsc (or the native-preview tsgo binary) to emit
// declarations for a whole project.
type Checker struct {
	cwd      string
	tsconfig string
	useTsgo  bool
	logger   *slog.Logger
}

// New creates a checker for the project at cwd using the given tsconfig
// path. Logger may be nil.
func New(cwd, tsconfig string, useTsgo bool, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{cwd: cwd, tsconfig: tsconfig, useTsgo: useTsgo, logger: logger}
}

// Emitted is a shadow declaration tree in a scoped temporary directory.
// Callers must invoke Cleanup on every exit path.
type Emitted struct {
	dir string
	cwd string
}

// EmitDeclarations runs the compiler with --emitDeclarationOnly into a
// fresh temporary directory and returns the resulting tree.
func (c *Checker) EmitDeclarations(ctx context.Context) (*Emitted, error) {
	tmpDir, err := os.MkdirTemp("", "dtsbundle-decl-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	binary, err := c.findBinary()
	if err != nil {
		os.RemoveAll(tmpDir)
		return nil, err
	}

	args := []string{
		"-p", c.tsconfig,
		"--declaration", "--emitDeclarationOnly",
		"--noEmit", "false",
		"--outDir", tmpDir,
		"--rootDir", c.cwd,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = c.cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	c.logger.Info("running declaration pre-emit",
		"binary", filepath.Base(binary),
		"tsconfig", c.tsconfig)

	if err := cmd.Run(); err != nil {
		// tsc exits non-zero on type errors but still emits declarations;
		// only treat a run with no output tree as fatal.
		if !hasDeclarations(tmpDir) {
			os.RemoveAll(tmpDir)
			out := strings.TrimSpace(stdout.String() + stderr.String())
			return nil, fmt.Errorf("declaration pre-emit failed: %w (output: %s)", err, out)
		}
		c.logger.Warn("checker reported errors, using emitted declarations anyway",
			"output_bytes", stdout.Len())
	}

	c.logger.Info("declaration pre-emit complete",
		"ms", time.Since(start).Milliseconds())
	return &Emitted{dir: tmpDir, cwd: c.cwd}, nil
}

// findBinary locates the compiler: the project-local node_modules/.bin
// entry first, then PATH.
func (c *Checker) findBinary() (string, error) {
	name := "tsc"
	if c.useTsgo {
		name = "tsgo"
	}
	local := filepath.Join(c.cwd, "node_modules", ".bin", name)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	if found, err := exec.LookPath(name); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("cannot find %s: install typescript or put %s on PATH", name, name)
}

// DeclarationFor returns the shadow .d.ts text for one source file.
func (e *Emitted) DeclarationFor(srcPath string) (string, bool) {
	rel, err := filepath.Rel(e.cwd, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	shadow := filepath.Join(e.dir, declarationName(rel))
	data, err := os.ReadFile(shadow)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Cleanup removes the temporary declaration tree.
func (e *Emitted) Cleanup() error {
	return os.RemoveAll(e.dir)
}

// declarationName maps a source path to the compiler's output name.
func declarationName(rel string) string {
	switch {
	case strings.HasSuffix(rel, ".mts"):
		return strings.TrimSuffix(rel, ".mts") + ".d.mts"
	case strings.HasSuffix(rel, ".cts"):
		return strings.TrimSuffix(rel, ".cts") + ".d.cts"
	case strings.HasSuffix(rel, ".tsx"):
		return strings.TrimSuffix(rel, ".tsx") + ".d.ts"
	case strings.HasSuffix(rel, ".ts"):
		return strings.TrimSuffix(rel, ".ts") + ".d.ts"
	}
	return rel
}

// hasDeclarations reports whether the output tree contains any .d.ts file.
func hasDeclarations(dir string) bool {
	found := false
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(path, ".d.ts") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
