// Package parser wraps the tree-sitter TypeScript and JavaScript grammars
// behind pooled parsers safe for concurrent use.
package parser

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/gnana997/dtsbundle/pkg/util"
)

// poolKey uniquely identifies a parser pool (language + TSX variant).
type poolKey struct {
	lang  Language
	isTSX bool
}

// Manager hands out pooled tree-sitter parsers per language.
//
// Pools are created lazily on first use and sized by the configured pool
// size. Multiple goroutines can parse the same language simultaneously —
// the bundler's load hook and the worker pool both rely on this.
//
// Callers own returned Tree instances and must call tree.Close() after use;
// the Manager itself must be closed via Close().
type Manager struct {
	pools  map[poolKey]*parserPool
	mutex  sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a parser manager. The returned manager must be closed
// via Close() to free tree-sitter resources. Logger may be nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pools:  make(map[poolKey]*parserPool),
		logger: logger,
	}
}

// Parse parses source with the given language grammar. The isTSX parameter
// only matters for TypeScript.
//
// Returns a Tree that MUST be closed by the caller. A tree containing
// syntax errors is still returned — partial trees are useful when emitting
// diagnostics for malformed input.
func (m *Manager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse unknown language")
	}

	pool, err := m.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	p, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}
	tree := p.Parse(source, nil)
	pool.release(p)

	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree")
	}
	if tree.RootNode().HasError() {
		m.logger.Warn("parse tree contains errors", "language", lang.String())
	}
	return tree, nil
}

// ParseFile parses a file by detecting its grammar from the path.
// Declaration files (.d.ts and friends) parse with the TypeScript grammar.
func (m *Manager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		if IsDeclarationFile(filePath) {
			lang = LanguageTypeScript
		} else {
			return nil, fmt.Errorf("unsupported file extension: %s", filePath)
		}
	}
	return m.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases all parser pools. After Close() the Manager cannot be used.
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for key, pool := range m.pools {
		if pool != nil {
			pool.close()
			m.logger.Debug("closed parser pool",
				"language", key.lang.String(),
				"isTSX", key.isTSX)
		}
	}
	m.pools = make(map[poolKey]*parserPool)
	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking.
func (m *Manager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	key := poolKey{lang: lang, isTSX: isTSX}

	m.mutex.RLock()
	pool, exists := m.pools[key]
	m.mutex.RUnlock()
	if exists {
		return pool, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if pool, exists = m.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := m.LanguagePointer(lang, isTSX)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(lang, langPtr, isTSX, util.GetOptimalPoolSize(), m.logger)
	m.pools[key] = pool

	m.logger.Debug("created parser pool",
		"language", lang.String(),
		"isTSX", isTSX,
		"size", pool.size)
	return pool, nil
}

// LanguagePointer returns the unsafe.Pointer to the tree-sitter grammar for
// lang. The isTSX parameter only matters for TypeScript.
func (m *Manager) LanguagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil
	case LanguageJavaScript:
		return ts_javascript.Language(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang.String())
	}
}
