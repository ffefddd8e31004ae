// Package watcher regenerates declaration bundles when source files change.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

// Options controls watch behavior.
type Options struct {
	// DebounceMs groups rapid change bursts into one regeneration.
	// Defaults to 200.
	DebounceMs int

	// IgnorePatterns are doublestar patterns matched against paths relative
	// to the watch root.
	IgnorePatterns []string
}

// DefaultOptions returns watch options suitable for library projects.
func DefaultOptions() Options {
	return Options{
		DebounceMs: 200,
		IgnorePatterns: []string{
			"**/node_modules/**",
			"**/.git/**",
			"**/dist/**",
			"**/build/**",
		},
	}
}

// Watcher watches a source tree and triggers a rebuild callback after a
// debounce window.
//
// Events for non-TypeScript files and ignored directories are filtered
// before they reach the debounce timer, so editor noise never triggers a
// regeneration.
type Watcher struct {
	watcher    *fsnotify.Watcher
	root       string
	options    Options
	regenerate func(changed []string)
	logger     *slog.Logger

	mu       sync.Mutex
	pending  map[string]bool
	timer    *time.Timer
	stopChan chan struct{}
	stopped  bool
}

// New creates a watcher that calls regenerate with the changed files after
// each debounce window. Logger may be nil.
func New(options Options, regenerate func(changed []string), logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if options.DebounceMs == 0 {
		options.DebounceMs = 200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		watcher:    fsw,
		options:    options,
		regenerate: regenerate,
		logger:     logger,
		pending:    make(map[string]bool),
		stopChan:   make(chan struct{}),
	}, nil
}

// Start begins watching rootPath and its subdirectories.
func (w *Watcher) Start(rootPath string) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	w.root = rootPath
	w.mu.Unlock()

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	w.logger.Info("watching for changes", "root", rootPath)
	go w.eventLoop()
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopChan)
	if w.timer != nil {
		w.timer.Stop()
	}
	err := w.watcher.Close()
	w.logger.Info("watcher stopped")
	return err
}

// eventLoop is the main event processing loop.
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent filters and debounces one file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if w.shouldIgnore(path) {
		return
	}

	// new directories need their own watch
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watcher.Add(path); err == nil {
				w.logger.Debug("watching new directory", "path", path)
			}
			return
		}
	}

	if parser.DetectLanguage(path) != parser.LanguageTypeScript &&
		!parser.IsDeclarationFile(path) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debug("file event", "op", event.Op.String(), "file", path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Duration(w.options.DebounceMs)*time.Millisecond, w.fire)
}

// fire drains the pending set and runs the regeneration callback.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	w.logger.Info("regenerating", "changed_files", len(changed))
	w.regenerate(changed)
}

// shouldIgnore matches a path against the ignore patterns and the built-in
// dependency/build directories.
func (w *Watcher) shouldIgnore(path string) bool {
	switch filepath.Base(path) {
	case "node_modules", ".git", "dist", "build", ".next":
		return true
	}

	rel := path
	if w.root != "" {
		if r, err := filepath.Rel(w.root, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.options.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
