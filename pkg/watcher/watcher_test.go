package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records regeneration callbacks.
type collector struct {
	mu      sync.Mutex
	batches [][]string
	fired   chan struct{}
}

func newCollector() *collector {
	return &collector{fired: make(chan struct{}, 16)}
}

func (c *collector) callback(changed []string) {
	c.mu.Lock()
	c.batches = append(c.batches, changed)
	c.mu.Unlock()
	c.fired <- struct{}{}
}

// TestWatcherFiresOnSourceChange verifies a .ts write triggers one
// regeneration after the debounce window.
func TestWatcherFiresOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	c := newCollector()

	w, err := New(Options{DebounceMs: 50}, c.callback, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(dir))
	defer w.Stop()

	path := filepath.Join(dir, "index.ts")
	require.NoError(t, os.WriteFile(path, []byte("export interface A {}"), 0644))

	select {
	case <-c.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not fire within timeout")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.batches)
	assert.Contains(t, c.batches[0], path)
}

// TestWatcherIgnoresNonSourceFiles verifies unrelated files never trigger.
func TestWatcherIgnoresNonSourceFiles(t *testing.T) {
	dir := t.TempDir()
	c := newCollector()

	w, err := New(Options{DebounceMs: 20}, c.callback, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(dir))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))

	select {
	case <-c.fired:
		t.Fatal("watcher fired for a non-source file")
	case <-time.After(300 * time.Millisecond):
	}
}

// TestWatcherDebouncesBursts groups rapid writes into one callback.
func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	c := newCollector()

	w, err := New(Options{DebounceMs: 120}, c.callback, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(dir))
	defer w.Stop()

	path := filepath.Join(dir, "burst.ts")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("export type T = number;"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-c.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not fire within timeout")
	}
	// the burst must not produce a second immediate callback
	select {
	case <-c.fired:
		t.Fatal("burst produced more than one regeneration")
	case <-time.After(250 * time.Millisecond):
	}
}

// TestWatcherStopIdempotent verifies Stop is safe to call twice.
func TestWatcherStopIdempotent(t *testing.T) {
	w, err := New(DefaultOptions(), func([]string) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.TempDir()))
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

// TestShouldIgnoreBuiltins verifies dependency directories never watch.
func TestShouldIgnoreBuiltins(t *testing.T) {
	w, err := New(DefaultOptions(), func([]string) {}, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.shouldIgnore("/p/node_modules"))
	assert.True(t, w.shouldIgnore("/p/.git"))
	assert.False(t, w.shouldIgnore("/p/src"))
}
