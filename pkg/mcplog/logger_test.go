package mcplog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBundleContext extracts entries and bundling options from tool
// arguments.
func TestBundleContext(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		wantEntries []string
		wantOptions map[string]any
	}{
		{
			name:        "nil args yield nothing",
			args:        nil,
			wantEntries: nil,
			wantOptions: nil,
		},
		{
			name:        "comma separated entries split and trim",
			args:        map[string]any{"entries": "src/index.ts, src/cli.ts"},
			wantEntries: []string{"src/index.ts", "src/cli.ts"},
		},
		{
			name:        "inspect file counts as an entry",
			args:        map[string]any{"file": "src/index.ts"},
			wantEntries: []string{"src/index.ts"},
		},
		{
			name: "recognised options are kept, free-form args are not",
			args: map[string]any{
				"entries":   "src/index.ts",
				"splitting": true,
				"minify":    false,
				"cwd":       "packages/lib",
				"payload":   strings.Repeat("x", 500),
			},
			wantEntries: []string{"src/index.ts"},
			wantOptions: map[string]any{
				"splitting": true,
				"minify":    false,
				"cwd":       "packages/lib",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, options := BundleContext(tc.args)
			assert.Equal(t, tc.wantEntries, entries)
			assert.Equal(t, tc.wantOptions, options)
		})
	}
}

// TestBundleContextTruncatesLongStrings caps string option values so the
// log never carries large payloads.
func TestBundleContextTruncatesLongStrings(t *testing.T) {
	_, options := BundleContext(map[string]any{"cwd": strings.Repeat("p/", 200)})
	require.NotNil(t, options)
	cwd, ok := options["cwd"].(string)
	require.True(t, ok)
	assert.LessOrEqual(t, len(cwd), 128)
}

// TestStatsFor parses the tool result payloads.
func TestStatsFor(t *testing.T) {
	t.Run("nil result is zero", func(t *testing.T) {
		assert.Equal(t, ResultStats{}, StatsFor(nil))
	})

	t.Run("generate payload counts files and chunks", func(t *testing.T) {
		payload := `{"files":[{"kind":"entry-point","path":"index.d.ts"},{"kind":"chunk","path":"chunk-ab12cd34.d.ts"}],"errors":["src/a.ts:3:1: needs a return type"]}`
		stats := StatsFor(mcp.NewToolResultText(payload))
		assert.Equal(t, 2, stats.Files)
		assert.Equal(t, 1, stats.Chunks)
		assert.Equal(t, 1, stats.Diagnostics)
		assert.Greater(t, stats.Bytes, 0)
	})

	t.Run("inspect payload counts diagnostics", func(t *testing.T) {
		payload := `{"declaration":"declare const x: number;","diagnostics":["a","b"]}`
		stats := StatsFor(mcp.NewToolResultText(payload))
		assert.Equal(t, 0, stats.Files)
		assert.Equal(t, 2, stats.Diagnostics)
	})

	t.Run("non-JSON payload yields bytes only", func(t *testing.T) {
		stats := StatsFor(mcp.NewToolResultText("plain error text"))
		assert.Greater(t, stats.Bytes, 0)
		assert.Equal(t, 0, stats.Files)
	})
}

// TestLoggerWriteAndRead round-trips entries through the JSONL file.
func TestLoggerWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.jsonl")

	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	entries := []LogEntry{
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "generate_dts",
			Entries: []string{"src/index.ts"}, Files: 1, DurationMs: 42, ResponseBytes: 800},
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "inspect_declaration",
			Entries: []string{"src/cli.ts"}, Diagnostics: 2, DurationMs: 5, ResponseBytes: 100},
		{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "list_entrypoints",
			Entries: []string{"src/*.ts"}, DurationMs: 3, ResponseBytes: 50},
	}

	for _, e := range entries {
		require.NoError(t, logger.Write(e))
	}

	require.NoError(t, logger.Close())

	// Re-open and read back.
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), "unmarshal line %q", line)
		got = append(got, e)
	}

	require.Len(t, got, len(entries))
	for i, e := range entries {
		assert.Equal(t, e.Tool, got[i].Tool, "line %d tool mismatch", i)
		assert.Equal(t, e.Entries, got[i].Entries, "line %d entries mismatch", i)
		assert.Equal(t, e.DurationMs, got[i].DurationMs, "line %d duration_ms mismatch", i)
	}
}

// TestLoggerConcurrency verifies no torn writes under parallel tool calls.
func TestLoggerConcurrency(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concurrent.jsonl")

	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	const goroutines = 50
	const writesEach = 10

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < writesEach; j++ {
				_ = logger.Write(LogEntry{
					Ts:   time.Now().UTC().Format(time.RFC3339),
					Tool: "generate_dts",
				})
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e), "torn write detected at line %d", count+1)
		count++
	}

	assert.Equal(t, goroutines*writesEach, count)
}

// TestNewLoggerCreatesDirectory creates missing parent directories.
func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "mcp.jsonl")

	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "log file should have been created")
}

// TestNewLoggerEmptyPath treats an empty path as disabled logging.
func TestNewLoggerEmptyPath(t *testing.T) {
	logger, err := NewLogger("")
	require.NoError(t, err)
	assert.Nil(t, logger, "expected nil logger for empty path")
}
