package checker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDeclarationName maps source paths to compiler output names.
func TestDeclarationName(t *testing.T) {
	assert.Equal(t, "src/index.d.ts", declarationName("src/index.ts"))
	assert.Equal(t, "src/App.d.ts", declarationName("src/App.tsx"))
	assert.Equal(t, "src/mod.d.mts", declarationName("src/mod.mts"))
	assert.Equal(t, "src/mod.d.cts", declarationName("src/mod.cts"))
}

// TestEmittedDeclarationFor reads shadow declarations out of the tree.
func TestEmittedDeclarationFor(t *testing.T) {
	cwd := t.TempDir()
	out := t.TempDir()

	shadow := filepath.Join(out, "src", "index.d.ts")
	require.NoError(t, os.MkdirAll(filepath.Dir(shadow), 0755))
	require.NoError(t, os.WriteFile(shadow, []byte("export declare const x: number;\n"), 0644))

	emitted := &Emitted{dir: out, cwd: cwd}
	decl, ok := emitted.DeclarationFor(filepath.Join(cwd, "src", "index.ts"))
	require.True(t, ok)
	assert.Contains(t, decl, "declare const x")

	_, ok = emitted.DeclarationFor(filepath.Join(cwd, "src", "missing.ts"))
	assert.False(t, ok)

	// paths outside the project root never map
	_, ok = emitted.DeclarationFor("/elsewhere/file.ts")
	assert.False(t, ok)
}

// TestEmittedCleanup removes the temp tree on every exit path.
func TestEmittedCleanup(t *testing.T) {
	out := t.TempDir()
	sub := filepath.Join(out, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))

	emitted := &Emitted{dir: out, cwd: t.TempDir()}
	require.NoError(t, emitted.Cleanup())
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

// TestHasDeclarations detects emitted output.
func TestHasDeclarations(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, hasDeclarations(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.d.ts"), []byte(""), 0644))
	assert.True(t, hasDeclarations(dir))
}
