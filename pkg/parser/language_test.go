package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetectLanguage maps extensions to grammars.
func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageTypeScript, DetectLanguage("src/index.ts"))
	assert.Equal(t, LanguageTypeScript, DetectLanguage("src/App.tsx"))
	assert.Equal(t, LanguageTypeScript, DetectLanguage("src/mod.mts"))
	assert.Equal(t, LanguageTypeScript, DetectLanguage("types/index.d.ts"))
	assert.Equal(t, LanguageJavaScript, DetectLanguage("dist/index.js"))
	assert.Equal(t, LanguageJavaScript, DetectLanguage("dist/index.mjs"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("README.md"))
}

// TestIsDeclarationFile recognises every declaration flavour.
func TestIsDeclarationFile(t *testing.T) {
	assert.True(t, IsDeclarationFile("index.d.ts"))
	assert.True(t, IsDeclarationFile("index.d.mts"))
	assert.True(t, IsDeclarationFile("index.d.cts"))
	assert.True(t, IsDeclarationFile("/abs/path/INDEX.D.TS"))
	assert.False(t, IsDeclarationFile("index.ts"))
	assert.False(t, IsDeclarationFile("d.ts.go"))
}

// TestDeclarationExtension maps JS output extensions to declaration ones.
func TestDeclarationExtension(t *testing.T) {
	assert.Equal(t, ".d.ts", DeclarationExtension(".js"))
	assert.Equal(t, ".d.mts", DeclarationExtension(".mjs"))
	assert.Equal(t, ".d.cts", DeclarationExtension(".cjs"))
}

// TestManagerParse parses both grammars through the pool.
func TestManagerParse(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	tree, err := m.Parse([]byte("interface A { x: number }"), LanguageTypeScript, false)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.False(t, tree.RootNode().HasError())
	tree.Close()

	tree, err = m.Parse([]byte(`var A = ["interface ", B];`), LanguageJavaScript, false)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.False(t, tree.RootNode().HasError())
	tree.Close()

	_, err = m.Parse([]byte("x"), LanguageUnknown, false)
	assert.Error(t, err)
}

// TestManagerParseConcurrent exercises pooled parsers from many goroutines.
func TestManagerParseConcurrent(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	done := make(chan error, 32)
	for i := 0; i < 32; i++ {
		go func() {
			tree, err := m.Parse([]byte("type T = { a: string };"), LanguageTypeScript, false)
			if tree != nil {
				tree.Close()
			}
			done <- err
		}()
	}
	for i := 0; i < 32; i++ {
		require.NoError(t, <-done)
	}
}
