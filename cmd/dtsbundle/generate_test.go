package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseGenerateFlags covers the flag surface.
func TestParseGenerateFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	flags, err := parseGenerateFlags([]string{
		"src/index.ts", "src/cli.ts",
		"--out", "types",
		"--minify", "--splitting", "--resolve",
		"--resolve-pkg", "zod",
		"--naming", "[name].js",
		"--json",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"src/index.ts", "src/cli.ts"}, flags.entries)
	assert.Equal(t, "types", flags.outDir)
	assert.True(t, flags.opts.Minify)
	assert.True(t, flags.opts.Splitting)
	assert.True(t, flags.opts.Resolve.All)
	assert.Equal(t, []string{"zod"}, flags.opts.Resolve.Packages)
	assert.Equal(t, "[name].js", flags.opts.Naming)
	assert.True(t, flags.asJSON)
}

// TestParseGenerateFlagsRequiresEntries fails without entries anywhere.
func TestParseGenerateFlagsRequiresEntries(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := parseGenerateFlags([]string{"--minify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entrypoints")
}

// TestProjectConfigFallback layers config values under flags.
func TestProjectConfigFallback(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".dtsbundle"), 0755))
	config := `version: "1"
entries:
  - src/index.ts
out_dir: dist/types
splitting: true
resolve_packages:
  - zod
`
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".dtsbundle", "config.yaml"), []byte(config), 0644))

	flags, err := parseGenerateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/index.ts"}, flags.entries)
	assert.Equal(t, "dist/types", flags.outDir)
	assert.True(t, flags.opts.Splitting)
	assert.Equal(t, []string{"zod"}, flags.opts.Resolve.Packages)

	// flags override config
	flags, err = parseGenerateFlags([]string{"--out", "elsewhere"})
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", flags.outDir)
}

// TestLoadProjectConfigMissing returns nil without error.
func TestLoadProjectConfigMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadProjectConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
