package bundler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

// memoryHooks builds resolve/load hooks over an in-memory module map.
// Specifiers resolve by exact key; anything absent is external.
func memoryHooks(files map[string]string) (ResolveFunc, LoadFunc) {
	resolve := func(specifier, importer string) (ResolveResult, error) {
		key := strings.TrimPrefix(specifier, "./")
		for _, candidate := range []string{key, key + ".ts"} {
			if _, ok := files[candidate]; ok {
				return ResolveResult{Path: candidate}, nil
			}
		}
		return ResolveResult{Path: specifier, External: true}, nil
	}
	load := func(path string) (string, error) {
		code, ok := files[path]
		if !ok {
			return "", fmt.Errorf("no such module: %s", path)
		}
		return code, nil
	}
	return resolve, load
}

func bundleFiles(t *testing.T, files map[string]string, entries []string, splitting bool) []OutputFile {
	t.Helper()
	pm := parser.NewManager(nil)
	t.Cleanup(func() { pm.Close() })

	resolve, load := memoryHooks(files)
	outputs, err := Bundle(context.Background(), Options{
		Entries:   entries,
		Resolve:   resolve,
		Load:      load,
		Splitting: splitting,
		Parsers:   pm,
	})
	require.NoError(t, err)
	return outputs
}

func outputByKind(outputs []OutputFile, kind OutputKind) *OutputFile {
	for i := range outputs {
		if outputs[i].Kind == kind {
			return &outputs[i]
		}
	}
	return nil
}

// TestBundleInlinesImportChain verifies cross-module references collapse
// into one output with the import edge gone.
func TestBundleInlinesImportChain(t *testing.T) {
	files := map[string]string{
		"index.ts": `import { User } from "./models";
var Ref = ["type Ref = ", User, "[]"];
export { Ref };
`,
		"models.ts": `var User = ["interface ", User, " { id: number }"];
export { User };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)

	text := outputs[0].Text
	t.Logf("bundled:\n%s", text)
	assert.Equal(t, KindEntryPoint, outputs[0].Kind)
	assert.Contains(t, text, "var User = [")
	assert.Contains(t, text, "var Ref = [")
	assert.Contains(t, text, "export { Ref };")
	assert.NotContains(t, text, `from "./models"`, "internal imports must be inlined")
}

// TestBundleTreeShakes drops statements unreachable from entry exports.
func TestBundleTreeShakes(t *testing.T) {
	files := map[string]string{
		"index.ts": `import { Used } from "./lib";
var Keep = ["type Keep = ", Used];
export { Keep };
`,
		"lib.ts": `var Used = ["interface ", Used, " {}"];
var Dead = ["interface ", Dead, " {}"];
export { Used };
export { Dead };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Text, "var Used")
	assert.NotContains(t, outputs[0].Text, "Dead")
}

// TestBundleCollisionRename gives the second same-named symbol a numbered
// name and rewrites its references.
func TestBundleCollisionRename(t *testing.T) {
	files := map[string]string{
		"index.ts": `import { User } from "./a";
import { User as BUser } from "./b";
var Pair = ["type Pair = [", User, ", ", BUser, "]"];
export { Pair };
`,
		"a.ts": `var User = ["interface ", User, " { a: 1 }"];
export { User };
`,
		"b.ts": `var User = ["interface ", User, " { b: 2 }"];
export { User };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)
	text := outputs[0].Text
	t.Logf("bundled:\n%s", text)

	assert.Contains(t, text, "var User = [")
	assert.Contains(t, text, "var User2 = [")
	pairLine := lineWith(text, "var Pair")
	assert.Contains(t, pairLine, "User2", "reference to the renamed symbol must follow")
}

// TestBundleExternalImportsPreserved keeps policy-external modules as
// imports.
func TestBundleExternalImportsPreserved(t *testing.T) {
	files := map[string]string{
		"index.ts": `import { Buffer } from "node:buffer";
var B = ["type B = ", Buffer];
export { B };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Text, `import { Buffer } from "node:buffer";`)
}

// TestBundleNamespaceSynthesis materialises an inlined namespace import as
// the NS shim plus an export alias edge.
func TestBundleNamespaceSynthesis(t *testing.T) {
	files := map[string]string{
		"index.ts": `import * as schema from "./schema";
var f = ["declare function f(): typeof ", schema, ";"];
export { f };
`,
		"schema.ts": `var User = ["interface ", User, " { id: number }"];
export { User };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)
	text := outputs[0].Text
	t.Logf("bundled:\n%s", text)

	assert.Contains(t, text, "NS(exports_schema, { User: () => User });")
	assert.Contains(t, text, "exports_schema as schema")
	fLine := lineWith(text, "var f")
	assert.Contains(t, fLine, "exports_schema", "namespace reads rewrite to the synthetic local")
	assert.Contains(t, text, "var User = [")
}

// TestBundleReExportChain resolves re-exports through intermediate
// modules.
func TestBundleReExportChain(t *testing.T) {
	files := map[string]string{
		"index.ts": `export { User } from "./middle";
`,
		"middle.ts": `export { User } from "./models";
`,
		"models.ts": `var User = ["interface ", User, " {}"];
export { User };
`,
	}
	outputs := bundleFiles(t, files, []string{"index.ts"}, false)
	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Text, "var User = [")
	assert.Contains(t, outputs[0].Text, "export { User };")
}

// TestBundleSplittingSharedChunk moves statements reachable from both
// entries into a chunk both import.
func TestBundleSplittingSharedChunk(t *testing.T) {
	files := map[string]string{
		"a.ts": `import { Shared } from "./shared";
var A = ["type A = ", Shared];
export { A };
`,
		"b.ts": `import { Shared } from "./shared";
var B = ["type B = ", Shared];
export { B };
`,
		"shared.ts": `var Shared = ["interface ", Shared, " {}"];
export { Shared };
`,
	}
	outputs := bundleFiles(t, files, []string{"a.ts", "b.ts"}, true)
	require.Len(t, outputs, 3, "two entries plus one chunk")

	chunk := outputByKind(outputs, KindChunk)
	require.NotNil(t, chunk)
	assert.Contains(t, chunk.Text, "var Shared = [")
	assert.Contains(t, chunk.Text, "export { Shared };")
	assert.True(t, strings.HasPrefix(chunk.Path, "chunk-"))

	for _, out := range outputs {
		if out.Kind != KindEntryPoint {
			continue
		}
		assert.NotContains(t, out.Text, "var Shared = [", "shared decl lives only in the chunk")
		assert.Contains(t, out.Text, "import { Shared } from \"./"+chunk.Path+"\";")
	}
}

// TestBundleWithoutSplittingDuplicates keeps shared statements in both
// entries when splitting is off.
func TestBundleWithoutSplittingDuplicates(t *testing.T) {
	files := map[string]string{
		"a.ts": `import { Shared } from "./shared";
var A = ["type A = ", Shared];
export { A };
`,
		"b.ts": `import { Shared } from "./shared";
var B = ["type B = ", Shared];
export { B };
`,
		"shared.ts": `var Shared = ["interface ", Shared, " {}"];
export { Shared };
`,
	}
	outputs := bundleFiles(t, files, []string{"a.ts", "b.ts"}, false)
	require.Len(t, outputs, 2)
	for _, out := range outputs {
		assert.Contains(t, out.Text, "var Shared = [")
	}
}

// TestBundleLoadFailureIsFatal surfaces hook failures verbatim.
func TestBundleLoadFailureIsFatal(t *testing.T) {
	pm := parser.NewManager(nil)
	t.Cleanup(func() { pm.Close() })

	resolve, _ := memoryHooks(map[string]string{"index.ts": ""})
	_, err := Bundle(context.Background(), Options{
		Entries: []string{"index.ts"},
		Resolve: resolve,
		Load: func(path string) (string, error) {
			return "", fmt.Errorf("disk on fire")
		},
		Parsers: pm,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

// lineWith returns the first line containing needle.
func lineWith(text, needle string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	return ""
}
