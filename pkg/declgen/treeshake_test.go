package declgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTreeShakeDropsUnreachable removes statements no export reaches.
func TestTreeShakeDropsUnreachable(t *testing.T) {
	e := newEmitter(t)

	decl := `interface Keep { used: Helper }
interface Helper { x: number }
interface Dead { y: number }
export { Keep };`
	result, err := e.TreeShake(decl)
	require.NoError(t, err)

	assert.Contains(t, result.Code, "interface Keep")
	assert.Contains(t, result.Code, "interface Helper", "transitive references stay")
	assert.NotContains(t, result.Code, "Dead")
	assert.Contains(t, result.Code, "export { Keep };")
}

// TestTreeShakeEmptyWithoutExports yields no code for a chunk whose types
// nothing exports — the driver drops such chunks silently.
func TestTreeShakeEmptyWithoutExports(t *testing.T) {
	e := newEmitter(t)

	result, err := e.TreeShake("interface Orphan { x: number }\ntype Gone = Orphan;")
	require.NoError(t, err)
	assert.Empty(t, result.Code)
	assert.Empty(t, result.Diagnostics)
}

// TestTreeShakeKeepsUsedImports keeps imports only while a kept statement
// uses one of their bindings.
func TestTreeShakeKeepsUsedImports(t *testing.T) {
	e := newEmitter(t)

	decl := `import { Used } from "./used";
import { Unused } from "./unused";
type Wrap = Used;
export { Wrap };`
	result, err := e.TreeShake(decl)
	require.NoError(t, err)

	assert.Contains(t, result.Code, `import { Used } from "./used";`)
	assert.NotContains(t, result.Code, "unused")
}

// TestTreeShakeExportedDeclaration treats `export <decl>` as a root.
func TestTreeShakeExportedDeclaration(t *testing.T) {
	e := newEmitter(t)

	decl := `interface Dep { x: number }
export interface Root { dep: Dep }
interface Island {}`
	result, err := e.TreeShake(decl)
	require.NoError(t, err)

	assert.Contains(t, result.Code, "export interface Root")
	assert.Contains(t, result.Code, "interface Dep")
	assert.NotContains(t, result.Code, "Island")
}

// TestTreeShakeNormalisesAmbient prefixes declare on bare reconstructed
// statements.
func TestTreeShakeNormalisesAmbient(t *testing.T) {
	e := newEmitter(t)

	decl := `function var0(): number;
export { var0 as default };`
	result, err := e.TreeShake(decl)
	require.NoError(t, err)
	assert.Contains(t, result.Code, "declare function var0(): number;")
}

// TestTreeShakeNamespaceBlock keeps a referenced namespace and its members.
func TestTreeShakeNamespaceBlock(t *testing.T) {
	e := newEmitter(t)

	decl := `interface User { id: number }
declare namespace schema {
  export { User };
}
declare function f(): typeof schema;
export { f, schema };`
	result, err := e.TreeShake(decl)
	require.NoError(t, err)

	assert.Contains(t, result.Code, "declare namespace schema")
	assert.Contains(t, result.Code, "interface User")
	assert.Contains(t, result.Code, "declare function f(): typeof schema;")
}
