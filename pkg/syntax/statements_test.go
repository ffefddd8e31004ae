package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

// parseStatements parses src as TypeScript and returns the top-level
// non-comment statement nodes plus the tree (caller closes it).
func parseStatements(t *testing.T, src string) ([]*ts.Node, *ts.Tree, []byte) {
	t.Helper()
	pm := parser.NewManager(nil)
	t.Cleanup(func() { pm.Close() })

	source := []byte(src)
	tree, err := pm.Parse(source, parser.LanguageTypeScript, false)
	require.NoError(t, err)

	root := tree.RootNode()
	var stmts []*ts.Node
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		if child.Kind() != KindComment {
			stmts = append(stmts, child)
		}
	}
	return stmts, tree, source
}

// TestStatementPredicates classifies the import/export flavours.
func TestStatementPredicates(t *testing.T) {
	src := `import "./polyfill";
import { a } from "./a";
export * from "./b";
export { c } from "./c";
export { d };
export interface E {}
declare const d: number;
`
	stmts, tree, _ := parseStatements(t, src)
	defer tree.Close()
	require.Len(t, stmts, 7)

	assert.True(t, IsSideEffectImport(stmts[0]))
	assert.True(t, IsImport(stmts[0]))

	assert.True(t, IsImport(stmts[1]))
	assert.False(t, IsSideEffectImport(stmts[1]))

	assert.True(t, IsExportAll(stmts[2]))
	assert.False(t, IsReExport(stmts[2]))

	assert.True(t, IsReExport(stmts[3]))
	assert.True(t, IsReExport(stmts[4]))

	assert.True(t, HasExportModifier(stmts[5]))
	assert.False(t, IsReExport(stmts[5]))

	assert.False(t, IsExportStatement(stmts[6]))
}

// TestGetName extracts declared names across declaration kinds.
func TestGetName(t *testing.T) {
	src := `interface Foo {}
type Bar = string;
declare class Baz {}
enum Color { Red }
declare function greet(name: string): void;
declare const answer: number;
declare namespace utils {}
export interface Exported {}
const a: number = 1, b: number = 2;
`
	stmts, tree, source := parseStatements(t, src)
	defer tree.Close()
	require.Len(t, stmts, 9)

	assert.Equal(t, "Foo", GetName(stmts[0], source))
	assert.Equal(t, "Bar", GetName(stmts[1], source))
	assert.Equal(t, "Baz", GetName(stmts[2], source))
	assert.Equal(t, "Color", GetName(stmts[3], source))
	assert.Equal(t, "greet", GetName(stmts[4], source))
	assert.Equal(t, "answer", GetName(stmts[5], source))
	assert.Equal(t, "utils", GetName(stmts[6], source))
	assert.Equal(t, "Exported", GetName(stmts[7], source))
	assert.Equal(t, "", GetName(stmts[8], source), "two declarators have no single name")
}

// TestImportedLocals collects every binding an import introduces.
func TestImportedLocals(t *testing.T) {
	src := `import Def, { named, other as alias } from "./a";
import * as ns from "./b";
`
	stmts, tree, source := parseStatements(t, src)
	defer tree.Close()
	require.Len(t, stmts, 2)

	locals := ImportedLocals(stmts[0], source)
	assert.ElementsMatch(t, []string{"Def", "named", "alias"}, locals)

	locals = ImportedLocals(stmts[1], source)
	assert.ElementsMatch(t, []string{"ns"}, locals)
}

// TestModuleSource unquotes specifiers.
func TestModuleSource(t *testing.T) {
	stmts, tree, source := parseStatements(t, `import { a } from "./a";`)
	defer tree.Close()
	assert.Equal(t, "./a", ModuleSource(stmts[0], source))
}

// TestLeadingComments serialises the attached comment run.
func TestLeadingComments(t *testing.T) {
	src := `// first
/** doc */
interface Foo {}
interface Bar {}
`
	stmts, tree, source := parseStatements(t, src)
	defer tree.Close()
	require.Len(t, stmts, 2)

	comments := LeadingComments(stmts[0], source)
	assert.Contains(t, comments, "// first")
	assert.Contains(t, comments, "/** doc */")

	assert.Equal(t, "", LeadingComments(stmts[1], source))
}

// TestDefaultExportShapes classifies default exports.
func TestDefaultExportShapes(t *testing.T) {
	src := `export default function(): number;
`
	stmts, tree, _ := parseStatements(t, src)
	defer tree.Close()
	require.NotEmpty(t, stmts)
	assert.True(t, HasDefaultExportModifier(stmts[0]))

	src2 := `declare const impl: number;
export default impl;
`
	stmts2, tree2, _ := parseStatements(t, src2)
	defer tree2.Close()
	require.Len(t, stmts2, 2)
	assert.True(t, HasDefaultExportModifier(stmts2[1]))
	assert.True(t, IsDefaultReExport(stmts2[1]))
}
