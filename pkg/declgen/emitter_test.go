package declgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

func newEmitter(t *testing.T) *Emitter {
	t.Helper()
	pm := parser.NewManager(nil)
	t.Cleanup(func() { pm.Close() })
	return NewEmitter(pm, nil)
}

// TestEmitFunction strips bodies and keeps explicit annotations.
func TestEmitFunction(t *testing.T) {
	e := newEmitter(t)

	result, err := e.Emit("math.ts", []byte(
		"export function add(a: number, b: number): number { return a + b }"))
	require.NoError(t, err)
	assert.Empty(t, result.Diagnostics)
	assert.Contains(t, result.Code, "export declare function add(a: number, b: number): number;")
	assert.NotContains(t, result.Code, "return")
}

// TestEmitMissingReturnType produces a diagnostic and a conservative type.
func TestEmitMissingReturnType(t *testing.T) {
	e := newEmitter(t)

	result, err := e.Emit("math.ts", []byte(
		"export function mystery(a: number) { return a }"))
	require.NoError(t, err)
	require.NotEmpty(t, result.Diagnostics, "missing return type must be diagnosed")
	assert.Contains(t, result.Diagnostics[0].Message, "return type")
	assert.Equal(t, "math.ts", result.Diagnostics[0].File)
	assert.Contains(t, result.Code, ": unknown;", "partial declaration is still emitted")
}

// TestEmitInterfacesAndTypesVerbatim passes type-level statements through.
func TestEmitInterfacesAndTypesVerbatim(t *testing.T) {
	e := newEmitter(t)

	src := `export interface User { id: number }
export type Users = User[];`
	result, err := e.Emit("models.ts", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, result.Code, "export interface User { id: number }")
	assert.Contains(t, result.Code, "export type Users = User[];")
}

// TestEmitConstLiteralInference infers trivially typed initialisers.
func TestEmitConstLiteralInference(t *testing.T) {
	e := newEmitter(t)

	src := `export const version = "1.2.3";
export const limit = 100;
export const enabled = true;
export const handler = (x: number): string => String(x);
export const opaque = compute();`
	result, err := e.Emit("consts.ts", []byte(src))
	require.NoError(t, err)

	assert.Contains(t, result.Code, `export declare const version: "1.2.3";`)
	assert.Contains(t, result.Code, "export declare const limit: 100;")
	assert.Contains(t, result.Code, "export declare const enabled: true;")
	assert.Contains(t, result.Code, "export declare const handler: (x: number) => string;")
	assert.Contains(t, result.Code, "export declare const opaque: unknown;")
	require.Len(t, result.Diagnostics, 1, "only the uninferable initialiser is diagnosed")
	assert.Contains(t, result.Diagnostics[0].Message, "opaque")
}

// TestEmitClassSurface keeps typed members, drops bodies and private
// members.
func TestEmitClassSurface(t *testing.T) {
	e := newEmitter(t)

	src := `export class Service {
  readonly name: string = "svc";
  private secret: string = "";
  greet(who: string): string { return "hi " + who }
}`
	result, err := e.Emit("service.ts", []byte(src))
	require.NoError(t, err)
	t.Logf("emitted:\n%s", result.Code)

	assert.Contains(t, result.Code, "export declare class Service {")
	assert.Contains(t, result.Code, "readonly name: string;")
	assert.Contains(t, result.Code, "greet(who: string): string;")
	assert.NotContains(t, result.Code, "secret")
	assert.NotContains(t, result.Code, "return")
}

// TestEmitImportsAndExportsKept keeps module-graph statements verbatim,
// including type-only ones (the forward transform erases those later).
func TestEmitImportsAndExportsKept(t *testing.T) {
	e := newEmitter(t)

	src := `import type { Base } from "./base";
export { Base };
export * from "./helpers";
export interface Child extends Base {}`
	result, err := e.Emit("child.ts", []byte(src))
	require.NoError(t, err)
	assert.Contains(t, result.Code, `import type { Base } from "./base";`)
	assert.Contains(t, result.Code, "export { Base };")
	assert.Contains(t, result.Code, `export * from "./helpers";`)
}

// TestEmitDeclarationFilePassthrough returns .d.ts input verbatim.
func TestEmitDeclarationFilePassthrough(t *testing.T) {
	e := newEmitter(t)

	src := "declare const x: number;\nexport { x };\n"
	result, err := e.Emit("types.d.ts", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, result.Code)
	assert.Empty(t, result.Diagnostics)
}

// TestEmitRuntimeStatementsDropped skips expression statements.
func TestEmitRuntimeStatementsDropped(t *testing.T) {
	e := newEmitter(t)

	result, err := e.Emit("main.ts", []byte(`console.log("boot");
export const tag = "main";`))
	require.NoError(t, err)
	assert.NotContains(t, result.Code, "console")
	assert.Contains(t, result.Code, `export declare const tag: "main";`)
}

// TestEmitPreservesLeadingComments carries JSDoc into the declaration.
func TestEmitPreservesLeadingComments(t *testing.T) {
	e := newEmitter(t)

	result, err := e.Emit("doc.ts", []byte(
		"/** Adds numbers. */\nexport function add(a: number, b: number): number { return a + b }"))
	require.NoError(t, err)
	assert.Contains(t, result.Code, "/** Adds numbers. */")
}
