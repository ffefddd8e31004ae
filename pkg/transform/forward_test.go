package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/dtsbundle/pkg/parser"
)

func newTransforms(t *testing.T) (*Forward, *Reverse) {
	t.Helper()
	pm := parser.NewManager(nil)
	t.Cleanup(func() { pm.Close() })
	return NewForward(pm, nil), NewReverse(pm, nil)
}

// benchTransforms is the benchmark variant; the caller closes the manager.
func benchTransforms(b *testing.B) (*parser.Manager, *Forward, *Reverse) {
	b.Helper()
	pm := parser.NewManager(nil)
	return pm, NewForward(pm, nil), NewReverse(pm, nil)
}

// TestForwardSingleInterface covers the canonical single-declaration shape:
// a token array plus a real export statement.
func TestForwardSingleInterface(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform("export interface User { id: number; name: string }")
	require.NoError(t, err)

	assert.Contains(t, out, "var User = [")
	assert.Contains(t, out, "export { User };")
	assert.Contains(t, out, `"interface `, "keyword text must be a string token")
	assert.NotContains(t, out, "export interface", "export syntax must be stripped from the body")
	t.Logf("fake-JS:\n%s", out)
}

// TestForwardCrossReference verifies referenced declaration names become
// bare identifier tokens.
func TestForwardCrossReference(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform("interface Role {}\nexport interface User { role: Role }")
	require.NoError(t, err)

	assert.Contains(t, out, "var Role = [")
	assert.Contains(t, out, "var User = [")
	// the Role reference inside User must be an identifier element, not a
	// quoted string
	userLine := lineContaining(out, "var User")
	assert.Contains(t, userLine, ", Role,")
	assert.Contains(t, out, "export { User };")
	assert.NotContains(t, out, "export { Role };", "unexported declarations get no export")
}

// TestForwardImportsJsified verifies type-only modifiers are erased while
// the module-graph edge survives.
func TestForwardImportsJsified(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform(`import type { Base } from "./base";
export interface Child extends Base {}`)
	require.NoError(t, err)

	assert.Contains(t, out, `import { Base } from "./base";`)
	assert.NotContains(t, out, "import type")
	childLine := lineContaining(out, "var Child")
	assert.Contains(t, childLine, "Base", "imported name must stay referenced")
}

// TestForwardSideEffectImportDropped verifies zero-specifier imports
// contribute nothing.
func TestForwardSideEffectImportDropped(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform(`import "./polyfill";
export interface A {}`)
	require.NoError(t, err)
	assert.NotContains(t, out, "polyfill")
}

// TestForwardUnnamedDefault verifies the synthesised name flows into both
// the declaration body and the default re-export.
func TestForwardUnnamedDefault(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform("export default function(): number;")
	require.NoError(t, err)

	assert.Contains(t, out, "var var0 = [")
	assert.Contains(t, out, "export { var0 as default };")
	assert.NotContains(t, out, "export default")
}

// TestForwardDefaultReExport verifies `export default X` collapses into the
// clause alone.
func TestForwardDefaultReExport(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform("declare const impl: number;\nexport default impl;")
	require.NoError(t, err)

	assert.Contains(t, out, "export { impl as default };")
	assert.Contains(t, out, "var impl = [")
}

// TestForwardLeadingCommentsPreserved verifies JSDoc rides along inside the
// token array.
func TestForwardLeadingCommentsPreserved(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform("/** A user. */\nexport interface User { id: number }")
	require.NoError(t, err)
	assert.Contains(t, out, "A user.")
}

// TestForwardReExportVerbatim verifies re-exports and export-alls pass
// through as real statements.
func TestForwardReExportVerbatim(t *testing.T) {
	fwd, _ := newTransforms(t)

	out, err := fwd.Transform(`export { User } from "./models";
export * from "./helpers";`)
	require.NoError(t, err)
	assert.Contains(t, out, `export { User } from "./models";`)
	assert.Contains(t, out, `export * from "./helpers";`)
}

// TestForwardIsolatedState verifies concurrent invocations share no state.
func TestForwardIsolatedState(t *testing.T) {
	fwd, _ := newTransforms(t)

	done := make(chan error, 16)
	for i := 0; i < 16; i++ {
		go func() {
			_, err := fwd.Transform("export interface User { id: number }")
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-done)
	}
}

// lineContaining returns the first output line containing needle.
func lineContaining(out, needle string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	return ""
}
