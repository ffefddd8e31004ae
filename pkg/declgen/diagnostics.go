package declgen

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Diagnostic is one isolated-declaration emission problem. Diagnostics are
// collected per file and surfaced to the caller; they never halt bundling.
type Diagnostic struct {
	// File is the source file the diagnostic belongs to.
	File string

	// Line and Column are 1-based.
	Line   uint32
	Column uint32

	// Message describes the problem and its remediation.
	Message string
}

// String renders the diagnostic in file:line:column form.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// diagnosticAt builds a Diagnostic pointing at node.
func diagnosticAt(file string, node *ts.Node, format string, args ...any) Diagnostic {
	pos := node.StartPosition()
	return Diagnostic{
		File:    file,
		Line:    uint32(pos.Row + 1),
		Column:  uint32(pos.Column + 1),
		Message: fmt.Sprintf(format, args...),
	}
}
