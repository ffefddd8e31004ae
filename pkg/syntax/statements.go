package syntax

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Node kinds produced by the tree-sitter TypeScript and JavaScript grammars
// for the statement shapes the transforms care about.
const (
	KindImport        = "import_statement"
	KindExport        = "export_statement"
	KindExprStatement = "expression_statement"
	KindComment       = "comment"
	KindAmbient       = "ambient_declaration"
)

// IsImport reports whether node is an import statement.
func IsImport(node *ts.Node) bool {
	return node.Kind() == KindImport
}

// IsExportStatement reports whether node is any flavour of export statement
// (clause, re-export, export-all, or `export <decl>`).
func IsExportStatement(node *ts.Node) bool {
	return node.Kind() == KindExport
}

// IsSideEffectImport reports whether node is an import with no specifiers
// (`import "./polyfill"`). Declarations have no runtime side effects, so
// these are dropped by the forward transform.
func IsSideEffectImport(node *ts.Node) bool {
	if !IsImport(node) {
		return false
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if node.NamedChild(i).Kind() == "import_clause" {
			return false
		}
	}
	return true
}

// IsExportAll reports whether node is `export * from …` or
// `export * as ns from …`.
func IsExportAll(node *ts.Node) bool {
	if !IsExportStatement(node) {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		switch node.Child(i).Kind() {
		case "*", "namespace_export":
			return true
		}
	}
	return false
}

// IsReExport reports whether node is a named export with no local
// declaration: `export { A }` or `export { A } from "./m"`.
func IsReExport(node *ts.Node) bool {
	if !IsExportStatement(node) {
		return false
	}
	if node.ChildByFieldName("declaration") != nil {
		return false
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if node.NamedChild(i).Kind() == "export_clause" {
			return true
		}
	}
	return false
}

// HasExportModifier reports whether node is `export <declaration>`.
func HasExportModifier(node *ts.Node) bool {
	return IsExportStatement(node) && node.ChildByFieldName("declaration") != nil
}

// HasDefaultExportModifier reports whether node is a default export of any
// shape (`export default <decl>` or `export default <expr>`).
func HasDefaultExportModifier(node *ts.Node) bool {
	if !IsExportStatement(node) {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if node.Child(i).Kind() == "default" {
			return true
		}
	}
	return false
}

// IsUnnamedDefaultExport reports whether node default-exports a function or
// class declaration that carries no name of its own.
func IsUnnamedDefaultExport(node *ts.Node) bool {
	if !HasDefaultExportModifier(node) {
		return false
	}
	decl := exportedDeclaration(node)
	if decl == nil {
		return false
	}
	switch decl.Kind() {
	case "function_declaration", "function_signature", "class_declaration",
		"abstract_class_declaration", "function_expression", "class":
		return decl.ChildByFieldName("name") == nil
	}
	return false
}

// IsDefaultReExport reports whether node is `export default SomeIdentifier`,
// a default export of a plain identifier reference.
func IsDefaultReExport(node *ts.Node) bool {
	if !HasDefaultExportModifier(node) {
		return false
	}
	if value := node.ChildByFieldName("value"); value != nil {
		return value.Kind() == "identifier"
	}
	return false
}

// exportedDeclaration returns the declaration or value node attached to an
// export statement, unwrapping nothing else.
func exportedDeclaration(node *ts.Node) *ts.Node {
	if decl := node.ChildByFieldName("declaration"); decl != nil {
		return decl
	}
	return node.ChildByFieldName("value")
}

// GetName extracts the single declared identifier of a declaration-bearing
// statement. Export statements and `declare` wrappers are unwrapped first.
// Variable statements only yield a name when there is exactly one declarator
// binding a plain identifier. Returns "" for any form without one obvious
// name.
func GetName(node *ts.Node, source []byte) string {
	switch node.Kind() {
	case KindExport:
		if decl := exportedDeclaration(node); decl != nil {
			return GetName(decl, source)
		}
		return ""
	case KindAmbient:
		// declare wraps a single inner declaration
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() == KindComment {
				continue
			}
			return GetName(child, source)
		}
		return ""
	case "interface_declaration", "type_alias_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration", "function_declaration",
		"function_signature", "generator_function_declaration",
		"module", "internal_module":
		if name := node.ChildByFieldName("name"); name != nil {
			switch name.Kind() {
			case "identifier", "type_identifier":
				return name.Utf8Text(source)
			}
		}
		return ""
	case "lexical_declaration", "variable_declaration":
		var declared string
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if child.Kind() != "variable_declarator" {
				continue
			}
			if declared != "" {
				return "" // more than one declarator
			}
			name := child.ChildByFieldName("name")
			if name == nil || name.Kind() != "identifier" {
				return ""
			}
			declared = name.Utf8Text(source)
		}
		return declared
	}
	return ""
}

// ImportedLocals returns every local binding introduced by an import
// statement: the default specifier, each named specifier's local name, and a
// namespace specifier.
func ImportedLocals(node *ts.Node, source []byte) []string {
	var locals []string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		clause := node.NamedChild(i)
		if clause.Kind() != "import_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			child := clause.NamedChild(j)
			switch child.Kind() {
			case "identifier":
				locals = append(locals, child.Utf8Text(source))
			case "namespace_import":
				for k := uint(0); k < child.NamedChildCount(); k++ {
					if id := child.NamedChild(k); id.Kind() == "identifier" {
						locals = append(locals, id.Utf8Text(source))
					}
				}
			case "named_imports":
				for k := uint(0); k < child.NamedChildCount(); k++ {
					spec := child.NamedChild(k)
					if spec.Kind() != "import_specifier" {
						continue
					}
					// the alias is the local binding when present
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						locals = append(locals, alias.Utf8Text(source))
					} else if name := spec.ChildByFieldName("name"); name != nil {
						locals = append(locals, name.Utf8Text(source))
					}
				}
			}
		}
	}
	return locals
}

// ModuleSource returns the unquoted module specifier of an import, re-export
// or export-all statement, or "" when the statement has none.
func ModuleSource(node *ts.Node, source []byte) string {
	src := node.ChildByFieldName("source")
	if src == nil {
		return ""
	}
	return UnquoteString(src, source)
}

// UnquoteString returns the cooked text of a string node by concatenating
// its fragments, so surrounding quotes are dropped without touching escapes.
func UnquoteString(node *ts.Node, source []byte) string {
	var sb strings.Builder
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "string_fragment":
			sb.WriteString(child.Utf8Text(source))
		case "escape_sequence":
			sb.WriteString(unescapeSequence(child.Utf8Text(source)))
		}
	}
	return sb.String()
}

// unescapeSequence cooks the escape sequences that occur in module
// specifiers and object keys. Anything unrecognised is kept verbatim minus
// the backslash.
func unescapeSequence(seq string) string {
	if len(seq) < 2 || seq[0] != '\\' {
		return seq
	}
	switch seq[1] {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '\'', '"', '`':
		return seq[1:]
	}
	return seq[1:]
}

// LeadingComments collects the run of comment nodes immediately preceding
// node among its siblings and serialises them back to source text, one per
// line. This carries JSDoc and `@` directives through the bundle.
func LeadingComments(node *ts.Node, source []byte) string {
	var comments []string
	for prev := node.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if prev.Kind() != KindComment {
			break
		}
		comments = append(comments, prev.Utf8Text(source))
	}
	if len(comments) == 0 {
		return ""
	}
	// collected innermost-first; restore source order
	var sb strings.Builder
	for i := len(comments) - 1; i >= 0; i-- {
		sb.WriteString(comments[i])
		sb.WriteString("\n")
	}
	return sb.String()
}

// StatementText slices a statement's original text by byte span.
func StatementText(node *ts.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
