package transform

import (
	"fmt"
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/codec"
	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/syntax"
)

// namespaceLocalPrefix is the name pattern the bundler uses for synthetic
// namespace locals. It leaks into the reverse transform on purpose: any
// bundler this core composes with must replicate it.
const namespaceLocalPrefix = "exports_"

// Reverse converts one bundled fake-JS module back into declaration text.
//
// Its only state is the namespace alias map, built once up-front and
// read-only during the main pass.
type Reverse struct {
	parsers *parser.Manager
	logger  *slog.Logger
}

// NewReverse creates a reverse transformer. Logger may be nil.
func NewReverse(parsers *parser.Manager, logger *slog.Logger) *Reverse {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reverse{parsers: parsers, logger: logger}
}

// Transform parses bundled fake-JS and reconstructs a declaration module:
// token arrays concatenate back into declaration text, namespace-synthesis
// calls become `declare namespace` blocks, and bundler rename edges become
// type aliases.
func (r *Reverse) Transform(bundledJS string) (string, error) {
	source := []byte(bundledJS)
	tree, err := r.parsers.Parse(source, parser.LanguageJavaScript, false)
	if err != nil {
		return "", fmt.Errorf("failed to parse bundled output: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	aliases := buildAliasMap(root, source)

	var fragments []string
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Kind() {
		case syntax.KindImport:
			fragments = append(fragments, rewriteImport(stmt, source))
		case syntax.KindExport:
			if frag := rewriteExport(stmt, source, aliases); frag != "" {
				fragments = append(fragments, frag)
			}
		case syntax.KindExprStatement:
			if frag := namespaceFromSynthesis(stmt, source, aliases); frag != "" {
				fragments = append(fragments, frag)
			}
		case "variable_declaration", "lexical_declaration":
			fragments = append(fragments, declarationsFromVar(stmt, source, aliases)...)
		}
	}
	return strings.Join(fragments, "\n"), nil
}

// buildAliasMap recovers the user-facing name of every bundler-synthesised
// namespace local: each `import * as L from 'S'` maps L to itself, then each
// `export { E1 as E2 }` with a synthetic E1 maps E1 to E2.
func buildAliasMap(root *ts.Node, source []byte) map[string]string {
	aliases := make(map[string]string)
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() != syntax.KindImport {
			continue
		}
		for _, local := range syntax.ImportedLocals(stmt, source) {
			aliases[local] = local
		}
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() != syntax.KindExport {
			continue
		}
		forEachExportSpecifier(stmt, func(spec *ts.Node) {
			name := spec.ChildByFieldName("name")
			alias := spec.ChildByFieldName("alias")
			if name == nil || alias == nil {
				return
			}
			local := name.Utf8Text(source)
			if strings.HasPrefix(local, namespaceLocalPrefix) {
				aliases[local] = alias.Utf8Text(source)
			}
		})
	}
	return aliases
}

// forEachExportSpecifier visits the export_specifier nodes of an export
// clause, if the statement has one.
func forEachExportSpecifier(stmt *ts.Node, fn func(spec *ts.Node)) {
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		clause := stmt.NamedChild(i)
		if clause.Kind() != "export_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			if spec := clause.NamedChild(j); spec.Kind() == "export_specifier" {
				fn(spec)
			}
		}
	}
}

// remap resolves a bundled identifier through the alias map.
func remap(aliases map[string]string, name string) string {
	if mapped, ok := aliases[name]; ok {
		return mapped
	}
	return name
}

// rewriteImport emits an import verbatim except for stripping the runtime
// JS extension from the module specifier: declaration consumers expect
// extensionless or .d.* specifiers when chunks carry runtime extensions.
func rewriteImport(stmt *ts.Node, source []byte) string {
	text := syntax.StatementText(stmt, source)
	src := stmt.ChildByFieldName("source")
	if src == nil {
		return text
	}
	spec := syntax.UnquoteString(src, source)
	stripped := syntax.StripJSExtension(spec)
	if stripped == spec {
		return text
	}
	start := int(src.StartByte() - stmt.StartByte())
	end := int(src.EndByte() - stmt.StartByte())
	return text[:start] + quoteJS(stripped) + text[end:]
}

// rewriteExport emits a re-export or export-all, resolving synthetic
// namespace locals in its specifiers through the alias map. Exports that are
// neither (an `export <decl>` never appears in bundled fake-JS) pass through
// untouched.
func rewriteExport(stmt *ts.Node, source []byte, aliases map[string]string) string {
	text := syntax.StatementText(stmt, source)

	type splice struct {
		start, end int
		repl       string
	}
	var splices []splice

	forEachExportSpecifier(stmt, func(spec *ts.Node) {
		name := spec.ChildByFieldName("name")
		if name == nil {
			return
		}
		local := name.Utf8Text(source)
		if !strings.HasPrefix(local, namespaceLocalPrefix) {
			return
		}
		exported := local
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			exported = alias.Utf8Text(source)
		}
		resolved := remap(aliases, local)
		repl := exported
		if resolved != exported {
			repl = resolved + " as " + exported
		}
		splices = append(splices, splice{
			start: int(spec.StartByte() - stmt.StartByte()),
			end:   int(spec.EndByte() - stmt.StartByte()),
			repl:  repl,
		})
	})

	if src := stmt.ChildByFieldName("source"); src != nil {
		spec := syntax.UnquoteString(src, source)
		if stripped := syntax.StripJSExtension(spec); stripped != spec {
			splices = append(splices, splice{
				start: int(src.StartByte() - stmt.StartByte()),
				end:   int(src.EndByte() - stmt.StartByte()),
				repl:  quoteJS(stripped),
			})
		}
	}

	for i := len(splices) - 1; i >= 0; i-- {
		s := splices[i]
		text = text[:s.start] + s.repl + text[s.end:]
	}
	return text
}

// namespaceFromSynthesis recognises the bundler's namespace-synthesis shim
// `NS(id, { k: () => v, … });` and reconstructs the namespace declaration.
// Properties whose value is not an identifier-bodied arrow are skipped; a
// call with no eligible properties is dropped.
func namespaceFromSynthesis(stmt *ts.Node, source []byte, aliases map[string]string) string {
	call := stmt.NamedChild(0)
	if call == nil || call.Kind() != "call_expression" {
		return ""
	}
	callee := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if callee == nil || callee.Kind() != "identifier" || args == nil {
		return ""
	}

	var id, obj *ts.Node
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch {
		case id == nil && arg.Kind() == "identifier":
			id = arg
		case id != nil && obj == nil && arg.Kind() == "object":
			obj = arg
		}
	}
	if id == nil || obj == nil {
		return ""
	}

	var specifiers []string
	for i := uint(0); i < obj.NamedChildCount(); i++ {
		pair := obj.NamedChild(i)
		if pair.Kind() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		if key == nil || value == nil || value.Kind() != "arrow_function" {
			continue
		}
		body := value.ChildByFieldName("body")
		if body == nil || body.Kind() != "identifier" {
			continue
		}
		keyName := propertyName(key, source)
		local := remap(aliases, body.Utf8Text(source))
		if keyName == "" {
			continue
		}
		if local == keyName {
			specifiers = append(specifiers, keyName)
		} else {
			specifiers = append(specifiers, local+" as "+keyName)
		}
	}
	if len(specifiers) == 0 {
		return ""
	}

	name := remap(aliases, id.Utf8Text(source))
	return fmt.Sprintf("declare namespace %s {\n  export { %s };\n}",
		name, strings.Join(specifiers, ", "))
}

// propertyName cooks an object key: identifier text or quoted-string
// content.
func propertyName(key *ts.Node, source []byte) string {
	switch key.Kind() {
	case "property_identifier", "identifier":
		return key.Utf8Text(source)
	case "string":
		return syntax.UnquoteString(key, source)
	}
	return ""
}

// declarationsFromVar reconstructs declarations from a var statement's
// declarators. Token arrays concatenate back into the original declaration
// text; the remaining initialiser shapes are edges the bundler created while
// aliasing, and come back as conservative type aliases.
func declarationsFromVar(stmt *ts.Node, source []byte, aliases map[string]string) []string {
	var fragments []string
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		decl := stmt.NamedChild(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		value := decl.ChildByFieldName("value")
		if name == nil || value == nil {
			continue
		}
		localName := name.Utf8Text(source)

		switch value.Kind() {
		case "array":
			fragments = append(fragments, joinTokenArray(value, source, aliases))
		case "identifier":
			fragments = append(fragments,
				fmt.Sprintf("type %s = %s;", localName, remap(aliases, value.Utf8Text(source))))
		case "member_expression", "subscript_expression":
			if access, ok := renderAccessType(value, source, aliases); ok {
				fragments = append(fragments, fmt.Sprintf("type %s = %s;", localName, access))
			}
		case "call_expression":
			if callText, ok := renderCallType(value, source, aliases); ok {
				fragments = append(fragments, fmt.Sprintf("type %s = %s;", localName, callText))
			}
		}
	}
	return fragments
}

// joinTokenArray concatenates one token array back into declaration text:
// string elements unescape through the codec, identifier elements emit their
// alias-remapped name, and template elements concatenate cooked fragments
// with embedded identifier expressions.
func joinTokenArray(array *ts.Node, source []byte, aliases map[string]string) string {
	var sb strings.Builder
	for i := uint(0); i < array.NamedChildCount(); i++ {
		elem := array.NamedChild(i)
		switch elem.Kind() {
		case "string":
			sb.WriteString(codec.Unescape(syntax.UnquoteString(elem, source)))
		case "identifier":
			sb.WriteString(remap(aliases, elem.Utf8Text(source)))
		case "template_string":
			sb.WriteString(cookTemplate(elem, source, aliases))
		}
	}
	return sb.String()
}

// cookTemplate flattens a template literal the bundler substituted for a
// plain string, interpolating identifier substitutions.
func cookTemplate(tpl *ts.Node, source []byte, aliases map[string]string) string {
	var sb strings.Builder
	for i := uint(0); i < tpl.NamedChildCount(); i++ {
		part := tpl.NamedChild(i)
		switch part.Kind() {
		case "string_fragment":
			sb.WriteString(codec.Unescape(part.Utf8Text(source)))
		case "escape_sequence":
			sb.WriteString(codec.Unescape(cookEscape(part.Utf8Text(source))))
		case "template_substitution":
			for j := uint(0); j < part.NamedChildCount(); j++ {
				if expr := part.NamedChild(j); expr.Kind() == "identifier" {
					sb.WriteString(remap(aliases, expr.Utf8Text(source)))
				}
			}
		}
	}
	return sb.String()
}

// cookEscape resolves a JS escape sequence to its character.
func cookEscape(seq string) string {
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
	default:
		return seq[1:]
	}
}

// renderAccessType renders `A.B['c']` as the computed-access form
// `A['B']['c']`, which survives in declaration position.
func renderAccessType(node *ts.Node, source []byte, aliases map[string]string) (string, bool) {
	var accesses []string
	cur := node
	for {
		switch cur.Kind() {
		case "member_expression":
			prop := cur.ChildByFieldName("property")
			if prop == nil {
				return "", false
			}
			accesses = append(accesses, "['"+prop.Utf8Text(source)+"']")
			cur = cur.ChildByFieldName("object")
		case "subscript_expression":
			index := cur.ChildByFieldName("index")
			if index == nil || index.Kind() != "string" {
				return "", false
			}
			accesses = append(accesses, "['"+syntax.UnquoteString(index, source)+"']")
			cur = cur.ChildByFieldName("object")
		case "identifier":
			var sb strings.Builder
			sb.WriteString(remap(aliases, cur.Utf8Text(source)))
			for i := len(accesses) - 1; i >= 0; i-- {
				sb.WriteString(accesses[i])
			}
			return sb.String(), true
		default:
			return "", false
		}
		if cur == nil {
			return "", false
		}
	}
}

// renderCallType renders `f(args)` accepting the same member, string,
// number and identifier argument subset.
func renderCallType(call *ts.Node, source []byte, aliases map[string]string) (string, bool) {
	callee := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if callee == nil || args == nil {
		return "", false
	}

	var calleeText string
	switch callee.Kind() {
	case "identifier":
		calleeText = remap(aliases, callee.Utf8Text(source))
	case "member_expression", "subscript_expression":
		access, ok := renderAccessType(callee, source, aliases)
		if !ok {
			return "", false
		}
		calleeText = access
	default:
		return "", false
	}

	var rendered []string
	for i := uint(0); i < args.NamedChildCount(); i++ {
		arg := args.NamedChild(i)
		switch arg.Kind() {
		case "identifier":
			rendered = append(rendered, remap(aliases, arg.Utf8Text(source)))
		case "string", "number":
			rendered = append(rendered, arg.Utf8Text(source))
		case "member_expression", "subscript_expression":
			access, ok := renderAccessType(arg, source, aliases)
			if !ok {
				return "", false
			}
			rendered = append(rendered, access)
		default:
			return "", false
		}
	}
	return calleeText + "(" + strings.Join(rendered, ", ") + ")", true
}
