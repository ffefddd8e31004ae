// Package declgen emits per-file type declarations without cross-file
// inference: the isolated-declaration transformer. Module boundaries need
// explicit annotations; a missing one produces a diagnostic and a
// conservative `unknown`, never a hard failure.
package declgen

import (
	"fmt"
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/syntax"
)

// Result is the outcome of one emission or tree-shake pass.
type Result struct {
	// Code is the declaration text. May be empty when the input declares
	// nothing reachable.
	Code string

	// Diagnostics are the per-file emission problems. A non-empty Code with
	// diagnostics is a partial declaration that still participates in the
	// bundle.
	Diagnostics []Diagnostic
}

// Emitter produces declaration text from TypeScript source files.
type Emitter struct {
	parsers *parser.Manager
	logger  *slog.Logger
}

// NewEmitter creates an isolated-declaration emitter. Logger may be nil.
func NewEmitter(parsers *parser.Manager, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{parsers: parsers, logger: logger}
}

// Emit produces the declaration text for one source file. Declaration files
// pass through verbatim: their text already is declaration text.
func (e *Emitter) Emit(filePath string, source []byte) (Result, error) {
	if parser.IsDeclarationFile(filePath) {
		return Result{Code: string(source)}, nil
	}

	tree, err := e.parsers.ParseFile(source, filePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	defer tree.Close()

	em := &emission{file: filePath, source: source}
	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() == syntax.KindComment {
			continue
		}
		em.statement(stmt, true)
	}

	if len(em.diagnostics) > 0 {
		e.logger.Debug("isolated declaration diagnostics",
			"file", filePath,
			"count", len(em.diagnostics))
	}
	return Result{
		Code:        strings.Join(em.fragments, "\n"),
		Diagnostics: em.diagnostics,
	}, nil
}

// emission carries the per-file output under construction.
type emission struct {
	file        string
	source      []byte
	fragments   []string
	diagnostics []Diagnostic
}

func (em *emission) add(text string) {
	em.fragments = append(em.fragments, text)
}

func (em *emission) diag(node *ts.Node, format string, args ...any) {
	em.diagnostics = append(em.diagnostics, diagnosticAt(em.file, node, format, args...))
}

// statement emits the declaration form of one top-level (or namespace-level)
// statement. topLevel controls the `declare` prefix: members of an ambient
// namespace body are already ambient.
func (em *emission) statement(stmt *ts.Node, topLevel bool) {
	comments := syntax.LeadingComments(stmt, em.source)
	text := syntax.StatementText(stmt, em.source)

	switch stmt.Kind() {
	case syntax.KindImport:
		em.add(comments + text)
		return

	case syntax.KindExport:
		if syntax.IsExportAll(stmt) || syntax.IsReExport(stmt) {
			em.add(comments + text)
			return
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil {
			decl = stmt.ChildByFieldName("value")
		}
		if decl == nil {
			em.add(comments + text)
			return
		}
		prefix := "export "
		if syntax.HasDefaultExportModifier(stmt) {
			if decl.Kind() == "identifier" {
				em.add(comments + text)
				return
			}
			prefix = "export default "
		}
		if rendered := em.declaration(decl, topLevel); rendered != "" {
			em.add(comments + prefix + rendered)
		}
		return

	case syntax.KindExprStatement:
		// runtime-only statement, contributes nothing to declarations
		return
	}

	if rendered := em.declaration(stmt, topLevel); rendered != "" {
		em.add(comments + rendered)
	}
}

// declaration renders the declaration text of one declaration-bearing node.
// Returns "" for nodes with no declaration surface.
func (em *emission) declaration(node *ts.Node, topLevel bool) string {
	switch node.Kind() {
	case "interface_declaration", "type_alias_declaration":
		return syntax.StatementText(node, em.source)

	case "enum_declaration":
		return em.ambientPrefix(topLevel) + syntax.StatementText(node, em.source)

	case syntax.KindAmbient, "function_signature":
		// already ambient syntax, no body to strip
		return syntax.StatementText(node, em.source)

	case "function_declaration", "generator_function_declaration":
		return em.functionSignature(node, topLevel)

	case "class_declaration", "abstract_class_declaration":
		return em.classDeclaration(node, topLevel)

	case "lexical_declaration", "variable_declaration":
		return em.variableDeclaration(node, topLevel)

	case "internal_module", "module":
		return em.namespaceDeclaration(node, topLevel)
	}
	return ""
}

// ambientPrefix returns "declare " at top level and "" inside an ambient
// body.
func (em *emission) ambientPrefix(topLevel bool) string {
	if topLevel {
		return "declare "
	}
	return ""
}

// functionSignature strips the body and requires an explicit return type.
func (em *emission) functionSignature(node *ts.Node, topLevel bool) string {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = n.Utf8Text(em.source)
	}
	params := "()"
	if p := node.ChildByFieldName("parameters"); p != nil {
		params = p.Utf8Text(em.source)
		em.checkParameters(p)
	}
	typeParams := ""
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		typeParams = tp.Utf8Text(em.source)
	}
	ret := ""
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		ret = rt.Utf8Text(em.source)
	} else {
		em.diag(node, "function %q needs an explicit return type annotation", name)
		ret = ": unknown"
	}
	star := ""
	if node.Kind() == "generator_function_declaration" {
		star = "*"
	}
	return fmt.Sprintf("%sfunction%s %s%s%s%s;",
		em.ambientPrefix(topLevel), star, name, typeParams, params, ret)
}

// checkParameters flags parameters without type annotations.
func (em *emission) checkParameters(params *ts.Node) {
	for i := uint(0); i < params.NamedChildCount(); i++ {
		param := params.NamedChild(i)
		switch param.Kind() {
		case "required_parameter", "optional_parameter":
			if param.ChildByFieldName("type") == nil && param.ChildByFieldName("value") == nil {
				em.diag(param, "parameter needs an explicit type annotation")
			}
		}
	}
}

// classDeclaration emits the class surface: typed fields, method
// signatures, index signatures. Private members and bodies are dropped.
func (em *emission) classDeclaration(node *ts.Node, topLevel bool) string {
	var head strings.Builder
	head.WriteString(em.ambientPrefix(topLevel))
	if node.Kind() == "abstract_class_declaration" {
		head.WriteString("abstract ")
	}
	head.WriteString("class")
	if n := node.ChildByFieldName("name"); n != nil {
		head.WriteString(" " + n.Utf8Text(em.source))
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		head.WriteString(tp.Utf8Text(em.source))
	}
	// extends / implements clauses
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child.Kind() == "class_heritage" {
			head.WriteString(" " + child.Utf8Text(em.source))
		}
	}

	var members []string
	if body := node.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.NamedChildCount(); i++ {
			member := body.NamedChild(i)
			if member.Kind() == syntax.KindComment {
				continue
			}
			if rendered := em.classMember(member); rendered != "" {
				members = append(members, "  "+rendered)
			}
		}
	}
	if len(members) == 0 {
		return head.String() + " {}"
	}
	return head.String() + " {\n" + strings.Join(members, "\n") + "\n}"
}

// classMember renders one class member's declaration form, or "" to drop it.
func (em *emission) classMember(member *ts.Node) string {
	if hasPrivateAccess(member, em.source) {
		return ""
	}
	modifiers := memberModifiers(member, em.source)

	switch member.Kind() {
	case "method_definition":
		name := member.ChildByFieldName("name")
		if name == nil || strings.HasPrefix(name.Utf8Text(em.source), "#") {
			return ""
		}
		nameText := name.Utf8Text(em.source)
		params := "()"
		if p := member.ChildByFieldName("parameters"); p != nil {
			params = p.Utf8Text(em.source)
			em.checkParameters(p)
		}
		ret := ""
		if rt := member.ChildByFieldName("return_type"); rt != nil {
			ret = rt.Utf8Text(em.source)
		} else if nameText != "constructor" && !isAccessor(member, em.source) {
			em.diag(member, "method %q needs an explicit return type annotation", nameText)
			ret = ": unknown"
		}
		return modifiers + accessorKeyword(member, em.source) + nameText + params + ret + ";"

	case "public_field_definition":
		name := member.ChildByFieldName("name")
		if name == nil || strings.HasPrefix(name.Utf8Text(em.source), "#") {
			return ""
		}
		nameText := name.Utf8Text(em.source)
		if t := member.ChildByFieldName("type"); t != nil {
			return modifiers + nameText + t.Utf8Text(em.source) + ";"
		}
		if v := member.ChildByFieldName("value"); v != nil {
			if literal, ok := literalType(v, em.source); ok {
				return modifiers + nameText + ": " + literal + ";"
			}
		}
		em.diag(member, "field %q needs an explicit type annotation", nameText)
		return modifiers + nameText + ": unknown;"

	case "index_signature", "method_signature", "abstract_method_signature",
		"property_signature":
		return syntax.StatementText(member, em.source)
	}
	return ""
}

// hasPrivateAccess reports whether a member carries the `private` modifier.
func hasPrivateAccess(member *ts.Node, source []byte) bool {
	for i := uint(0); i < member.NamedChildCount(); i++ {
		child := member.NamedChild(i)
		if child.Kind() == "accessibility_modifier" {
			return child.Utf8Text(source) == "private"
		}
	}
	return false
}

// memberModifiers keeps the modifiers that survive in declarations.
func memberModifiers(member *ts.Node, source []byte) string {
	var mods []string
	for i := uint(0); i < member.ChildCount(); i++ {
		child := member.Child(i)
		switch child.Kind() {
		case "accessibility_modifier":
			mods = append(mods, child.Utf8Text(source))
		case "static", "readonly", "abstract":
			mods = append(mods, child.Kind())
		}
	}
	if len(mods) == 0 {
		return ""
	}
	return strings.Join(mods, " ") + " "
}

// isAccessor reports whether member is a get or set accessor.
func isAccessor(member *ts.Node, source []byte) bool {
	return accessorKeyword(member, source) != ""
}

// accessorKeyword returns "get " or "set " when member is an accessor.
func accessorKeyword(member *ts.Node, source []byte) string {
	for i := uint(0); i < member.ChildCount(); i++ {
		switch member.Child(i).Kind() {
		case "get":
			return "get "
		case "set":
			return "set "
		}
	}
	return ""
}

// variableDeclaration emits each declarator with its annotation, or a
// trivially inferred literal type.
func (em *emission) variableDeclaration(node *ts.Node, topLevel bool) string {
	kind := "var"
	for i := uint(0); i < node.ChildCount(); i++ {
		switch node.Child(i).Kind() {
		case "const", "let":
			kind = node.Child(i).Kind()
		}
	}

	var rendered []string
	for i := uint(0); i < node.NamedChildCount(); i++ {
		decl := node.NamedChild(i)
		if decl.Kind() != "variable_declarator" {
			continue
		}
		name := decl.ChildByFieldName("name")
		if name == nil || name.Kind() != "identifier" {
			em.diag(decl, "destructured bindings need an explicit declaration")
			continue
		}
		nameText := name.Utf8Text(em.source)
		if t := decl.ChildByFieldName("type"); t != nil {
			rendered = append(rendered, nameText+t.Utf8Text(em.source))
			continue
		}
		if v := decl.ChildByFieldName("value"); v != nil {
			if literal, ok := literalType(v, em.source); ok {
				rendered = append(rendered, nameText+": "+literal)
				continue
			}
		}
		em.diag(decl, "variable %q needs an explicit type annotation", nameText)
		rendered = append(rendered, nameText+": unknown")
	}
	if len(rendered) == 0 {
		return ""
	}
	return fmt.Sprintf("%s%s %s;", em.ambientPrefix(topLevel), kind, strings.Join(rendered, ", "))
}

// literalType infers the declaration type of a trivially typed initialiser.
// Only shapes whose type is evident without checking qualify; anything else
// needs an annotation.
func literalType(value *ts.Node, source []byte) (string, bool) {
	switch value.Kind() {
	case "number", "true", "false":
		return value.Utf8Text(source), true
	case "string":
		return value.Utf8Text(source), true
	case "template_string":
		// only constant templates are trivially typed
		for i := uint(0); i < value.NamedChildCount(); i++ {
			if value.NamedChild(i).Kind() == "template_substitution" {
				return "", false
			}
		}
		return "string", true
	case "unary_expression":
		arg := value.ChildByFieldName("argument")
		if arg != nil && arg.Kind() == "number" {
			return value.Utf8Text(source), true
		}
	case "arrow_function":
		params := value.ChildByFieldName("parameters")
		ret := value.ChildByFieldName("return_type")
		if params == nil || ret == nil {
			return "", false
		}
		for i := uint(0); i < params.NamedChildCount(); i++ {
			param := params.NamedChild(i)
			switch param.Kind() {
			case "required_parameter", "optional_parameter":
				if param.ChildByFieldName("type") == nil {
					return "", false
				}
			}
		}
		retText := strings.TrimPrefix(strings.TrimSpace(ret.Utf8Text(source)), ":")
		return params.Utf8Text(source) + " =>" + retText, true
	case "as_expression":
		// `x as T` carries its own type; `x as const` narrows the literal
		if value.NamedChildCount() == 2 {
			t := value.NamedChild(1)
			if t.Utf8Text(source) == "const" {
				return literalType(value.NamedChild(0), source)
			}
			return t.Utf8Text(source), true
		}
	}
	return "", false
}

// namespaceDeclaration recurses into a namespace body, emitting each member
// in declaration form.
func (em *emission) namespaceDeclaration(node *ts.Node, topLevel bool) string {
	name := ""
	if n := node.ChildByFieldName("name"); n != nil {
		name = n.Utf8Text(em.source)
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return em.ambientPrefix(topLevel) + "namespace " + name + " {}"
	}

	nested := &emission{file: em.file, source: em.source}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		stmt := body.NamedChild(i)
		if stmt.Kind() == syntax.KindComment {
			continue
		}
		nested.statement(stmt, false)
	}
	em.diagnostics = append(em.diagnostics, nested.diagnostics...)

	var sb strings.Builder
	sb.WriteString(em.ambientPrefix(topLevel))
	sb.WriteString("namespace " + name + " {\n")
	for _, frag := range nested.fragments {
		for _, line := range strings.Split(frag, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}
	sb.WriteString("}")
	return sb.String()
}
