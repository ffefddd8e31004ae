package transform

import (
	"fmt"
	"log/slog"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/syntax"
)

// Minifier shortens the user-visible top-level names of a declaration file
// and strips redundant whitespace. External names survive exactly: every
// export clause is rewritten to `export { short as Original }` form.
type Minifier struct {
	parsers *parser.Manager
	logger  *slog.Logger
}

// NewMinifier creates a declaration minifier. Logger may be nil.
func NewMinifier(parsers *parser.Manager, logger *slog.Logger) *Minifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Minifier{parsers: parsers, logger: logger}
}

// reservedShortNames are names the short-name generator must skip.
var reservedShortNames = map[string]bool{
	"as": true, "do": true, "if": true, "in": true, "is": true, "of": true,
	"for": true, "new": true, "var": true, "let": true, "any": true,
	"out": true, "try": true, "case": true, "else": true, "enum": true,
	"this": true, "true": true, "type": true, "void": true, "with": true,
	"false": true, "never": true, "keyof": true,
}

// Minify renames locally declared top-level identifiers to short ones and
// compacts whitespace. Import statements and namespace declarations keep
// their names; imported locals already carry their external meaning.
func (m *Minifier) Minify(declText string) (string, error) {
	source := []byte(declText)
	tree, err := m.parsers.Parse(source, parser.LanguageTypeScript, false)
	if err != nil {
		return "", fmt.Errorf("failed to parse declaration text: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	renames := m.buildRenames(root, source, declText)

	var fragments []string
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch {
		case stmt.Kind() == syntax.KindComment:
			continue
		case syntax.IsImport(stmt):
			// imported locals keep their external meaning; emit verbatim
			fragments = append(fragments, syntax.StatementText(stmt, source))
		case syntax.IsReExport(stmt):
			fragments = append(fragments, rebuildExportClause(stmt, source, renames))
		default:
			text := syntax.StatementText(stmt, source)
			fragments = append(fragments, compact(replaceNames(text, renames)))
		}
	}
	return strings.Join(fragments, "\n"), nil
}

// buildRenames assigns a short name to every renameable top-level
// declaration. Words already present anywhere in the file are never reused
// as short names.
func (m *Minifier) buildRenames(root *ts.Node, source []byte, declText string) map[string]string {
	taken := make(map[string]bool)
	for _, tok := range syntax.TokenizeRE.FindAllString(declText, -1) {
		if syntax.IsWord(tok) {
			taken[tok] = true
		}
	}

	renames := make(map[string]string)
	counter := 0
	next := func() string {
		for {
			candidate := shortName(counter)
			counter++
			if !taken[candidate] && !reservedShortNames[candidate] {
				taken[candidate] = true
				return candidate
			}
		}
	}

	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		target := stmt
		if syntax.HasExportModifier(stmt) {
			target = stmt.ChildByFieldName("declaration")
		}
		if target == nil || !renameableKind(target.Kind()) {
			continue
		}
		if target.Kind() == syntax.KindAmbient && wrapsNamespace(target) {
			continue
		}
		name := syntax.GetName(target, source)
		if name == "" || renames[name] != "" {
			continue
		}
		renames[name] = next()
	}
	return renames
}

// wrapsNamespace reports whether an ambient declaration wraps a namespace
// or module declaration.
func wrapsNamespace(node *ts.Node) bool {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		switch node.NamedChild(i).Kind() {
		case "internal_module", "module":
			return true
		}
	}
	return false
}

// renameableKind excludes namespace and module declarations: their names are
// part of the consumer-visible surface even without an export clause.
func renameableKind(kind string) bool {
	switch kind {
	case "interface_declaration", "type_alias_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration", "function_declaration",
		"function_signature", "lexical_declaration", "variable_declaration",
		syntax.KindAmbient:
		return true
	}
	return false
}

// rebuildExportClause rewrites each specifier so the external name is
// preserved while the local side follows the rename map.
func rebuildExportClause(stmt *ts.Node, source []byte, renames map[string]string) string {
	var specs []string
	forEachExportSpecifier(stmt, func(spec *ts.Node) {
		name := spec.ChildByFieldName("name")
		if name == nil {
			return
		}
		local := name.Utf8Text(source)
		external := local
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			external = alias.Utf8Text(source)
		}
		if short, ok := renames[local]; ok {
			local = short
		}
		if local == external {
			specs = append(specs, external)
		} else {
			specs = append(specs, local+" as "+external)
		}
	})

	clause := "export{" + strings.Join(specs, ",") + "}"
	if src := stmt.ChildByFieldName("source"); src != nil {
		clause += "from" + src.Utf8Text(source)
	}
	return clause + ";"
}

// replaceNames substitutes renamed identifiers in reference position.
// Property keys (word before a `:` or a `?:`) and member accesses (word after
// `.`) keep their names; strings, templates and comments are opaque tokens
// and never touched.
func replaceNames(text string, renames map[string]string) string {
	var sb strings.Builder
	pos := 0
	for pos < len(text) {
		loc := syntax.TokenizeRE.FindStringIndex(text[pos:])
		if loc == nil {
			sb.WriteString(text[pos:])
			break
		}
		tok := text[pos+loc[0] : pos+loc[1]]
		if short, ok := renames[tok]; ok && syntax.IsWord(tok) &&
			!isPropertyPosition(text, pos+loc[0], pos+loc[1]) {
			sb.WriteString(short)
		} else {
			sb.WriteString(tok)
		}
		pos += loc[1]
	}
	return sb.String()
}

// shortName yields the minified name sequence a, b, …, z, aa, ab, ….
func shortName(counter int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	name := string(alphabet[counter%len(alphabet)])
	for counter /= len(alphabet); counter > 0; counter /= len(alphabet) {
		counter--
		name = string(alphabet[counter%len(alphabet)]) + name
	}
	return name
}

// isPropertyPosition reports whether the word at [start,end) is a property
// key or member-access property rather than a type reference.
func isPropertyPosition(text string, start, end int) bool {
	for i := start - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '.':
			return true
		}
		break
	}
	for i := end; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case '?':
			continue
		case ':':
			return true
		}
		break
	}
	return false
}

// compact collapses whitespace runs to a single space and drops spaces next
// to punctuation, leaving string, template and comment tokens untouched.
func compact(text string) string {
	var parts []string
	pos := 0
	for pos < len(text) {
		loc := syntax.TokenizeRE.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		tok := text[pos+loc[0] : pos+loc[1]]
		switch {
		case strings.HasPrefix(tok, "//"):
			// a line comment must keep its terminating newline
			parts = append(parts, tok, "\n")
		case !isWhitespaceToken(tok):
			parts = append(parts, tok)
		case len(parts) > 0 && parts[len(parts)-1] != " " && parts[len(parts)-1] != "\n":
			parts = append(parts, " ")
		}
		pos += loc[1]
	}

	var sb strings.Builder
	for i, tok := range parts {
		if tok == " " {
			if i == 0 || i == len(parts)-1 {
				continue
			}
			if bordersPunctuation(parts[i-1]) || bordersPunctuation(parts[i+1]) {
				continue
			}
			sb.WriteString(" ")
			continue
		}
		sb.WriteString(tok)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func isWhitespaceToken(tok string) bool {
	return tok == " " || tok == "\t" || tok == "\n" || tok == "\r"
}

// bordersPunctuation reports whether a space next to tok is redundant.
func bordersPunctuation(tok string) bool {
	if len(tok) != 1 {
		return false
	}
	return strings.ContainsAny(tok, "{}();,:<>[]|&=?")
}
