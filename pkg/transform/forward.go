// Package transform implements the declaration-bundling trick: the forward
// transform encodes a .d.ts file as syntactically legal, semantically inert
// JavaScript whose cross-reference edges are ordinary identifier reads, and
// the reverse transform reconstructs declaration text from the bundled
// output.
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

// Forward converts declaration text into fake-JS modules.
//
// Each invocation of Transform is an isolated unit: the referenced-names and
// exported-names sets are file-local, so the bundler's load hook may call
// Transform concurrently from multiple goroutines.
type Forward struct {
	parsers *parser.Manager
	logger  *slog.Logger
}

// NewForward creates a forward transformer backed by the given parser
// manager. Logger may be nil.
func NewForward(parsers *parser.Manager, logger *slog.Logger) *Forward {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forward{parsers: parsers, logger: logger}
}

// Transform turns one declaration file's text into one fake-JS module.
//
// Every non-import/export statement becomes `var NAME = [tokens…];` where
// tokens are string literals (escaped via the codec) and bare identifier
// references. Imports and exports are jsified and emitted as real statements
// so the bundler sees the module-graph edges. Side-effect imports are
// dropped; declarations have no runtime side effects.
func (f *Forward) Transform(declText string) (string, error) {
	source := []byte(declText)
	tree, err := f.parsers.Parse(source, parser.LanguageTypeScript, false)
	if err != nil {
		return "", fmt.Errorf("failed to parse declaration text: %w", err)
	}
	defer tree.Close()

	st := &fileState{
		source:     source,
		referenced: make(map[string]bool),
		exported:   make(map[string]bool),
		dynImports: make(map[string]string),
	}

	root := tree.RootNode()

	// Pre-pass: every imported local and every top-level declared name is a
	// known reference target. Collecting declared names up front keeps
	// forward references (type A = B; interface B {}) resolvable without
	// leaning on the capital-letter heuristic.
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch {
		case syntax.IsImport(stmt):
			for _, local := range syntax.ImportedLocals(stmt, source) {
				st.referenced[local] = true
			}
		default:
			if name := syntax.GetName(stmt, source); name != "" {
				st.referenced[name] = true
			}
		}
	}

	var out strings.Builder
	index := 0
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		if stmt.Kind() == syntax.KindComment {
			continue
		}
		if err := f.emitStatement(st, &out, stmt, index); err != nil {
			return "", err
		}
		index++
	}
	return out.String(), nil
}

// fileState is the per-file transform state. Both sets grow monotonically.
type fileState struct {
	source     []byte
	referenced map[string]bool
	exported   map[string]bool
	// dynImports maps "spec\x00name" to the identifier already injected for
	// it, so repeated dynamic imports of the same type collapse.
	dynImports map[string]string
}

// emitStatement handles one top-level statement.
func (f *Forward) emitStatement(st *fileState, out *strings.Builder, stmt *ts.Node, index int) error {
	text := syntax.StatementText(stmt, st.source)

	// Default exports are re-expressed as a named local plus
	// `export { name as default }`.
	if syntax.HasDefaultExportModifier(stmt) {
		if syntax.IsDefaultReExport(stmt) {
			name := stmt.ChildByFieldName("value").Utf8Text(st.source)
			fmt.Fprintf(out, "export { %s as default };\n", name)
			return nil
		}
		name := syntax.GetName(stmt, st.source)
		unnamed := name == ""
		if unnamed {
			name = syntheticName(index)
			st.referenced[name] = true
		}
		decl := syntax.StripExportSyntax(text)
		if unnamed || syntax.IsUnnamedDefaultExport(stmt) {
			// the default binding needs a tokenisable name inside its own
			// syntax
			decl = syntax.InsertDefaultName(decl, name)
		}
		prepared := syntax.LeadingComments(stmt, st.source) + decl
		if err := f.emitTokenArray(st, out, name, prepared); err != nil {
			return err
		}
		fmt.Fprintf(out, "export { %s as default };\n", name)
		st.exported[name] = true
		return nil
	}

	// Imports, export-alls and re-exports keep their module-graph edge:
	// strip type-only modifiers and emit the statement verbatim.
	if syntax.IsImport(stmt) || syntax.IsExportAll(stmt) || syntax.IsReExport(stmt) {
		if syntax.IsSideEffectImport(stmt) {
			return nil
		}
		jsified := syntax.Jsify(text)
		out.WriteString(strings.TrimRight(jsified, "\n"))
		if !strings.HasSuffix(strings.TrimSpace(jsified), ";") {
			out.WriteString(";")
		}
		out.WriteString("\n")
		return nil
	}

	// Declaration-bearing statement.
	name := syntax.GetName(stmt, st.source)
	if name == "" {
		name = syntheticName(index)
		st.referenced[name] = true
	}
	decl := text
	exported := syntax.HasExportModifier(stmt)
	if exported {
		decl = syntax.StripExportSyntax(decl)
	}
	prepared := syntax.LeadingComments(stmt, st.source) + decl
	if err := f.emitTokenArray(st, out, name, prepared); err != nil {
		return err
	}
	if exported && !st.exported[name] {
		fmt.Fprintf(out, "export { %s };\n", name)
		st.exported[name] = true
	}
	return nil
}

// emitTokenArray tokenises prepared text and writes `var name = […];` plus
// any import statements injected by the dynamic-import expander.
func (f *Forward) emitTokenArray(st *fileState, out *strings.Builder, name, prepared string) error {
	tokens, injected, err := f.tokenize(st, prepared)
	if err != nil {
		return err
	}
	for _, stmt := range injected {
		out.WriteString(stmt)
		out.WriteString("\n")
	}
	fmt.Fprintf(out, "var %s = [%s];\n", name, strings.Join(tokens, ", "))
	return nil
}

// tokenize splits prepared declaration text into rendered array elements.
// Identifier tokens are emitted bare; everything else becomes an escaped
// string literal. Consecutive string tokens merge into one literal.
func (f *Forward) tokenize(st *fileState, text string) (tokens []string, injected []string, err error) {
	var pendingString strings.Builder
	flush := func() {
		if pendingString.Len() > 0 {
			tokens = append(tokens, quoteJS(codec.Escape(pendingString.String())))
			pendingString.Reset()
		}
	}

	pos := 0
	for pos < len(text) {
		loc := syntax.TokenizeRE.FindStringIndex(text[pos:])
		if loc == nil {
			pendingString.WriteString(text[pos:])
			break
		}
		tok := text[pos+loc[0] : pos+loc[1]]

		// A dynamic type import is intercepted at its `import` keyword and
		// consumed as a whole sub-expression.
		if tok == "import" && nextNonSpace(text, pos+loc[1]) == '(' {
			exp, consumed, perr := f.expandDynamicImport(st, text[pos+loc[0]:])
			if perr != nil {
				return nil, nil, perr
			}
			flush()
			injected = append(injected, exp.injected...)
			tokens = append(tokens, exp.token)
			pos += loc[0] + consumed
			continue
		}

		if syntax.IsWord(tok) && (st.referenced[tok] || syntax.LooksLikeTypeName(tok)) {
			flush()
			tokens = append(tokens, tok)
		} else {
			pendingString.WriteString(tok)
		}
		pos += loc[1]
	}
	flush()
	return tokens, injected, nil
}

// nextNonSpace returns the first non-whitespace byte at or after pos, or 0.
func nextNonSpace(text string, pos int) byte {
	for ; pos < len(text); pos++ {
		switch text[pos] {
		case ' ', '\t', '\n', '\r':
		default:
			return text[pos]
		}
	}
	return 0
}

// syntheticName builds the stable positional name for an unnamed statement.
func syntheticName(index int) string {
	return fmt.Sprintf("var%d", index)
}

// quoteJS renders s as a double-quoted JavaScript string literal. Newlines
// and tabs are already replaced by codec markers, so only quotes,
// backslashes and stray control characters need escaping.
func quoteJS(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
