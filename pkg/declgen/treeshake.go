package declgen

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/syntax"
)

// TreeShake re-emits reconstructed declaration text keeping only the
// statements reachable from the module's export set. It is the
// normalisation pass the driver runs over every reverse-transformed chunk.
//
// An empty Code with no Diagnostics means the chunk contained only types
// transitively unreferenced by entry exports and can be dropped.
func (e *Emitter) TreeShake(declText string) (Result, error) {
	source := []byte(declText)
	tree, err := e.parsers.Parse(source, parser.LanguageTypeScript, false)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse declaration text: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	shake := newShaker(root, source)
	shake.markRoots()
	shake.propagate()
	return Result{Code: shake.emit()}, nil
}

// shaker holds the reachability state of one tree-shake pass.
type shaker struct {
	root   *ts.Node
	source []byte

	// statements in source order with their declared names and references
	statements []shakeStatement

	// byName maps a declared name to the indexes of its statements.
	// Declaration merging (overloads, interface + namespace) means one name
	// can own several statements.
	byName map[string][]int

	marked []bool
	queue  []string
	seen   map[string]bool
}

type shakeStatement struct {
	node       *ts.Node
	name       string
	words      []string
	isImport   bool
	isExport   bool
	importOnly []string // locals bound by an import statement
}

func newShaker(root *ts.Node, source []byte) *shaker {
	s := &shaker{
		root:   root,
		source: source,
		byName: make(map[string][]int),
		seen:   make(map[string]bool),
	}
	for i := uint(0); i < root.NamedChildCount(); i++ {
		node := root.NamedChild(i)
		if node.Kind() == syntax.KindComment {
			continue
		}
		stmt := shakeStatement{node: node}
		switch {
		case syntax.IsImport(node):
			stmt.isImport = true
			stmt.importOnly = syntax.ImportedLocals(node, source)
		case syntax.IsExportStatement(node):
			stmt.isExport = true
			stmt.name = syntax.GetName(node, source)
		default:
			stmt.name = syntax.GetName(node, source)
		}
		if !stmt.isImport {
			stmt.words = referencedWords(syntax.StatementText(node, source))
		}
		index := len(s.statements)
		s.statements = append(s.statements, stmt)
		if stmt.name != "" {
			s.byName[stmt.name] = append(s.byName[stmt.name], index)
		}
	}
	s.marked = make([]bool, len(s.statements))
	return s
}

// markRoots seeds reachability from the export set: exported declarations,
// export clause locals, and export-alls.
func (s *shaker) markRoots() {
	for i, stmt := range s.statements {
		if !stmt.isExport {
			continue
		}
		s.marked[i] = true
		if stmt.name != "" {
			s.enqueue(stmt.name)
		}
		forEachExportLocal(stmt.node, s.source, s.enqueue)
		// an exported declaration references its body's names too
		for _, word := range stmt.words {
			s.enqueue(word)
		}
	}
}

// propagate walks the reference edges until the queue drains.
func (s *shaker) propagate() {
	for len(s.queue) > 0 {
		name := s.queue[0]
		s.queue = s.queue[1:]
		for _, index := range s.byName[name] {
			if s.marked[index] {
				continue
			}
			s.marked[index] = true
			for _, word := range s.statements[index].words {
				s.enqueue(word)
			}
		}
	}
}

func (s *shaker) enqueue(name string) {
	if name == "" || s.seen[name] {
		return
	}
	s.seen[name] = true
	s.queue = append(s.queue, name)
}

// emit writes kept statements in source order. Imports survive only when
// one of their locals is referenced by a kept statement.
func (s *shaker) emit() string {
	used := s.seen
	var fragments []string
	for i, stmt := range s.statements {
		switch {
		case stmt.isImport:
			if anyUsed(stmt.importOnly, used) {
				fragments = append(fragments,
					syntax.LeadingComments(stmt.node, s.source)+
						syntax.StatementText(stmt.node, s.source))
			}
		case s.marked[i]:
			fragments = append(fragments,
				syntax.LeadingComments(stmt.node, s.source)+
					normalizeAmbient(stmt.node, syntax.StatementText(stmt.node, s.source)))
		}
	}
	return strings.Join(fragments, "\n")
}

// normalizeAmbient prefixes `declare` on statement kinds that need it in a
// declaration file. Reconstructed bundles carry bare function and variable
// statements; interfaces and type aliases are ambient by themselves.
func normalizeAmbient(node *ts.Node, text string) string {
	switch node.Kind() {
	case "function_signature", "function_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration",
		"lexical_declaration", "variable_declaration", "internal_module":
		trimmed := strings.TrimSpace(text)
		if !strings.HasPrefix(trimmed, "declare ") && !strings.HasPrefix(trimmed, "export ") {
			return "declare " + text
		}
	}
	return text
}

func anyUsed(names []string, used map[string]bool) bool {
	for _, name := range names {
		if used[name] {
			return true
		}
	}
	return false
}

// forEachExportLocal visits the local name of each export clause specifier.
func forEachExportLocal(stmt *ts.Node, source []byte, fn func(string)) {
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		clause := stmt.NamedChild(i)
		if clause.Kind() != "export_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			spec := clause.NamedChild(j)
			if spec.Kind() != "export_specifier" {
				continue
			}
			if name := spec.ChildByFieldName("name"); name != nil {
				fn(name.Utf8Text(source))
			}
		}
	}
}

// referencedWords collects the identifier-like tokens of a statement's text.
// Comments, strings and templates are opaque tokens and contribute nothing.
func referencedWords(text string) []string {
	var words []string
	for _, tok := range syntax.TokenizeRE.FindAllString(text, -1) {
		if syntax.IsWord(tok) {
			words = append(words, tok)
		}
	}
	return words
}
