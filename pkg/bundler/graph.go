package bundler

import (
	"context"
	"fmt"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/dtsbundle/pkg/parser"
	"github.com/gnana997/dtsbundle/pkg/syntax"
	"github.com/gnana997/dtsbundle/pkg/util"
)

// bindingKind classifies how an import binds a local name.
type bindingKind int

const (
	bindNamed bindingKind = iota
	bindDefault
	bindNamespace
)

// importBinding is one local name introduced by an import statement.
type importBinding struct {
	kind     bindingKind
	local    string
	imported string // exported name on the source side; "" for namespace
	resolved ResolveResult
}

// token is one element of a declaration body. Identifier tokens are
// cross-module reference edges; everything else is opaque text emitted
// verbatim.
type token struct {
	ident bool
	text  string // identifier name, or raw source text including quotes
}

// decl is one `var NAME = …;` statement of a fake-JS module.
type decl struct {
	name    string
	isArray bool
	tokens  []token
}

// exportSpec is one specifier of an export clause.
type exportSpec struct {
	local    string // local binding, or imported name when re-exporting
	exported string
}

// exportClause is `export { … }` with or without a source.
type exportClause struct {
	specs    []exportSpec
	resolved *ResolveResult // nil when exporting local bindings
}

// exportAll is `export * from …` or `export * as ns from …`.
type exportAll struct {
	resolved ResolveResult
	nsAlias  string // non-empty for the `as ns` form
}

// module is one scanned fake-JS module.
type module struct {
	path       string
	bindings   map[string]importBinding
	decls      []decl
	declIndex  map[string]int
	clauses    []exportClause
	exportAlls []exportAll
	deps       []ResolveResult // every resolved import edge, in order
}

// scanGraph loads and parses the transitive module graph from the entries.
// Loads run through a bounded worker pool; the scan is breadth-first with a
// shared visited set.
func scanGraph(ctx context.Context, opts Options) (map[string]*module, error) {
	workers := opts.Workers
	if workers == 0 {
		workers = util.GetOptimalPoolSize()
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		modules = make(map[string]*module)
		visited = make(map[string]bool)
		firstErr error
	)
	sem := make(chan struct{}, workers)

	var visit func(path string)
	visit = func(path string) {
		defer wg.Done()
		sem <- struct{}{}
		defer func() { <-sem }()

		if ctx.Err() != nil {
			return
		}

		code, err := opts.Load(path)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to load %s: %w", path, err)
			}
			mu.Unlock()
			return
		}

		mod, err := parseModule(opts, path, code)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			return
		}

		mu.Lock()
		modules[path] = mod
		var next []string
		for _, dep := range mod.deps {
			if dep.External || visited[dep.Path] {
				continue
			}
			visited[dep.Path] = true
			next = append(next, dep.Path)
		}
		mu.Unlock()

		for _, dep := range next {
			wg.Add(1)
			go visit(dep)
		}
	}

	for _, entry := range opts.Entries {
		mu.Lock()
		seen := visited[entry]
		visited[entry] = true
		mu.Unlock()
		if seen {
			continue
		}
		wg.Add(1)
		go visit(entry)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

// parseModule scans one fake-JS module into its binding, declaration and
// export records, resolving every import edge through the resolve hook.
func parseModule(opts Options, path, code string) (*module, error) {
	source := []byte(code)
	tree, err := opts.Parsers.Parse(source, parser.LanguageJavaScript, false)
	if err != nil {
		return nil, fmt.Errorf("failed to parse module %s: %w", path, err)
	}
	defer tree.Close()

	mod := &module{
		path:      path,
		bindings:  make(map[string]importBinding),
		declIndex: make(map[string]int),
	}

	root := tree.RootNode()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Kind() {
		case syntax.KindImport:
			if err := mod.scanImport(opts, stmt, source); err != nil {
				return nil, err
			}
		case syntax.KindExport:
			if err := mod.scanExport(opts, stmt, source); err != nil {
				return nil, err
			}
		case "variable_declaration", "lexical_declaration":
			mod.scanVar(stmt, source)
		}
	}

	// classify non-array initialiser tokens now that every binding is known
	for i := range mod.decls {
		if mod.decls[i].isArray {
			continue
		}
		for j, tok := range mod.decls[i].tokens {
			if tok.ident {
				continue
			}
			if syntax.IsWord(tok.text) && mod.resolvable(tok.text) {
				mod.decls[i].tokens[j].ident = true
			}
		}
	}
	return mod, nil
}

// resolvable reports whether name binds to a local declaration or import in
// this module.
func (m *module) resolvable(name string) bool {
	if _, ok := m.declIndex[name]; ok {
		return true
	}
	_, ok := m.bindings[name]
	return ok
}

func (m *module) resolveDep(opts Options, specifier string) (ResolveResult, error) {
	resolved, err := opts.Resolve(specifier, m.path)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("failed to resolve %q from %s: %w", specifier, m.path, err)
	}
	m.deps = append(m.deps, resolved)
	return resolved, nil
}

func (m *module) scanImport(opts Options, stmt *ts.Node, source []byte) error {
	specifier := syntax.ModuleSource(stmt, source)
	if specifier == "" {
		return nil
	}
	if syntax.IsSideEffectImport(stmt) {
		// inert in declaration land; do not even resolve it
		return nil
	}
	resolved, err := m.resolveDep(opts, specifier)
	if err != nil {
		return err
	}

	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		clause := stmt.NamedChild(i)
		if clause.Kind() != "import_clause" {
			continue
		}
		for j := uint(0); j < clause.NamedChildCount(); j++ {
			child := clause.NamedChild(j)
			switch child.Kind() {
			case "identifier":
				local := child.Utf8Text(source)
				m.bindings[local] = importBinding{
					kind: bindDefault, local: local, imported: "default", resolved: resolved,
				}
			case "namespace_import":
				for k := uint(0); k < child.NamedChildCount(); k++ {
					if id := child.NamedChild(k); id.Kind() == "identifier" {
						local := id.Utf8Text(source)
						m.bindings[local] = importBinding{
							kind: bindNamespace, local: local, resolved: resolved,
						}
					}
				}
			case "named_imports":
				for k := uint(0); k < child.NamedChildCount(); k++ {
					spec := child.NamedChild(k)
					if spec.Kind() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					imported := name.Utf8Text(source)
					local := imported
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = alias.Utf8Text(source)
					}
					m.bindings[local] = importBinding{
						kind: bindNamed, local: local, imported: imported, resolved: resolved,
					}
				}
			}
		}
	}
	return nil
}

func (m *module) scanExport(opts Options, stmt *ts.Node, source []byte) error {
	specifier := syntax.ModuleSource(stmt, source)

	if syntax.IsExportAll(stmt) {
		if specifier == "" {
			return nil
		}
		resolved, err := m.resolveDep(opts, specifier)
		if err != nil {
			return err
		}
		all := exportAll{resolved: resolved}
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			child := stmt.NamedChild(i)
			if child.Kind() != "namespace_export" {
				continue
			}
			for j := uint(0); j < child.NamedChildCount(); j++ {
				if id := child.NamedChild(j); id.Kind() == "identifier" {
					all.nsAlias = id.Utf8Text(source)
				}
			}
		}
		m.exportAlls = append(m.exportAlls, all)
		return nil
	}

	clause := exportClause{}
	if specifier != "" {
		resolved, err := m.resolveDep(opts, specifier)
		if err != nil {
			return err
		}
		clause.resolved = &resolved
	}
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		node := stmt.NamedChild(i)
		if node.Kind() != "export_clause" {
			continue
		}
		for j := uint(0); j < node.NamedChildCount(); j++ {
			spec := node.NamedChild(j)
			if spec.Kind() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			local := name.Utf8Text(source)
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = alias.Utf8Text(source)
			}
			clause.specs = append(clause.specs, exportSpec{local: local, exported: exported})
		}
	}
	if len(clause.specs) > 0 {
		m.clauses = append(m.clauses, clause)
	}
	return nil
}

// scanVar records each declarator as a decl. Array initialisers keep their
// element structure; any other initialiser is re-tokenised lexically so
// rename rewrites can reach its identifier reads.
func (m *module) scanVar(stmt *ts.Node, source []byte) {
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		declarator := stmt.NamedChild(i)
		if declarator.Kind() != "variable_declarator" {
			continue
		}
		name := declarator.ChildByFieldName("name")
		value := declarator.ChildByFieldName("value")
		if name == nil || value == nil || name.Kind() != "identifier" {
			continue
		}

		d := decl{name: name.Utf8Text(source)}
		if value.Kind() == "array" {
			d.isArray = true
			for j := uint(0); j < value.NamedChildCount(); j++ {
				elem := value.NamedChild(j)
				switch elem.Kind() {
				case "identifier":
					d.tokens = append(d.tokens, token{ident: true, text: elem.Utf8Text(source)})
				default:
					d.tokens = append(d.tokens, token{text: elem.Utf8Text(source)})
				}
			}
		} else {
			// ident classification happens after the whole module is scanned
			text := value.Utf8Text(source)
			for _, tok := range syntax.TokenizeRE.FindAllString(text, -1) {
				d.tokens = append(d.tokens, token{text: tok})
			}
		}
		m.declIndex[d.name] = len(m.decls)
		m.decls = append(m.decls, d)
	}
}

