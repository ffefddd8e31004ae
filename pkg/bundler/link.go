package bundler

import (
	"fmt"
	"sort"
)

// symbolID identifies one declaration statement across the bundle.
type symbolID struct {
	module string
	name   string
}

// refKind classifies what an identifier or export specifier resolves to.
type refKind int

const (
	refMissing refKind = iota
	refSymbol
	refExternal
	refNamespace
)

// resolvedRef is the outcome of resolving a name through the module graph.
type resolvedRef struct {
	kind      refKind
	sym       symbolID // refSymbol
	nsModule  string   // refNamespace: the inlined module behind the namespace
	specifier string   // refExternal
	imported  string   // refExternal: name on the external side; "*" for namespace
}

// externalNeed is one binding the bundle must import from an external
// module.
type externalNeed struct {
	specifier string
	imported  string // "*" means a namespace import
	local     string // final local name, assigned by the renamer
}

// nsObject is a synthesised namespace object for an inlined module.
type nsObject struct {
	module   string
	userName string // alias from the first consuming import
	local    string // final exports_* name, assigned by the renamer
}

// exportEntry is one name of an entry's (or chunk's) public surface.
type exportEntry struct {
	exported string
	ref      resolvedRef
}

// linker carries the state of one bundle link.
type linker struct {
	modules map[string]*module

	included  map[symbolID]bool
	order     []symbolID // inclusion order, drives deterministic renaming
	reachedBy map[symbolID]map[string]bool

	externals     map[string]*externalNeed // keyed by specifier\x00imported
	externalOrder []string
	nsObjects     map[string]*nsObject // keyed by module path
	nsOrder       []string
	nsReachedBy   map[string]map[string]bool

	renames map[symbolID]string
	taken   map[string]int

	surfaces     map[string][]exportEntry // entry path → export surface
	externalAlls map[string][]exportAll   // entry path → verbatim export-alls
}

func newLinker(modules map[string]*module) *linker {
	return &linker{
		modules:      modules,
		included:     make(map[symbolID]bool),
		reachedBy:    make(map[symbolID]map[string]bool),
		externals:    make(map[string]*externalNeed),
		nsObjects:    make(map[string]*nsObject),
		nsReachedBy:  make(map[string]map[string]bool),
		renames:      make(map[symbolID]string),
		taken:        make(map[string]int),
		surfaces:     make(map[string][]exportEntry),
		externalAlls: make(map[string][]exportAll),
	}
}

// link computes each entry's export surface, marks reachability, and
// assigns final names.
func (l *linker) link(entries []string) error {
	for _, entry := range entries {
		mod, ok := l.modules[entry]
		if !ok {
			return fmt.Errorf("entry module %s was not loaded", entry)
		}
		surface, externalStars := l.entrySurface(mod)
		l.surfaces[entry] = surface
		l.externalAlls[entry] = externalStars

		for _, exp := range surface {
			l.include(entry, exp.ref, exp.exported)
		}
	}
	l.assignNames()
	return nil
}

// entrySurface flattens an entry's export clauses and internal export-alls
// into an ordered name list. Local exports shadow star exports; external
// export-alls stay as statements.
func (l *linker) entrySurface(mod *module) ([]exportEntry, []exportAll) {
	var surface []exportEntry
	seen := make(map[string]bool)
	add := func(exported string, ref resolvedRef) {
		if seen[exported] || ref.kind == refMissing {
			return
		}
		seen[exported] = true
		surface = append(surface, exportEntry{exported: exported, ref: ref})
	}

	for _, clause := range mod.clauses {
		for _, spec := range clause.specs {
			add(spec.exported, l.resolveClauseSpec(mod, clause, spec, nil))
		}
	}

	var externalStars []exportAll
	for _, all := range mod.exportAlls {
		if all.nsAlias != "" {
			if all.resolved.External {
				add(all.nsAlias, resolvedRef{kind: refExternal, specifier: all.resolved.Path, imported: "*"})
			} else {
				add(all.nsAlias, resolvedRef{kind: refNamespace, nsModule: all.resolved.Path})
			}
			continue
		}
		if all.resolved.External {
			externalStars = append(externalStars, all)
			continue
		}
		target := l.modules[all.resolved.Path]
		if target == nil {
			continue
		}
		for _, name := range l.starNames(target, nil) {
			if name == "default" {
				continue
			}
			add(name, l.resolveExport(target, name, nil))
		}
	}
	return surface, externalStars
}

// starNames lists every name an `export *` of mod forwards, in sorted order.
func (l *linker) starNames(mod *module, seen map[string]bool) []string {
	if seen == nil {
		seen = make(map[string]bool)
	}
	if seen[mod.path] {
		return nil
	}
	seen[mod.path] = true

	names := make(map[string]bool)
	for _, clause := range mod.clauses {
		for _, spec := range clause.specs {
			names[spec.exported] = true
		}
	}
	for _, all := range mod.exportAlls {
		if all.nsAlias != "" {
			names[all.nsAlias] = true
			continue
		}
		if all.resolved.External {
			continue
		}
		if target := l.modules[all.resolved.Path]; target != nil {
			for _, name := range l.starNames(target, seen) {
				names[name] = true
			}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted
}

// resolveExport resolves mod's exported name through re-export chains.
func (l *linker) resolveExport(mod *module, name string, seen map[symbolID]bool) resolvedRef {
	if seen == nil {
		seen = make(map[symbolID]bool)
	}
	key := symbolID{module: mod.path, name: name}
	if seen[key] {
		return resolvedRef{}
	}
	seen[key] = true

	for _, clause := range mod.clauses {
		for _, spec := range clause.specs {
			if spec.exported != name {
				continue
			}
			return l.resolveClauseSpec(mod, clause, spec, seen)
		}
	}
	for _, all := range mod.exportAlls {
		if all.nsAlias == name {
			if all.resolved.External {
				return resolvedRef{kind: refExternal, specifier: all.resolved.Path, imported: "*"}
			}
			return resolvedRef{kind: refNamespace, nsModule: all.resolved.Path}
		}
	}
	for _, all := range mod.exportAlls {
		if all.nsAlias != "" || all.resolved.External || name == "default" {
			continue
		}
		target := l.modules[all.resolved.Path]
		if target == nil {
			continue
		}
		if ref := l.resolveExport(target, name, seen); ref.kind != refMissing {
			return ref
		}
	}
	return resolvedRef{}
}

func (l *linker) resolveClauseSpec(mod *module, clause exportClause, spec exportSpec, seen map[symbolID]bool) resolvedRef {
	if clause.resolved == nil {
		return l.resolveLocal(mod, spec.local, seen)
	}
	if clause.resolved.External {
		return resolvedRef{kind: refExternal, specifier: clause.resolved.Path, imported: spec.local}
	}
	target := l.modules[clause.resolved.Path]
	if target == nil {
		return resolvedRef{}
	}
	return l.resolveExport(target, spec.local, seen)
}

// resolveLocal resolves a name in module scope: a local declaration wins,
// then import bindings.
func (l *linker) resolveLocal(mod *module, name string, seen map[symbolID]bool) resolvedRef {
	if _, ok := mod.declIndex[name]; ok {
		return resolvedRef{kind: refSymbol, sym: symbolID{module: mod.path, name: name}}
	}
	binding, ok := mod.bindings[name]
	if !ok {
		return resolvedRef{}
	}
	switch binding.kind {
	case bindNamespace:
		if binding.resolved.External {
			return resolvedRef{kind: refExternal, specifier: binding.resolved.Path, imported: "*"}
		}
		return resolvedRef{kind: refNamespace, nsModule: binding.resolved.Path}
	default:
		if binding.resolved.External {
			return resolvedRef{kind: refExternal, specifier: binding.resolved.Path, imported: binding.imported}
		}
		target := l.modules[binding.resolved.Path]
		if target == nil {
			return resolvedRef{}
		}
		return l.resolveExport(target, binding.imported, seen)
	}
}

// include marks a resolved reference reachable from entry, transitively.
// hint is the consumer-side local name, preferred when naming external
// bindings and namespace objects.
func (l *linker) include(entry string, ref resolvedRef, hint string) {
	switch ref.kind {
	case refSymbol:
		l.includeSymbol(entry, ref.sym)
	case refExternal:
		l.includeExternal(entry, ref.specifier, ref.imported, hint)
	case refNamespace:
		l.includeNamespace(entry, ref.nsModule, hint)
	}
}

func (l *linker) includeSymbol(entry string, sym symbolID) {
	if l.reachedBy[sym] == nil {
		l.reachedBy[sym] = make(map[string]bool)
	}
	if l.reachedBy[sym][entry] {
		return
	}
	l.reachedBy[sym][entry] = true

	first := !l.included[sym]
	if first {
		l.included[sym] = true
		l.order = append(l.order, sym)
	}

	mod := l.modules[sym.module]
	index, ok := mod.declIndex[sym.name]
	if !ok {
		return
	}
	for _, tok := range mod.decls[index].tokens {
		if !tok.ident {
			continue
		}
		l.include(entry, l.resolveLocal(mod, tok.text, nil), tok.text)
	}
}

func (l *linker) includeExternal(entry, specifier, imported, consumerLocal string) {
	key := specifier + "\x00" + imported
	if _, ok := l.externals[key]; !ok {
		// the first consumer's local alias names the binding
		l.externals[key] = &externalNeed{
			specifier: specifier,
			imported:  imported,
			local:     consumerLocal,
		}
		l.externalOrder = append(l.externalOrder, key)
	}
}

// includeNamespace materialises the namespace object of an inlined module:
// every export of the target becomes reachable.
func (l *linker) includeNamespace(entry, modulePath, consumerLocal string) {
	if l.nsReachedBy[modulePath] == nil {
		l.nsReachedBy[modulePath] = make(map[string]bool)
	}
	already := l.nsReachedBy[modulePath][entry]
	l.nsReachedBy[modulePath][entry] = true

	ns, ok := l.nsObjects[modulePath]
	if !ok {
		userName := consumerLocal
		if userName == "" {
			userName = "ns"
		}
		ns = &nsObject{module: modulePath, userName: userName}
		l.nsObjects[modulePath] = ns
		l.nsOrder = append(l.nsOrder, modulePath)
	} else if ns.userName == "ns" && consumerLocal != "" {
		ns.userName = consumerLocal
	}
	if already {
		return
	}

	target := l.modules[modulePath]
	if target == nil {
		return
	}
	for _, name := range l.starNames(target, nil) {
		l.include(entry, l.resolveExport(target, name, nil), name)
	}
}

// assignNames gives every included symbol, external binding and namespace
// object its final name. First come keeps its own name; collisions append a
// number starting at 2.
func (l *linker) assignNames() {
	claim := func(base string) string {
		if base == "" {
			base = "_"
		}
		count := l.taken[base]
		l.taken[base]++
		if count == 0 {
			return base
		}
		return fmt.Sprintf("%s%d", base, count+1)
	}

	for _, sym := range l.order {
		l.renames[sym] = claim(sym.name)
	}
	for _, key := range l.externalOrder {
		need := l.externals[key]
		base := need.local
		if base == "" {
			base = need.imported
			if base == "*" || base == "default" {
				base = "_" + base
			}
		}
		need.local = claim(base)
	}
	for _, path := range l.nsOrder {
		ns := l.nsObjects[path]
		ns.local = claim("exports_" + ns.userName)
	}
}

// finalName rewrites one identifier token of a declaration in mod to its
// bundled name. Unresolvable tokens (globals, heuristic hits) stay as-is.
func (l *linker) finalName(mod *module, name string) string {
	ref := l.resolveLocal(mod, name, nil)
	switch ref.kind {
	case refSymbol:
		if renamed, ok := l.renames[ref.sym]; ok {
			return renamed
		}
	case refExternal:
		if need, ok := l.externals[ref.specifier+"\x00"+ref.imported]; ok {
			return need.local
		}
	case refNamespace:
		if ns, ok := l.nsObjects[ref.nsModule]; ok {
			return ns.local
		}
	}
	return name
}

// exportSurfaceName resolves a surface entry's local-side final name.
func (l *linker) exportSurfaceName(ref resolvedRef) (string, bool) {
	switch ref.kind {
	case refSymbol:
		name, ok := l.renames[ref.sym]
		return name, ok
	case refExternal:
		if need, ok := l.externals[ref.specifier+"\x00"+ref.imported]; ok {
			return need.local, true
		}
	case refNamespace:
		if ns, ok := l.nsObjects[ref.nsModule]; ok {
			return ns.local, true
		}
	}
	return "", false
}
