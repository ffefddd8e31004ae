package bundler

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"strings"
)

// outputPlan is the set of symbols, namespace objects and externals that
// land in one output file.
type outputPlan struct {
	kind      OutputKind
	entry     string // entry path for entry outputs
	fileName  string
	symbols   []symbolID
	nsModules []string
	chunkRefs []string // final names imported from the shared chunk
}

// planOutputs assigns every included symbol to its outputs. Without
// splitting each entry carries everything it reaches (shared statements are
// duplicated); with splitting, statements reachable from more than one
// entry move to one shared chunk.
func (l *linker) planOutputs(opts Options) []*outputPlan {
	splitting := opts.Splitting && len(opts.Entries) > 1

	shared := make(map[symbolID]bool)
	sharedNs := make(map[string]bool)
	if splitting {
		for sym, entries := range l.reachedBy {
			if len(entries) > 1 {
				shared[sym] = true
			}
		}
		for path, entries := range l.nsReachedBy {
			if len(entries) > 1 {
				sharedNs[path] = true
			}
		}
	}

	var chunk *outputPlan
	if len(shared) > 0 || len(sharedNs) > 0 {
		chunk = &outputPlan{kind: KindChunk}
		for _, sym := range l.order {
			if shared[sym] {
				chunk.symbols = append(chunk.symbols, sym)
			}
		}
		for _, path := range l.nsOrder {
			if sharedNs[path] {
				chunk.nsModules = append(chunk.nsModules, path)
			}
		}
		chunk.fileName = l.chunkFileName(chunk)
	}

	var plans []*outputPlan
	for _, entry := range opts.Entries {
		plan := &outputPlan{
			kind:     KindEntryPoint,
			entry:    entry,
			fileName: entryFileName(entry, opts.Naming),
		}
		refs := make(map[string]bool)
		for _, sym := range l.order {
			if !l.reachedBy[sym][entry] {
				continue
			}
			if shared[sym] {
				refs[l.renames[sym]] = true
				continue
			}
			plan.symbols = append(plan.symbols, sym)
		}
		for _, path := range l.nsOrder {
			if !l.nsReachedBy[path][entry] {
				continue
			}
			if sharedNs[path] {
				refs[l.nsObjects[path].local] = true
				continue
			}
			plan.nsModules = append(plan.nsModules, path)
		}
		plan.chunkRefs = sortedKeys(refs)
		plans = append(plans, plan)
	}

	if chunk != nil {
		plans = append(plans, chunk)
	}
	return plans
}

// chunkFileName derives the shared chunk's stable name from its content.
func (l *linker) chunkFileName(chunk *outputPlan) string {
	h := fnv.New32a()
	for _, sym := range chunk.symbols {
		fmt.Fprintf(h, "%s\x00%s\x00", sym.module, l.renames[sym])
	}
	for _, path := range chunk.nsModules {
		fmt.Fprintf(h, "ns:%s\x00", path)
	}
	return fmt.Sprintf("chunk-%08x.js", h.Sum32())
}

// entryFileName applies the naming pattern to one entry path. [name] is the
// entry base name without its TypeScript extension; [hash] is derived from
// the entry path. The JS extension follows the source flavour
// (.mts → .mjs, .cts → .cjs).
func entryFileName(entry, naming string) string {
	base := filepath.Base(entry)
	ext := jsExtensionFor(base)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSuffix(name, ".d")

	if naming == "" {
		return name + ext
	}
	h := fnv.New32a()
	h.Write([]byte(entry))
	out := strings.ReplaceAll(naming, "[name]", name)
	out = strings.ReplaceAll(out, "[hash]", fmt.Sprintf("%08x", h.Sum32()))
	if !strings.Contains(naming, ".") {
		out += ext
	}
	return out
}

// jsExtensionFor maps a source file name to its runtime JS extension.
func jsExtensionFor(base string) string {
	switch {
	case strings.HasSuffix(base, ".mts"):
		return ".mjs"
	case strings.HasSuffix(base, ".cts"):
		return ".cjs"
	default:
		return ".js"
	}
}

// render produces the bundled fake-JS text of one output plan.
func (l *linker) render(plan *outputPlan, chunkFile string) string {
	var sb strings.Builder

	// external imports needed by this output
	for _, key := range l.externalOrder {
		need := l.externals[key]
		if !l.externalNeededBy(plan, need) {
			continue
		}
		switch need.imported {
		case "*":
			fmt.Fprintf(&sb, "import * as %s from %q;\n", need.local, need.specifier)
		case "default":
			fmt.Fprintf(&sb, "import %s from %q;\n", need.local, need.specifier)
		default:
			if need.imported == need.local {
				fmt.Fprintf(&sb, "import { %s } from %q;\n", need.imported, need.specifier)
			} else {
				fmt.Fprintf(&sb, "import { %s as %s } from %q;\n", need.imported, need.local, need.specifier)
			}
		}
	}

	// shared chunk imports
	if len(plan.chunkRefs) > 0 && chunkFile != "" {
		fmt.Fprintf(&sb, "import { %s } from %q;\n",
			strings.Join(plan.chunkRefs, ", "), "./"+chunkFile)
	}

	// declarations, in inclusion order
	for _, sym := range plan.symbols {
		mod := l.modules[sym.module]
		index := mod.declIndex[sym.name]
		sb.WriteString(l.renderDecl(mod, mod.decls[index], l.renames[sym]))
		sb.WriteString("\n")
	}

	// namespace synthesis statements
	for _, path := range plan.nsModules {
		sb.WriteString(l.renderNamespace(path))
		sb.WriteString("\n")
	}

	// exports
	switch plan.kind {
	case KindEntryPoint:
		l.renderEntryExports(&sb, plan)
	case KindChunk:
		l.renderChunkExports(&sb, plan)
	}
	return sb.String()
}

// externalNeededBy reports whether any of the plan's declarations reference
// the external binding. Surface-only references count too.
func (l *linker) externalNeededBy(plan *outputPlan, need *externalNeed) bool {
	for _, sym := range plan.symbols {
		mod := l.modules[sym.module]
		index := mod.declIndex[sym.name]
		for _, tok := range mod.decls[index].tokens {
			if tok.ident && l.finalName(mod, tok.text) == need.local {
				return true
			}
		}
	}
	if plan.kind == KindEntryPoint {
		for _, exp := range l.surfaces[plan.entry] {
			if exp.ref.kind == refExternal &&
				exp.ref.specifier == need.specifier && exp.ref.imported == need.imported {
				return true
			}
		}
	}
	return false
}

// renderDecl writes one declaration with its identifier tokens rewritten to
// final names.
func (l *linker) renderDecl(mod *module, d decl, finalName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = ", finalName)
	if d.isArray {
		sb.WriteString("[")
		for i, tok := range d.tokens {
			if i > 0 {
				sb.WriteString(", ")
			}
			if tok.ident {
				sb.WriteString(l.finalName(mod, tok.text))
			} else {
				sb.WriteString(tok.text)
			}
		}
		sb.WriteString("];")
	} else {
		for _, tok := range d.tokens {
			if tok.ident {
				sb.WriteString(l.finalName(mod, tok.text))
			} else {
				sb.WriteString(tok.text)
			}
		}
		sb.WriteString(";")
	}
	return sb.String()
}

// renderNamespace writes the namespace-synthesis shim for one inlined
// module: NS(local, { exported: () => finalLocal, … });
func (l *linker) renderNamespace(path string) string {
	ns := l.nsObjects[path]
	target := l.modules[path]
	var props []string
	if target != nil {
		for _, name := range l.starNames(target, nil) {
			ref := l.resolveExport(target, name, nil)
			local, ok := l.exportSurfaceName(ref)
			if !ok {
				continue
			}
			props = append(props, fmt.Sprintf("%s: () => %s", name, local))
		}
	}
	return fmt.Sprintf("NS(%s, { %s });", ns.local, strings.Join(props, ", "))
}

// renderEntryExports writes the entry's export surface plus the alias edges
// the reverse transform needs to name synthesised namespaces.
func (l *linker) renderEntryExports(sb *strings.Builder, plan *outputPlan) {
	var specs []string
	exportedNames := make(map[string]bool)
	for _, exp := range l.surfaces[plan.entry] {
		local, ok := l.exportSurfaceName(exp.ref)
		if !ok {
			continue
		}
		exportedNames[exp.exported] = true
		if local == exp.exported {
			specs = append(specs, local)
		} else {
			specs = append(specs, local+" as "+exp.exported)
		}
	}

	// Namespace objects referenced only from type positions still need an
	// export alias: the reverse transform recovers the user-facing
	// namespace name from `export { exports_X as name }`.
	for _, path := range plan.nsModules {
		ns := l.nsObjects[path]
		if exportedNames[ns.userName] {
			continue
		}
		exportedNames[ns.userName] = true
		specs = append(specs, ns.local+" as "+ns.userName)
	}

	if len(specs) > 0 {
		fmt.Fprintf(sb, "export { %s };\n", strings.Join(specs, ", "))
	}
	for _, all := range l.externalAlls[plan.entry] {
		fmt.Fprintf(sb, "export * from %q;\n", all.resolved.Path)
	}
}

// renderChunkExports exposes every shared symbol under its final name.
func (l *linker) renderChunkExports(sb *strings.Builder, plan *outputPlan) {
	var specs []string
	for _, sym := range plan.symbols {
		specs = append(specs, l.renames[sym])
	}
	for _, path := range plan.nsModules {
		specs = append(specs, l.nsObjects[path].local)
	}
	if len(specs) > 0 {
		fmt.Fprintf(sb, "export { %s };\n", strings.Join(specs, ", "))
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
