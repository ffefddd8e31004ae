package transform

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/gnana997/dtsbundle/pkg/syntax"
)

// dynExpansion is the result of rewriting one dynamic type import: the
// static statements to inject ahead of the current declaration, and the
// identifier token that replaces the `import('M')…` sub-expression.
type dynExpansion struct {
	injected []string
	token    string
}

// expandDynamicImport rewrites a dynamic-type-import sub-expression at the
// start of text into one or two static statements plus an aliased local.
//
// Accepted grammar: `import ( QUOTE SPEC QUOTE ) ACCESS*` where
// `ACCESS ::= .Ident | [QUOTE anything QUOTE]`. Returns the number of bytes
// consumed from text. Any other surface is an invalid-dynamic-import error.
func (f *Forward) expandDynamicImport(st *fileState, text string) (dynExpansion, int, error) {
	p := &dynParser{text: text}
	spec, err := p.parseHead()
	if err != nil {
		return dynExpansion{}, 0, err
	}
	accessStart := p.pos
	accesses, err := p.parseAccesses()
	if err != nil {
		return dynExpansion{}, 0, err
	}
	accessRaw := text[accessStart:p.pos]

	exp := dynExpansion{}
	switch {
	case len(accesses) == 0:
		// import('M') → the whole module object.
		ns := st.namespaceAlias(spec, &exp)
		exp.token = ns

	case syntax.IsWord(accesses[0].name):
		// import('M').name → a named import, aliased to dodge collisions.
		local := st.namedAlias(spec, accesses[0].name, &exp)
		if len(accesses) > 1 {
			rest := accessRaw[accesses[0].rawLen:]
			helper := fmt.Sprintf("%s_%s", sanitizeIdent(accesses[0].name), hashSuffix(spec, accessRaw))
			exp.injected = append(exp.injected, fmt.Sprintf("var %s = %s%s;", helper, local, rest))
			exp.token = helper
		} else {
			exp.token = local
		}

	default:
		// Computed first access with non-identifier text: go through the
		// namespace object.
		ns := st.namespaceAlias(spec, &exp)
		helper := fmt.Sprintf("%s_%s", sanitizeIdent(spec), hashSuffix(spec, accessRaw))
		exp.injected = append(exp.injected, fmt.Sprintf("var %s = %s%s;", helper, ns, accessRaw))
		exp.token = helper
	}
	return exp, p.pos, nil
}

// namespaceAlias returns the injected local for `import * as NS from spec`,
// reusing an existing injection for the same module.
func (st *fileState) namespaceAlias(spec string, exp *dynExpansion) string {
	key := spec + "\x00*"
	if existing, ok := st.dynImports[key]; ok {
		return existing
	}
	ns := fmt.Sprintf("%s_%s", sanitizeIdent(spec), hashSuffix(spec))
	st.dynImports[key] = ns
	st.referenced[ns] = true
	exp.injected = append(exp.injected, fmt.Sprintf("import * as %s from %q;", ns, spec))
	return ns
}

// namedAlias returns the injected local for `import { name as N } from
// spec`, reusing an existing injection for the same module and name.
func (st *fileState) namedAlias(spec, name string, exp *dynExpansion) string {
	key := spec + "\x00" + name
	if existing, ok := st.dynImports[key]; ok {
		return existing
	}
	local := fmt.Sprintf("%s_%s", sanitizeIdent(name), hashSuffix(spec, name))
	st.dynImports[key] = local
	st.referenced[local] = true
	exp.injected = append(exp.injected, fmt.Sprintf("import { %s as %s } from %q;", name, local, spec))
	return local
}

// dynAccess is one member access following the import call.
type dynAccess struct {
	name   string // property text; "" when not identifier-shaped
	rawLen int    // bytes of this access in the raw chain
}

// dynParser is a tiny hand-rolled scanner over the dynamic-import surface.
type dynParser struct {
	text string
	pos  int
}

// parseHead consumes `import ( QUOTE SPEC QUOTE )` and returns SPEC.
func (p *dynParser) parseHead() (string, error) {
	if !strings.HasPrefix(p.text, "import") {
		return "", p.fail()
	}
	p.pos = len("import")
	p.skipSpace()
	if !p.eat('(') {
		return "", p.fail()
	}
	p.skipSpace()
	spec, ok := p.parseQuoted()
	if !ok {
		return "", p.fail()
	}
	p.skipSpace()
	if !p.eat(')') {
		return "", p.fail()
	}
	return spec, nil
}

// parseAccesses consumes the trailing `.Ident` and `[QUOTE … QUOTE]` chain.
func (p *dynParser) parseAccesses() ([]dynAccess, error) {
	var accesses []dynAccess
	for p.pos < len(p.text) {
		start := p.pos
		switch p.text[p.pos] {
		case '.':
			p.pos++
			name := p.parseIdent()
			if name == "" {
				return nil, p.fail()
			}
			accesses = append(accesses, dynAccess{name: name, rawLen: p.pos - start})
		case '[':
			p.pos++
			p.skipSpace()
			content, ok := p.parseQuoted()
			if !ok {
				return nil, p.fail()
			}
			p.skipSpace()
			if !p.eat(']') {
				return nil, p.fail()
			}
			name := ""
			if syntax.IsWord(content) {
				name = content
			}
			accesses = append(accesses, dynAccess{name: name, rawLen: p.pos - start})
		default:
			return accesses, nil
		}
	}
	return accesses, nil
}

func (p *dynParser) parseQuoted() (string, bool) {
	if p.pos >= len(p.text) {
		return "", false
	}
	quote := p.text[p.pos]
	if quote != '\'' && quote != '"' {
		return "", false
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case quote:
			content := p.text[start:p.pos]
			p.pos++
			return content, true
		}
		p.pos++
	}
	return "", false
}

func (p *dynParser) parseIdent() string {
	start := p.pos
	for p.pos < len(p.text) {
		c := p.text[p.pos]
		if c == '_' || c == '$' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.text[start:p.pos]
}

func (p *dynParser) skipSpace() {
	for p.pos < len(p.text) {
		switch p.text[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *dynParser) eat(c byte) bool {
	if p.pos < len(p.text) && p.text[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *dynParser) fail() error {
	surface := p.text
	if len(surface) > 60 {
		surface = surface[:60] + "…"
	}
	return fmt.Errorf("invalid dynamic import expression: %q", surface)
}

// sanitizeIdent reduces s to a valid identifier: every character outside
// [A-Za-z0-9_$] becomes an underscore, and a leading digit gets a prefix.
func sanitizeIdent(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$',
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9' && i > 0:
			sb.WriteByte(c)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// hashSuffix derives a short, stable suffix from its parts so repeated
// imports of the same type resolve to the same injected identifier.
func hashSuffix(parts ...string) string {
	h := fnv.New32a()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%08x", h.Sum32())
}
