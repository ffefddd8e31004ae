// Package syntax provides the lexical rule set and shallow statement
// predicates shared by the forward and reverse declaration transforms.
//
// Everything in this package is syntactic. There is no semantic analysis:
// predicates classify top-level tree-sitter nodes, and the regex rules are a
// small fixed set of lexical patterns over declaration text.
package syntax

import (
	"regexp"
	"strings"
)

var (
	// ImportTypeRE matches a leading `import type ` on an import statement.
	ImportTypeRE = regexp.MustCompile(`^(\s*import)\s+type\s`)

	// ExportTypeRE matches a leading `export type ` on an export clause or
	// export-all statement. It deliberately requires a following brace or
	// star so that `export type Foo = …` (a type alias) is untouched.
	ExportTypeRE = regexp.MustCompile(`^(\s*export)\s+type\s*([{*])`)

	// ImportExportNamesRE captures the named-specifier braces group of an
	// import or export statement so per-specifier `type` modifiers can be
	// stripped.
	ImportExportNamesRE = regexp.MustCompile(`^(\s*(?:import|export)\b[^{'";]*\{)([^}]*)(\})`)

	// ImportExportWithDefaultRE is the variant with a preceding default
	// specifier (`import Foo, { … }`).
	ImportExportWithDefaultRE = regexp.MustCompile(`^(\s*import\s+[A-Za-z_$][A-Za-z0-9_$]*\s*,\s*\{)([^}]*)(\})`)

	// TypeWordRE matches the `type ` modifier inside a specifier list.
	TypeWordRE = regexp.MustCompile(`(^\s*|,\s*)type\s+`)

	// TokenizeRE splits declaration text into lexical units. Longer units
	// win: identifier-like words, JSDoc blocks, line comments, quoted
	// strings, template literals, then any single character.
	TokenizeRE = regexp.MustCompile(
		`[A-Za-z_$][A-Za-z0-9_$]*` +
			`|/\*[\s\S]*?\*/` +
			`|//[^\n]*` +
			`|"(?:[^"\\\n]|\\.)*"` +
			`|'(?:[^'\\\n]|\\.)*'` +
			"|`(?:[^`\\\\]|\\\\.)*`" +
			`|[\s\S]`)

	// capitalLetterRE is the fallback heuristic for word tokens that are
	// not in the referenced-names set: identifier-shaped and containing at
	// least one capital letter.
	capitalLetterRE = regexp.MustCompile(`[A-Z]`)

	// wordRE matches a full identifier-like token.
	wordRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

	// NodeModulesRE detects third-party importers by path.
	NodeModulesRE = regexp.MustCompile(`(?:^|[\\/])node_modules[\\/]`)

	// jsExtensionRE matches a runtime JS extension at the end of a module
	// specifier. The dot is escaped on purpose: the unescaped variant would
	// also match arbitrary-prefix extensions.
	jsExtensionRE = regexp.MustCompile(`\.(mjs|cjs|js)$`)
)

// IsWord reports whether tok is a single identifier-like token.
func IsWord(tok string) bool {
	return wordRE.MatchString(tok)
}

// LooksLikeTypeName applies the capital-letter heuristic: tok is
// identifier-shaped and contains a capital letter. Used only as a fallback
// when a token is absent from the referenced-names set.
func LooksLikeTypeName(tok string) bool {
	return IsWord(tok) && capitalLetterRE.MatchString(tok)
}

// Jsify strips every type-only modifier from an import or export statement so
// the remaining statement is legal JavaScript carrying the same module-graph
// edge. The statement text is otherwise preserved.
func Jsify(stmt string) string {
	stmt = ImportTypeRE.ReplaceAllString(stmt, "$1 ")
	stmt = ExportTypeRE.ReplaceAllString(stmt, "$1 $2")
	stmt = replaceSpecifierTypes(stmt, ImportExportWithDefaultRE)
	stmt = replaceSpecifierTypes(stmt, ImportExportNamesRE)
	return stmt
}

// replaceSpecifierTypes strips `type ` modifiers inside the braces group
// captured by re.
func replaceSpecifierTypes(stmt string, re *regexp.Regexp) string {
	return re.ReplaceAllStringFunc(stmt, func(m string) string {
		sub := re.FindStringSubmatch(m)
		inner := TypeWordRE.ReplaceAllString(sub[2], "$1")
		return sub[1] + inner + sub[3]
	})
}

// StripJSExtension removes a trailing `.js`, `.mjs` or `.cjs` from a module
// specifier. Applying it twice equals applying it once.
func StripJSExtension(spec string) string {
	return jsExtensionRE.ReplaceAllString(spec, "")
}

// IsNodeModulesPath reports whether path points under a node_modules tree.
func IsNodeModulesPath(path string) bool {
	return NodeModulesRE.MatchString(path)
}

// StripExportSyntax removes a leading `export ` or `export default ` prefix
// from a statement's text, leaving the raw declaration body.
func StripExportSyntax(stmt string) string {
	trimmed := strings.TrimLeft(stmt, " \t")
	lead := stmt[:len(stmt)-len(trimmed)]
	if rest, ok := strings.CutPrefix(trimmed, "export"); ok {
		rest = strings.TrimLeft(rest, " \t")
		if after, ok := strings.CutPrefix(rest, "default"); ok {
			return lead + strings.TrimLeft(after, " \t")
		}
		return lead + rest
	}
	return stmt
}

// InsertDefaultName names an unnamed default function or class declaration by
// inserting name after the `function` or `class` keyword. The input is the
// declaration text with export syntax already stripped.
func InsertDefaultName(decl, name string) string {
	for _, kw := range []string{"function", "class", "abstract class"} {
		if rest, ok := strings.CutPrefix(decl, kw); ok {
			// `function*` generators keep the star before the name.
			if kw == "function" {
				if starRest, star := strings.CutPrefix(rest, "*"); star {
					return kw + "* " + name + starRest
				}
			}
			return kw + " " + name + rest
		}
	}
	return decl
}
