package parser

import (
	"path/filepath"
	"strings"
)

// Language selects which tree-sitter grammar parses a file.
type Language int

const (
	// LanguageTypeScript parses .ts, .mts, .cts and .d.ts files, including
	// the declaration-only subset the forward transform consumes.
	LanguageTypeScript Language = iota
	// LanguageJavaScript parses .js/.mjs/.cjs files and the fake-JS
	// intermediate form produced by the forward transform.
	LanguageJavaScript
	// LanguageUnknown represents an unsupported file type.
	LanguageUnknown
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the grammar to use from a file path.
// Returns LanguageUnknown if the extension is not recognized.
func DetectLanguage(filePath string) Language {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether filePath needs the TSX grammar variant.
func IsTSXFile(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".tsx")
}

// IsDeclarationFile reports whether filePath is a type-declaration file
// (.d.ts, .d.mts or .d.cts). Declaration files skip isolated-declaration
// emission: their text is already declaration text.
func IsDeclarationFile(filePath string) bool {
	lower := strings.ToLower(filepath.Base(filePath))
	return strings.HasSuffix(lower, ".d.ts") ||
		strings.HasSuffix(lower, ".d.mts") ||
		strings.HasSuffix(lower, ".d.cts")
}

// IsSourceFile reports whether filePath is a TypeScript input the generator
// accepts as an entrypoint.
func IsSourceFile(filePath string) bool {
	return DetectLanguage(filePath) == LanguageTypeScript
}

// DeclarationExtension maps a bundled chunk's JS extension to the matching
// declaration extension: .js → .d.ts, .mjs → .d.mts, .cjs → .d.cts.
func DeclarationExtension(jsExt string) string {
	switch strings.ToLower(jsExt) {
	case ".mjs":
		return ".d.mts"
	case ".cjs":
		return ".d.cts"
	default:
		return ".d.ts"
	}
}
