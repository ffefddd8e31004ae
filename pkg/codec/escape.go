// Package codec provides the reserved-marker escape applied to string tokens
// before they are emitted into fake-JS.
//
// Some bundlers rewrite long or escape-heavy string literals into template
// literals. If a declaration contained a backtick, that rewrite would corrupt
// the reconstructed text. Substituting newline and tab with Private-Use-Area
// markers keeps every emitted string literal single-line and escape-free, so
// it survives the bundle byte-for-byte.
package codec

import "strings"

// Each marker is a PUA code point, a tagged ASCII body, and the same PUA
// code point again. The PUA character never appears in real TypeScript
// source, and the tag keeps the two markers distinguishable in logs.
const (
	// NewlineMarker substitutes for "\n" in tokenised string content.
	NewlineMarker = "dts:n"

	// TabMarker substitutes for "\t" in tokenised string content.
	TabMarker = "dts:t"
)

// markerRune is the PUA code point that delimits both markers.
const markerRune = ''

var (
	escaper   = strings.NewReplacer("\n", NewlineMarker, "\t", TabMarker)
	unescaper = strings.NewReplacer(NewlineMarker, "\n", TabMarker, "\t")
)

// Escape replaces newline and tab characters with the reserved markers.
//
// Escape is injective on inputs that do not already contain a marker, and
// its output contains no literal newline or tab.
func Escape(s string) string {
	if !strings.ContainsAny(s, "\n\t") {
		return s
	}
	return escaper.Replace(s)
}

// Unescape restores newline and tab characters from the reserved markers.
//
// Unescape(Escape(s)) == s for every s that lacks markers, and Unescape is
// idempotent on strings without markers.
func Unescape(s string) string {
	if !strings.ContainsRune(s, markerRune) {
		return s
	}
	return unescaper.Replace(s)
}
