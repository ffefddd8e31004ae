package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEscapeRoundTrip verifies Unescape(Escape(s)) == s for representative
// declaration content.
func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"interface User { id: number }",
		"line one\nline two\nline three",
		"\tindented\n\tmore",
		"template `with ${backticks}`\nand a tab\there",
		"/**\n * JSDoc block\n * @param x the value\n */",
		"unicode: héllo wörld 🚀\nnext",
	}
	for _, input := range inputs {
		assert.Equal(t, input, Unescape(Escape(input)), "round trip failed for %q", input)
	}
}

// TestEscapeRemovesControlCharacters verifies escaped output never carries a
// literal newline or tab.
func TestEscapeRemovesControlCharacters(t *testing.T) {
	escaped := Escape("a\nb\tc\n\td")
	assert.NotContains(t, escaped, "\n")
	assert.NotContains(t, escaped, "\t")
	assert.Contains(t, escaped, NewlineMarker)
	assert.Contains(t, escaped, TabMarker)
}

// TestUnescapeIdempotent verifies Unescape is idempotent on marker-free
// strings.
func TestUnescapeIdempotent(t *testing.T) {
	plain := "declare const x: number;"
	assert.Equal(t, plain, Unescape(plain))
	assert.Equal(t, plain, Unescape(Unescape(plain)))
}

// TestEscapeInjective verifies distinct inputs stay distinct.
func TestEscapeInjective(t *testing.T) {
	a := Escape("a\nb")
	b := Escape("a\tb")
	c := Escape("a b")
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

// TestEscapeNoOpFast verifies strings without newline or tab come back
// unchanged (same backing string, no allocation path).
func TestEscapeNoOpFast(t *testing.T) {
	plain := strings.Repeat("x", 1024)
	assert.Equal(t, plain, Escape(plain))
}
