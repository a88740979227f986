// Package textutil provides text normalization used when comparing brand
// labels and feed headers.
//
// Supplier files arrive with zero-width characters, non-breaking spaces, and
// accented variants of the same brand name. NormalizeLabel collapses all of
// those so "Bébé-Confort" plus a stray zero-width space and "bebe-confort"
// compare equal.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Zero-width and non-standard space characters that suppliers routinely embed
// in cell values. The space-like ones are rewritten to plain spaces, the rest
// dropped.
var (
	invisibleDropped = map[rune]struct{}{
		'\u200b': {}, // zero width space
		'\u200c': {}, // zero width non-joiner
		'\u200d': {}, // zero width joiner
		'\ufeff': {}, // byte order mark
		'\u2060': {}, // word joiner
		'\u180e': {}, // mongolian vowel separator
	}
	invisibleSpaces = map[rune]struct{}{
		'\u00a0': {}, // no-break space
		'\u2007': {}, // figure space
		'\u202f': {}, // narrow no-break space
	}
)

var accentFolder = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripInvisible removes zero-width characters and converts exotic spaces to
// plain spaces.
func StripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, ok := invisibleDropped[r]; ok {
			continue
		}
		if _, ok := invisibleSpaces[r]; ok {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FoldAccents maps accented characters to their ASCII base letters.
// Input that fails to transform is returned unchanged.
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeLabel produces the canonical comparison form of a free-text label:
// invisible characters stripped, accents folded, trimmed, lowercased.
func NormalizeLabel(s string) string {
	s = StripInvisible(s)
	s = FoldAccents(s)
	return strings.ToLower(strings.TrimSpace(s))
}
