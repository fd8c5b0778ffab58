package text

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const tatweel = '\u0640'

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
			cases.Fold(),
		)
	},
}

// Arabic code points commonly typed in place of their Persian twins.
var persianFold = map[rune]rune{
	'\u064a': '\u06cc', // arabic yeh
	'\u0649': '\u06cc', // alef maksura
	'\u0643': '\u06a9', // arabic kaf
}

func fold(s string) string {
	s = strings.ToValidUTF8(s, "")
	tr := chainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Normalize collapses obfuscated text into a comparable skeleton: it folds
// case and compatibility forms, drops separators (whitespace, punctuation,
// symbols, format characters, tatweel) and squeezes repeated runes.
// Digits and letters of every script survive.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	var last rune = -1
	for _, r := range fold(s) {
		if isSeparator(r) {
			continue
		}
		if mapped, ok := persianFold[r]; ok {
			r = mapped
		}
		if r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

// LetterSkeleton keeps only ASCII letters of s, lowercased. The second value
// has runs of the same letter squeezed to one.
func LetterSkeleton(s string) (raw string, collapsed string) {
	if s == "" {
		return "", ""
	}

	var rb, cb strings.Builder
	var last rune = -1
	for _, r := range fold(s) {
		if r < 'a' || r > 'z' {
			continue
		}
		rb.WriteRune(r)
		if r != last {
			cb.WriteRune(r)
		}
		last = r
	}
	return rb.String(), cb.String()
}

func isSeparator(r rune) bool {
	switch {
	case r == '_', r == tatweel:
		return true
	case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
		return true
	case unicode.Is(unicode.Cf, r), unicode.IsControl(r):
		return true
	}
	return false
}
