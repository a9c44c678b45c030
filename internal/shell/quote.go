// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// quotePOSIX quotes a value so it is safe to splice into a bash/zsh script.
func quotePOSIX(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// Quote only fails on strings no shell can represent (NUL bytes).
		// Strip them and retry; the manifest never legitimately contains NUL.
		clean := strings.ReplaceAll(s, "\x00", "")
		quoted, err = syntax.Quote(clean, syntax.LangBash)
		if err != nil {
			return "''"
		}
	}
	return quoted
}

// quoteExpandPOSIX wraps a value in double quotes, escaping everything except
// the $ expansion syntax so variable references inside the value survive.
func quoteExpandPOSIX(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '`':
			b.WriteByte('\\')
			b.WriteRune(r)
		case 0:
			// unrepresentable, drop
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// quoteExpandFish is the fish equivalent: double quotes in fish recognize
// only $, \ and ".
func quoteExpandFish(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case 0:
			// unrepresentable, drop
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// quoteFish quotes a value for fish, which has no POSIX-style double-quote
// expansion rules; single quotes with escaped backslashes and quotes suffice.
func quoteFish(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case 0:
			// unrepresentable, drop
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
