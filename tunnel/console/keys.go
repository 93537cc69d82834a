package console

import (
	"unicode"
	"unicode/utf8"

	"github.com/termtunnel/termtunnel/tunnel"
)

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

// decodeKey decodes the first keystroke in b. It returns the number of bytes
// the key occupied, or 0 if b does not hold a complete key yet.
func decodeKey(b []byte) (tunnel.Key, int) {
	if len(b) == 0 {
		return tunnel.Key{}, 0
	}
	switch c := b[0]; {
	case c == '\r' || c == '\n':
		return tunnel.Key{Kind: tunnel.KeyEnter}, 1
	case c == keyDelete || c == keyBackspace:
		return tunnel.Key{Kind: tunnel.KeyBackspace}, 1
	case c == keyCtrlC || c == keyCtrlD:
		return tunnel.Key{Kind: tunnel.KeyInterrupt}, 1
	case c == keyEscape:
		return tunnel.Key{Kind: tunnel.KeyOther}, escapeLength(b)
	case c < 0x20:
		return tunnel.Key{Kind: tunnel.KeyOther}, 1
	}

	if !utf8.FullRune(b) {
		return tunnel.Key{}, 0
	}
	r, size := utf8.DecodeRune(b)
	if r == utf8.RuneError || !unicode.IsPrint(r) {
		return tunnel.Key{Kind: tunnel.KeyOther}, size
	}
	return tunnel.Key{Kind: tunnel.KeyChar, Rune: r}, size
}

// escapeLength returns the length of the escape sequence at the start of b,
// e.g. the arrow keys "\x1b[A" or "\x1bOA". A lone escape counts as one byte.
func escapeLength(b []byte) int {
	if len(b) < 2 {
		return 1
	}
	switch b[1] {
	case '[':
		for i := 2; i < len(b); i++ {
			if b[i] >= 0x40 && b[i] <= 0x7e {
				return i + 1
			}
		}
		return len(b)
	case 'O':
		return min(3, len(b))
	default:
		return 2
	}
}
