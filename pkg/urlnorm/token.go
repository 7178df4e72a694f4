package urlnorm

import (
	"strings"
	"unicode/utf8"
)

// CompareToken is one unit of a token stream. It is a substring of the URL
// it was produced from, so it stays valid only while that string is kept.
type CompareToken string

// EscapedCompareToken compares raw URL components as if they had been
// percent-decoded, for parsers that hand back components undecoded.
// Decoding works on characters: an escape yields the character whose code
// point is the escaped byte, so "%C3%A9" decodes to "Ã©", not "é".
type EscapedCompareToken string

// Equal reports whether t and other decode to the same characters. %XY
// reads the next two characters as hex digits (a missing or invalid digit
// counts as 0) and '+' decodes to a space.
func (t EscapedCompareToken) Equal(other EscapedCompareToken) bool {
	if t == other {
		return true
	}
	a, b := string(t), string(other)
	for a != "" && b != "" {
		var ca, cb rune
		ca, a = nextDecoded(a)
		cb, b = nextDecoded(b)
		if ca != cb {
			return false
		}
	}
	return a == "" && b == ""
}

// Decode returns the decoded form of t.
func (t EscapedCompareToken) Decode() string {
	s := string(t)
	var b strings.Builder
	b.Grow(len(s))
	for s != "" {
		var r rune
		r, s = nextDecoded(s)
		b.WriteRune(r)
	}
	return b.String()
}

// nextDecoded decodes the first character of a non-empty s and returns
// the rest.
func nextDecoded(s string) (rune, string) {
	r, size := utf8.DecodeRuneInString(s)
	s = s[size:]
	switch r {
	case '+':
		return ' ', s
	case '%':
		var hi, lo rune
		hi, s = nextHexDigit(s)
		lo, s = nextHexDigit(s)
		return hi<<4 | lo, s
	default:
		return r, s
	}
}

// nextHexDigit consumes one character of s as a hex digit.
func nextHexDigit(s string) (rune, string) {
	if s == "" {
		return 0, s
	}
	r, size := utf8.DecodeRuneInString(s)
	return unhex(r), s[size:]
}

func unhex(c rune) rune {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
