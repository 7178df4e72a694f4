package urlnorm

import (
	"iter"
	"regexp"
	"slices"
	"strings"
)

// Separator follows every token in a normalization string.
const Separator = ':'

// Normalizer compares URLs under a compiled rule set. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	ignoredQueryParams           *regexp.Regexp
	trimmedHostPrefixes          *regexp.Regexp
	trimmedPathExtensionSuffixes *regexp.Regexp
	pathExtensionLength          int
}

// Default returns a Normalizer compiled from DefaultOptions.
func Default() *Normalizer {
	n, err := DefaultOptions().Compile()
	if err != nil {
		panic("urlnorm: default options failed to compile: " + err.Error())
	}
	return n
}

// NormalizeHost returns the host of u with every leading trimmed prefix
// removed, so m.m.www.example.com becomes example.com. It returns false
// when u has no host.
func (n *Normalizer) NormalizeHost(u URL) (string, bool) {
	host, ok := u.Host()
	if !ok {
		return "", false
	}
	return n.trimHost(host), true
}

func (n *Normalizer) trimHost(host string) string {
	if n.trimmedHostPrefixes == nil {
		return host
	}
	for host != "" {
		loc := n.trimmedHostPrefixes.FindStringIndex(host)
		if loc == nil || loc[1] == 0 {
			break
		}
		host = host[loc[1]:]
	}
	return host
}

// TokenStream yields the comparison tokens of u in order. Ranging over it
// again recomputes the same tokens.
func (n *Normalizer) TokenStream(u URL) iter.Seq[CompareToken] {
	return func(yield func(CompareToken) bool) {
		for _, tok := range n.Tokens(u) {
			if !yield(tok) {
				return
			}
		}
	}
}

// Tokens returns the comparison tokens of u: the normalized host, the path
// segments, the sorted query keys and values, then the route fragment.
// Empty tokens are never included.
func (n *Normalizer) Tokens(u URL) []CompareToken {
	out := make([]CompareToken, 0, 8)
	push := func(s string) {
		if s != "" {
			out = append(out, CompareToken(s))
		}
	}

	host, _ := n.NormalizeHost(u)
	push(host)

	if segments, ok := u.PathSegments(); ok {
		last := -1
		for i, seg := range segments {
			if seg != "" {
				last = i
			}
		}
		for i, seg := range segments {
			if seg == "" {
				continue
			}
			if i == last {
				seg = n.trimExtension(seg)
			}
			push(seg)
		}
	}

	if query, ok := u.Query(); ok {
		for _, p := range n.queryPairs(query) {
			push(p.key)
			push(p.value)
		}
	}

	if fragment, ok := u.Fragment(); ok {
		switch {
		case strings.HasPrefix(fragment, "!"):
			push(fragment[1:])
		case strings.HasPrefix(fragment, "/") && strings.HasSuffix(u.Path(), "/"):
			push(fragment[1:])
		}
	}

	return out
}

// trimExtension drops the final ".ext" of a segment when ext is short
// enough and matches the suffix rules.
func (n *Normalizer) trimExtension(seg string) string {
	dot := strings.LastIndexByte(seg, '.')
	if dot < 0 || n.trimmedPathExtensionSuffixes == nil {
		return seg
	}
	ext := seg[dot+1:]
	if len(ext) <= n.pathExtensionLength && n.trimmedPathExtensionSuffixes.MatchString(ext) {
		return seg[:dot]
	}
	return seg
}

type queryPair struct {
	key   string
	value string
}

func (n *Normalizer) queryPairs(query string) []queryPair {
	pairs := make([]queryPair, 0, strings.Count(query, "&")+1)
	for _, bit := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(bit, "=")
		if n.ignoredQueryParams != nil && n.ignoredQueryParams.MatchString(key) {
			continue
		}
		pairs = append(pairs, queryPair{key: key, value: value})
	}
	slices.SortFunc(pairs, func(a, b queryPair) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return strings.Compare(a.value, b.value)
	})
	return pairs
}

// AreSame reports whether a and b produce identical token streams.
func (n *Normalizer) AreSame(a, b URL) bool {
	return slices.Equal(n.Tokens(a), n.Tokens(b))
}

// ComputeNormalizationString joins the tokens of u, each followed by
// Separator, into a key suitable for storage and lookup. Separators inside
// tokens are not escaped, so two different token streams can in rare
// cases share a key; AreSame has no such ambiguity.
func (n *Normalizer) ComputeNormalizationString(u URL) string {
	tokens := n.Tokens(u)
	size := len(tokens)
	for _, tok := range tokens {
		size += len(tok)
	}

	var b strings.Builder
	b.Grow(size)
	for _, tok := range tokens {
		b.WriteString(string(tok))
		b.WriteByte(Separator)
	}
	return b.String()
}
