// Package urlnorm decides whether two URLs point at the same resource.
//
// A Normalizer turns a parsed URL into an ordered stream of tokens: the host
// with www/mobile style prefixes removed, the non-empty path segments with a
// trailing file extension trimmed, the sorted query pairs minus tracking
// parameters, and the fragment when it carries a #! or /#/ route. Two URLs
// are the same when their token streams are equal.
//
//	n := urlnorm.Default()
//	a, _ := urlnorm.Parse("http://www.example.com/foo.html?utm_source=x")
//	b, _ := urlnorm.Parse("https://example.com/foo/")
//	n.AreSame(a, b) // true
//
// Tokens are substrings of the source URL and are not copied.
package urlnorm
