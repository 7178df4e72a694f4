package urlnorm

import (
	"fmt"
	"regexp"
	"strings"
)

// Tracking parameters dropped from the query by default.
var defaultIgnoredQueryParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"utm_expid",
	"gclid",
	"_ga",
	"_gl",
	"msclkid",
	"fbclid",
	"mc_cid",
	"mc_eid",
	`[Ww][Tt]\.mc_(id|ev)`,
	`__[a-z]+`,
}

// Common www- and mobile-style host prefixes seen in scraped data:
// www, www1, ww1, www-03, m, mobile.
const defaultHostPrefix = `(www?[0-9]*|m|mobile)(-[a-z0-9]{1,3})?\.`

// Extensions that look like .html, .php5, .js. At most one trailing digit.
const defaultExtensionSuffix = `[a-zA-Z]+[0-9]?$`

const defaultPathExtensionLength = 6

// Options is the rule set a Normalizer is compiled from. The With methods
// return modified copies, so an Options value can be shared and extended
// freely. Patterns are only checked by Compile.
type Options struct {
	IgnoredQueryParams           []string
	TrimmedHostPrefixes          []string
	TrimmedPathExtensionSuffixes []string
	PathExtensionLength          int
}

// NewOptions returns an empty rule set that normalizes nothing beyond
// the structural rules (empty segments, query order, fragments).
func NewOptions() Options {
	return Options{}
}

// DefaultOptions returns the default rule set. Each call returns a new
// value that shares no state with previous ones.
func DefaultOptions() Options {
	return NewOptions().
		WithIgnoredQueryParams(defaultIgnoredQueryParams...).
		WithTrimmedHostPrefixes(defaultHostPrefix).
		WithTrimmedPathExtensionSuffixes(defaultExtensionSuffix).
		WithPathExtensionLength(defaultPathExtensionLength)
}

// WithIgnoredQueryParams replaces the ignored query parameter patterns.
func (o Options) WithIgnoredQueryParams(patterns ...string) Options {
	o.IgnoredQueryParams = clonePatterns(patterns)
	return o
}

// WithTrimmedHostPrefixes replaces the host prefix patterns.
func (o Options) WithTrimmedHostPrefixes(patterns ...string) Options {
	o.TrimmedHostPrefixes = clonePatterns(patterns)
	return o
}

// WithTrimmedPathExtensionSuffixes replaces the path extension patterns.
func (o Options) WithTrimmedPathExtensionSuffixes(patterns ...string) Options {
	o.TrimmedPathExtensionSuffixes = clonePatterns(patterns)
	return o
}

// WithPathExtensionLength sets the longest extension that may be trimmed.
func (o Options) WithPathExtensionLength(n int) Options {
	o.PathExtensionLength = n
	return o
}

// Compile builds an immutable Normalizer from the rule set.
func (o Options) Compile() (*Normalizer, error) {
	ignored, err := compileRule("ignored query params", o.IgnoredQueryParams, `^(?:`, `)$`)
	if err != nil {
		return nil, err
	}
	hosts, err := compileRule("trimmed host prefixes", o.TrimmedHostPrefixes, `\A(?:`, `)`)
	if err != nil {
		return nil, err
	}
	suffixes, err := compileRule("trimmed path extension suffixes", o.TrimmedPathExtensionSuffixes, `(?:`, `)$`)
	if err != nil {
		return nil, err
	}

	length := o.PathExtensionLength
	if length < 0 {
		length = 0
	}

	return &Normalizer{
		ignoredQueryParams:           ignored,
		trimmedHostPrefixes:          hosts,
		trimmedPathExtensionSuffixes: suffixes,
		pathExtensionLength:          length,
	}, nil
}

// CompileError reports a rule list whose joined pattern is not a valid
// regular expression.
type CompileError struct {
	Rule    string
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("urlnorm: invalid %s pattern %q: %v", e.Rule, e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// compileRule joins patterns into a single alternation wrapped in prefix and
// suffix. An empty list yields a nil matcher, which matches nothing.
func compileRule(rule string, patterns []string, prefix, suffix string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	expr := prefix + strings.Join(patterns, "|") + suffix
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &CompileError{Rule: rule, Pattern: expr, Err: err}
	}
	return re, nil
}

func clonePatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	return append([]string(nil), patterns...)
}
