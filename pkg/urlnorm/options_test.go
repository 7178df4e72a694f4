package urlnorm

import (
	"errors"
	"regexp/syntax"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Len(t, opts.IgnoredQueryParams, 15)
	assert.Contains(t, opts.IgnoredQueryParams, "utm_source")
	assert.Contains(t, opts.IgnoredQueryParams, `__[a-z]+`)
	assert.Len(t, opts.TrimmedHostPrefixes, 1)
	assert.Len(t, opts.TrimmedPathExtensionSuffixes, 1)
	assert.Equal(t, 6, opts.PathExtensionLength)

	_, err := opts.Compile()
	require.NoError(t, err)
}

func TestDefaultOptionsIndependent(t *testing.T) {
	first := DefaultOptions()
	first.IgnoredQueryParams[0] = "changed"

	second := DefaultOptions()
	assert.Equal(t, "utm_source", second.IgnoredQueryParams[0])
}

func TestOptionsBuilderReturnsCopies(t *testing.T) {
	base := DefaultOptions()
	params := []string{"ref"}

	short := base.WithPathExtensionLength(2)
	custom := base.WithIgnoredQueryParams(params...)
	params[0] = "mutated"

	assert.Equal(t, 6, base.PathExtensionLength)
	assert.Equal(t, 2, short.PathExtensionLength)
	assert.Len(t, base.IgnoredQueryParams, 15)
	assert.Equal(t, []string{"ref"}, custom.IgnoredQueryParams)
}

func TestIgnoredQueryParamsWholeKeyMatch(t *testing.T) {
	n := Default()

	tests := []struct {
		key     string
		ignored bool
	}{
		{"utm_source", true},
		{"utm_expid", true},
		{"_ga", true},
		{"WT.mc_id", true},
		{"wt.mc_ev", true},
		{"Wt.mc_id", true},
		{"__hstc", true},
		{"__HSTC", false},
		{"xutm_source", false},
		{"utm_sourcex", false},
		{"_gax", false},
		{"page", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			u := mustParse(t, "https://example.com/?"+tt.key+"=1")
			got := n.ComputeNormalizationString(u)
			if tt.ignored {
				assert.Equal(t, "example.com:", got)
			} else {
				assert.Equal(t, "example.com:"+tt.key+":1:", got)
			}
		})
	}
}

func TestCustomOptions(t *testing.T) {
	n, err := DefaultOptions().
		WithIgnoredQueryParams("ref", "ref_src").
		WithTrimmedHostPrefixes(`amp\.`).
		WithTrimmedPathExtensionSuffixes(`amp`).
		Compile()
	require.NoError(t, err)

	a := mustParse(t, "https://amp.example.com/story.amp?ref=feed&id=3")
	b := mustParse(t, "https://example.com/story?id=3&ref_src=twsrc")
	assert.True(t, n.AreSame(a, b))

	// utm_source is no longer ignored.
	c := mustParse(t, "https://example.com/story?utm_source=x")
	assert.Equal(t, "example.com:story:utm_source:x:", n.ComputeNormalizationString(c))
}

func TestEmptyOptions(t *testing.T) {
	n, err := NewOptions().Compile()
	require.NoError(t, err)

	u := mustParse(t, "http://www.example.com/foo.html?utm_source=x")
	assert.Equal(t, []string{"www.example.com", "foo.html", "utm_source", "x"}, tokenStrings(n.Tokens(u)))
}

func TestCompileError(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		rule string
	}{
		{"query params", DefaultOptions().WithIgnoredQueryParams("utm_(source"), "ignored query params"},
		{"host prefixes", DefaultOptions().WithTrimmedHostPrefixes(`www[`), "trimmed host prefixes"},
		{"extension suffixes", DefaultOptions().WithTrimmedPathExtensionSuffixes(`*html`), "trimmed path extension suffixes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.opts.Compile()
			require.Error(t, err)
			assert.Nil(t, n)

			var compileErr *CompileError
			require.True(t, errors.As(err, &compileErr))
			assert.Equal(t, tt.rule, compileErr.Rule)
			assert.Contains(t, err.Error(), tt.rule)

			var syntaxErr *syntax.Error
			assert.True(t, errors.As(err, &syntaxErr))
		})
	}
}

func TestNegativeExtensionLength(t *testing.T) {
	n, err := DefaultOptions().WithPathExtensionLength(-1).Compile()
	require.NoError(t, err)

	assert.Equal(t, "x.com:foo.html:", n.ComputeNormalizationString(mustParse(t, "http://x.com/foo.html")))
}
