package urlnorm

import (
	"net/url"
	"strings"
)

// URL is the parsed form a Normalizer works on. Path segments, query and
// fragment are raw (not percent-decoded). Absent components report false.
type URL interface {
	// Host returns the host without port, or false for URLs without an
	// authority.
	Host() (string, bool)
	// PathSegments returns the path split on '/', without the leading
	// slash, or false for opaque URLs such as mailto:.
	PathSegments() ([]string, bool)
	// Path returns the raw path.
	Path() string
	// Query returns the raw query string, or false if there is no '?'.
	Query() (string, bool)
	// Fragment returns the raw fragment, or false if there is no '#'.
	Fragment() (string, bool)
}

// Parse parses raw with net/url and adapts the result with FromURL.
func Parse(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return FromURL(u), nil
}

// FromURL adapts a *url.URL. The host is lowercased and stripped of its
// port; IPv6 hosts keep their brackets. A URL with an authority and no
// path is treated as having path "/".
func FromURL(u *url.URL) URL {
	pu := &parsedURL{
		opaque:   u.Opaque != "",
		query:    u.RawQuery,
		hasQuery: u.RawQuery != "" || u.ForceQuery,
	}

	if host := u.Hostname(); host != "" {
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		pu.host = strings.ToLower(host)
		pu.hasHost = true
	}

	if !pu.opaque {
		pu.path = u.EscapedPath()
		if pu.path == "" && pu.hasHost {
			pu.path = "/"
		}
	}

	if u.Fragment != "" || u.RawFragment != "" {
		pu.fragment = u.EscapedFragment()
		pu.hasFragment = true
	}

	return pu
}

type parsedURL struct {
	host        string
	hasHost     bool
	opaque      bool
	path        string
	query       string
	hasQuery    bool
	fragment    string
	hasFragment bool
}

func (u *parsedURL) Host() (string, bool) {
	return u.host, u.hasHost
}

func (u *parsedURL) PathSegments() ([]string, bool) {
	if u.opaque {
		return nil, false
	}
	return strings.Split(strings.TrimPrefix(u.path, "/"), "/"), true
}

func (u *parsedURL) Path() string {
	return u.path
}

func (u *parsedURL) Query() (string, bool) {
	return u.query, u.hasQuery
}

func (u *parsedURL) Fragment() (string, bool) {
	return u.fragment, u.hasFragment
}
