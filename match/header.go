package match

import (
	"net/http"
	"regexp"
)

// HeaderMatcher tests a single request header by name. The two
// concrete implementations are Exact and Regex matching.
type HeaderMatcher interface {
	Name() string
	MatchesHeaders(h http.Header) bool
}

// ExactHeader matches a header's first value by string equality.
// Header names are matched case-insensitively, following
// net/http.Header's own canonicalization.
type ExactHeader struct {
	name  string
	value string
}

// NewExactHeader builds an ExactHeader matcher for the given header
// name and expected value.
func NewExactHeader(name, value string) ExactHeader {
	return ExactHeader{name: name, value: value}
}

// Name implements HeaderMatcher.
func (e ExactHeader) Name() string { return e.name }

// MatchesHeaders implements HeaderMatcher.
func (e ExactHeader) MatchesHeaders(h http.Header) bool {
	got := h.Get(e.name)
	if got == "" && len(h.Values(e.name)) == 0 {
		return false
	}
	return got == e.value
}

// RegexHeader matches a header's first value against an unanchored
// regular expression.
type RegexHeader struct {
	name string
	re   *regexp.Regexp
}

// NewRegexHeader compiles pattern into a RegexHeader matcher for the
// given header name.
func NewRegexHeader(name, pattern string) (RegexHeader, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexHeader{}, err
	}
	return RegexHeader{name: name, re: re}, nil
}

// Name implements HeaderMatcher.
func (r RegexHeader) Name() string { return r.name }

// MatchesHeaders implements HeaderMatcher.
func (r RegexHeader) MatchesHeaders(h http.Header) bool {
	values, ok := h[http.CanonicalHeaderKey(r.name)]
	if !ok || len(values) == 0 {
		return false
	}
	return r.re.MatchString(values[0])
}
