package match

import "regexp"

// PathMatcher tests a request path. The three concrete
// implementations below are Exact, Prefix and Regex matching.
type PathMatcher interface {
	MatchesPath(path string) bool
}

// ExactPath matches a path by string equality.
type ExactPath string

// MatchesPath implements PathMatcher.
func (e ExactPath) MatchesPath(path string) bool { return path == string(e) }

// PrefixPath matches a path by segment-wise prefix, see PathPrefix.
type PrefixPath struct {
	Prefix PathPrefix
}

// NewPrefixPath parses value into a PrefixPath matcher.
func NewPrefixPath(value string) (PrefixPath, error) {
	prefix, err := ParsePathPrefix(value)
	if err != nil {
		return PrefixPath{}, err
	}
	return PrefixPath{Prefix: prefix}, nil
}

// MatchesPath implements PathMatcher.
func (p PrefixPath) MatchesPath(path string) bool { return p.Prefix.Matches(path) }

// RegexPath matches a path against an unanchored regular expression.
type RegexPath struct {
	re *regexp.Regexp
}

// NewRegexPath compiles pattern into a RegexPath matcher.
func NewRegexPath(pattern string) (RegexPath, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return RegexPath{}, err
	}
	return RegexPath{re: re}, nil
}

// MatchesPath implements PathMatcher. Matching is unanchored: the
// pattern must occur somewhere in path, not describe the whole of it.
func (r RegexPath) MatchesPath(path string) bool { return r.re.MatchString(path) }
