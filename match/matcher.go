package match

import "net/http"

// Matcher combines an optional path, method and set of header
// matchers under AND semantics: a request matches only if every
// configured field matches. A nil or zero-value field imposes no
// constraint.
type Matcher struct {
	Path    PathMatcher
	Method  Method
	Headers []HeaderMatcher
}

// NewMatcher builds a Matcher from its constituent predicates. When
// headers names more than one entry with an equivalent (case
// insensitive) header name, only the first is kept: later entries for
// the same header are ignored, mirroring how repeated header names are
// otherwise collapsed by callers reading h.Get.
func NewMatcher(path PathMatcher, method Method, headers []HeaderMatcher) Matcher {
	seen := make(map[string]bool, len(headers))
	deduped := make([]HeaderMatcher, 0, len(headers))
	for _, hm := range headers {
		key := http.CanonicalHeaderKey(hm.Name())
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, hm)
	}
	return Matcher{Path: path, Method: method, Headers: deduped}
}

// Matches reports whether req satisfies every configured predicate.
func (m Matcher) Matches(req *http.Request) bool {
	if m.Path != nil && !m.Path.MatchesPath(req.URL.Path) {
		return false
	}
	if m.Method != "" && !m.Method.MatchesMethod(req.Method) {
		return false
	}
	for _, hm := range m.Headers {
		if !hm.MatchesHeaders(req.Header) {
			return false
		}
	}
	return true
}
