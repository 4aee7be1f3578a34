// Package host implements parsing and matching of gateway hostname
// specifications: RFC 1123 hostnames optionally prefixed with a single
// leftmost wildcard label.
package host

import (
	"errors"
	"net"
	"regexp"
	"strings"
)

var labelRx = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Parse errors for HostSpec and Hostname.
var (
	ErrEmptyStr           = errors.New("host: empty string")
	ErrEmptyLabel         = errors.New("host: empty label")
	ErrInvalidLabel       = errors.New("host: invalid label")
	ErrInvalidWildcard    = errors.New("host: wildcard must be the leftmost label")
	ErrUnexpectedIP       = errors.New("host: ip addresses are not valid hostnames")
	ErrUnexpectedWildcard = errors.New("host: wildcard not allowed here")
)

// Spec is a hostname pattern that may carry a single leading wildcard
// label, e.g. "*.example.com". Labels are stored TLD-first (reversed)
// so that wildcard matching reduces to a length check plus a prefix
// comparison.
type Spec struct {
	labels   []string
	wildcard bool
}

// Name is a concrete hostname with no wildcard, parsed from the Host
// header of an incoming request.
type Name struct {
	labels []string
}

// ParseSpec parses s into a Spec. The wildcard token "*" is only valid
// as the final label encountered while scanning right-to-left, i.e. the
// leftmost label in the source string.
func ParseSpec(s string) (Spec, error) {
	if s == "" {
		return Spec{}, ErrEmptyStr
	}
	if isIPAddr(s) {
		return Spec{}, ErrUnexpectedIP
	}

	parts := strings.Split(s, ".")
	labels := make([]string, 0, len(parts))
	wildcard := false

	for i := len(parts) - 1; i >= 0; i-- {
		label := parts[i]
		if label == "" {
			return Spec{}, ErrEmptyLabel
		}

		if wildcard {
			// we already consumed the (leftmost) wildcard label and are
			// still iterating: there was something further to its left.
			return Spec{}, ErrInvalidWildcard
		}

		if label == "*" {
			wildcard = true
			continue
		}

		if !labelRx.MatchString(label) {
			return Spec{}, ErrInvalidLabel
		}

		labels = append(labels, label)
	}

	if wildcard && len(labels) == 0 {
		// a bare "*" has no concrete label for the wildcard to precede.
		return Spec{}, ErrInvalidWildcard
	}

	return Spec{labels: labels, wildcard: wildcard}, nil
}

// ParseName parses s into a Name, rejecting any wildcard label.
func ParseName(s string) (Name, error) {
	spec, err := ParseSpec(s)
	if err != nil {
		if errors.Is(err, ErrInvalidWildcard) {
			return Name{}, ErrUnexpectedWildcard
		}
		return Name{}, err
	}
	if spec.wildcard {
		return Name{}, ErrUnexpectedWildcard
	}
	return Name{labels: spec.labels}, nil
}

func isIPAddr(s string) bool {
	return net.ParseIP(s) != nil
}

// Matches reports whether s matches the given concrete hostname, per
// the label-alignment rules: exact label-for-label equality when s
// carries no wildcard, or equality of s's labels against the
// hostname's trailing labels (TLD-first) plus exactly one unconstrained
// extra leftmost label when s is a wildcard spec.
func (s Spec) Matches(h Name) bool {
	wildcardAddition := 0
	if s.wildcard {
		wildcardAddition = 1
	}

	if len(s.labels)+wildcardAddition != len(h.labels) {
		return false
	}

	for i, label := range s.labels {
		if label != h.labels[i] {
			return false
		}
	}

	return true
}

// String renders the spec back into dotted-label form, wildcard first,
// such that ParseSpec(s.String()) reproduces an equivalent Spec.
func (s Spec) String() string {
	parts := make([]string, 0, len(s.labels)+1)
	if s.wildcard {
		parts = append(parts, "*")
	}
	for i := len(s.labels) - 1; i >= 0; i-- {
		parts = append(parts, s.labels[i])
	}
	return strings.Join(parts, ".")
}

// String renders the hostname back into dotted-label form.
func (h Name) String() string {
	labels := make([]string, len(h.labels))
	for i, l := range h.labels {
		labels[len(labels)-1-i] = l
	}
	return strings.Join(labels, ".")
}
