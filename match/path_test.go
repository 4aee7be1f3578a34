package match

import "testing"

func TestPathPrefixMatches(t *testing.T) {
	prefix, err := ParsePathPrefix("/abc")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		value string
		want  bool
	}{
		{"/abc", true},
		{"/abc/def", true},
		{"/abc/def/", true},
		{"/abc/def/ghi", true},
		{"/abcdef", false},
	} {
		if got := prefix.Matches(tt.value); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestPathPrefixTrailingSlashIgnored(t *testing.T) {
	prefix, err := ParsePathPrefix("/abc/")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		value string
		want  bool
	}{
		{"/abc", true},
		{"/abc/def", true},
		{"/abc/def/", true},
		{"/abc/def/ghi", true},
		{"/abcdef", false},
	} {
		if got := prefix.Matches(tt.value); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestExactPath(t *testing.T) {
	m := ExactPath("/abc")
	if !m.MatchesPath("/abc") {
		t.Error("expected exact match")
	}
	if m.MatchesPath("/abc/def") {
		t.Error("did not expect prefix to match exact")
	}
}

func TestPathPrefixParseErrors(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want error
	}{
		{"", ErrEmptyPathPrefix},
		{"abc", ErrPathPrefixNoSlash},
		{"/a//b", ErrPathPrefixConsecutive},
	} {
		if _, err := ParsePathPrefix(tt.in); err != tt.want {
			t.Errorf("ParsePathPrefix(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}
}

func TestPathPrefixRoot(t *testing.T) {
	prefix, err := ParsePathPrefix("/")
	if err != nil {
		t.Fatal(err)
	}
	if !prefix.Matches("/anything/at/all") {
		t.Error("expected root prefix to match any path")
	}
}

func TestRegexPathUnanchored(t *testing.T) {
	m, err := NewRegexPath(`^/api/v[0-9]+/`)
	if err != nil {
		t.Fatal(err)
	}
	if !m.MatchesPath("/api/v2/users") {
		t.Error("expected match")
	}
	if m.MatchesPath("/api/vX/users") {
		t.Error("did not expect match")
	}
}
