// Package matcher implements record-name pattern matching. It decides which
// stored names the address prune is allowed to touch.
// Supports both glob patterns (default) and regex (opt-in).
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DomainMatcherConfig configures a DomainMatcher.
type DomainMatcherConfig struct {
	// Includes are the patterns a name must match. At least one is required.
	Includes []string

	// Excludes are evaluated before includes; a match rejects the name.
	Excludes []string

	// UseRegex treats patterns as regular expressions instead of globs.
	UseRegex bool
}

// DomainMatcher matches DNS names against include and exclude patterns.
// Matching is case insensitive.
type DomainMatcher struct {
	includes    []*regexp.Regexp
	excludes    []*regexp.Regexp
	rawIncludes []string
	rawExcludes []string
	useRegex    bool
}

// NewDomainMatcher compiles the configured patterns.
func NewDomainMatcher(cfg DomainMatcherConfig) (*DomainMatcher, error) {
	if len(cfg.Includes) == 0 {
		return nil, errors.New("at least one include pattern is required")
	}

	includes, err := compileAll(cfg.Includes, cfg.UseRegex)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	excludes, err := compileAll(cfg.Excludes, cfg.UseRegex)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	return &DomainMatcher{
		includes:    includes,
		excludes:    excludes,
		rawIncludes: cfg.Includes,
		rawExcludes: cfg.Excludes,
		useRegex:    cfg.UseRegex,
	}, nil
}

// Matches reports whether name matches an include pattern and no exclude
// pattern. A trailing dot on name is ignored.
func (m *DomainMatcher) Matches(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	for _, re := range m.excludes {
		if re.MatchString(name) {
			return false
		}
	}
	for _, re := range m.includes {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// String describes the matcher for logs.
func (m *DomainMatcher) String() string {
	kind := "glob"
	if m.useRegex {
		kind = "regex"
	}
	s := fmt.Sprintf("%s includes=%v", kind, m.rawIncludes)
	if len(m.rawExcludes) > 0 {
		s += fmt.Sprintf(" excludes=%v", m.rawExcludes)
	}
	return s
}

func compileAll(patterns []string, useRegex bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		expr := p
		if !useRegex {
			expr = globToRegex(p)
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// globToRegex converts a DNS glob to an anchored regular expression.
// '*' matches any run of characters including dots, '?' matches one
// character within a label, and [...] is a character class.
func globToRegex(glob string) string {
	var sb strings.Builder
	sb.WriteString("^")

	inClass := false
	for _, r := range strings.ToLower(strings.TrimSuffix(glob, ".")) {
		switch {
		case inClass:
			sb.WriteRune(r)
			if r == ']' {
				inClass = false
			}
		case r == '*':
			sb.WriteString(".*")
		case r == '?':
			sb.WriteString("[^.]")
		case r == '[':
			inClass = true
			sb.WriteRune(r)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	sb.WriteString("$")
	return sb.String()
}
