// Package matcher selects field keys by glob or regular expression
// patterns. It backs the CLI's --ignore flag: patterns are expanded against
// the schema's field keys before the key list reaches the differ.
package matcher

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
)

// PatternType represents the type of pattern matching to use.
type PatternType int

const (
	// Glob uses shell-style glob patterns (*, ?, []).
	Glob PatternType = iota
	// Regex uses regular expressions.
	Regex
	// Auto picks Regex for patterns prefixed with "re:" or containing regex
	// syntax, Glob otherwise.
	Auto
)

// RegexPrefix forces a pattern to be read as a regular expression.
const RegexPrefix = "re:"

// String returns a string representation of the PatternType.
func (pt PatternType) String() string {
	switch pt {
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Pattern is one compiled key pattern.
type Pattern struct {
	raw      string
	typ      PatternType
	glob     string
	compiled *regexp.Regexp
}

// New compiles pattern. Regular expressions are anchored at both ends so a
// pattern names whole keys.
func New(typ PatternType, pattern string) (*Pattern, error) {
	p := &Pattern{raw: pattern, typ: typ}
	body := pattern
	if typ == Auto {
		p.typ, body = detect(pattern)
	}

	switch p.typ {
	case Glob:
		if _, err := path.Match(body, ""); err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		p.glob = body
	case Regex:
		expr := body
		if !strings.HasPrefix(expr, "^") {
			expr = "^" + expr
		}
		if !strings.HasSuffix(expr, "$") {
			expr += "$"
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		p.compiled = compiled
	default:
		return nil, fmt.Errorf("unsupported pattern type: %v", p.typ)
	}
	return p, nil
}

// Match reports whether key matches the pattern.
func (p *Pattern) Match(key string) bool {
	if p.compiled != nil {
		return p.compiled.MatchString(key)
	}
	ok, _ := path.Match(p.glob, key)
	return ok
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}

// Type returns the resolved pattern type.
func (p *Pattern) Type() PatternType {
	return p.typ
}

func detect(pattern string) (PatternType, string) {
	if rest, ok := strings.CutPrefix(pattern, RegexPrefix); ok {
		return Regex, rest
	}
	for _, indicator := range []string{"^", "$", `\d`, `\w`, `\s`, "(?", "{", "}", "+", "|", "(", ")"} {
		if strings.Contains(pattern, indicator) {
			return Regex, pattern
		}
	}
	return Glob, pattern
}

// Set matches a key when any of its patterns does.
type Set struct {
	patterns []*Pattern
}

// NewSet compiles patterns with automatic type detection.
func NewSet(patterns ...string) (*Set, error) {
	s := &Set{patterns: make([]*Pattern, 0, len(patterns))}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := New(Auto, raw)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, p)
	}
	return s, nil
}

// Match reports whether any pattern matches key.
func (s *Set) Match(key string) bool {
	for _, p := range s.patterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	return len(s.patterns)
}

// Expand returns the sorted, de-duplicated keys selected by the set.
// Patterns without wildcards are always kept as literal keys, so a field
// that only occurs in the data (not in the schema) can still be ignored.
func (s *Set) Expand(keys []string) []string {
	seen := make(map[string]bool)
	for _, key := range keys {
		if s.Match(key) {
			seen[key] = true
		}
	}
	for _, p := range s.patterns {
		if p.typ == Glob && !strings.ContainsAny(p.glob, `*?[\`) {
			seen[p.glob] = true
		}
	}
	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
