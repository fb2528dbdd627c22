package model

import "fmt"

// ScopeError is a compile-time scoping failure: an aspect reference that
// cannot be bound, or an expression attached to a connector that forbids
// one (spec §4.4).
type ScopeError struct {
	Message string
}

func (e *ScopeError) Error() string { return e.Message }

// Scope returns the full set of aspects visible to a function F: the
// union of aspects carried by any coupling terminating at any of F's
// connectors, plus (recursively) the aspects visible to each ancestor of
// F. Nesting inherits outward visibility — a sub-function can see
// whatever its parent's incoming couplings make visible to the parent.
func (g *Graph) Scope(f *Function) []*Aspect {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scopeLocked(f, make(map[string]bool))
}

func (g *Graph) scopeLocked(f *Function, seen map[string]bool) []*Aspect {
	if f == nil || seen[f.ID] {
		return nil
	}
	seen[f.ID] = true

	var out []*Aspect
	for _, conn := range []Connector{ConnC, ConnO, ConnR, ConnP, ConnI, ConnT} {
		out = append(out, f.incoming[conn]...)
	}
	if f.Parent != nil {
		out = append(out, g.scopeLocked(f.Parent, seen)...)
	}
	return out
}

// ScopeForConnector narrows Scope(f) to the aspects of couplings
// terminating specifically at conn — the scope used when compiling the
// incoming expression attached to that connector. Output connectors may
// never carry a free-form incoming expression (spec §4.4).
func (g *Graph) ScopeForConnector(f *Function, conn Connector) ([]*Aspect, error) {
	if conn == ConnO {
		return nil, &ScopeError{Message: "Outputs must be specified as [aspect name]"}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := append([]*Aspect(nil), f.incoming[conn]...)
	if f.Parent != nil {
		out = append(out, g.scopeLocked(f.Parent, map[string]bool{f.ID: true})...)
	}
	return out, nil
}

// Resolve looks up name within scope, normalizing per the model's
// identifier convention. It is the single entry point the parser calls
// for every `[name ...]` variable reference.
func (g *Graph) Resolve(scope []*Aspect, name string) (*Aspect, error) {
	norm := NormalizeIdentifier(name)
	for _, a := range scope {
		if NormalizeIdentifier(a.Name) == norm {
			return a, nil
		}
	}
	return nil, &ScopeError{Message: fmt.Sprintf("Unknown aspect %q", name)}
}

// ResolveMatching returns every aspect in scope whose normalized name
// matches pattern, where '?' stands for exactly one character and '*'
// (or a trailing ".*") stands for any run of characters — the lookup
// PUSH_STATISTIC uses to gather its source list (spec §4.7).
func (g *Graph) ResolveMatching(scope []*Aspect, pattern string) []*Aspect {
	matcher := compileWildcard(pattern)
	var out []*Aspect
	for _, a := range scope {
		if matcher(NormalizeIdentifier(a.Name)) {
			out = append(out, a)
		}
	}
	return out
}

// compileWildcard builds a matcher for a statistic's source pattern: '?'
// matches exactly one character, '*' (and the regex-flavored ".*" some
// fixtures spell out of habit) matches any run including empty, everything
// else must match literally. This is intentionally not a full regex
// engine — §9's design notes call the source's pattern language a simple
// glob, not PCRE.
func compileWildcard(pattern string) func(string) bool {
	glob := normalizeGlob(NormalizeIdentifier(pattern))
	return func(candidate string) bool {
		return globMatch(glob, candidate)
	}
}

// normalizeGlob collapses the regex-flavored ".*" spelling down to a
// plain '*' so globMatch only has one wildcard rune to special-case.
func normalizeGlob(pattern string) string {
	out := make([]byte, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '.' && i+1 < len(pattern) && pattern[i+1] == '*' {
			out = append(out, '*')
			i++
			continue
		}
		out = append(out, pattern[i])
	}
	return string(out)
}

// globMatch is the standard DP '?'/'*' glob matcher: dp[i][j] is whether
// pattern[:i] matches s[:j].
func globMatch(pattern, s string) bool {
	dp := make([][]bool, len(pattern)+1)
	for i := range dp {
		dp[i] = make([]bool, len(s)+1)
	}
	dp[0][0] = true
	for i := 1; i <= len(pattern); i++ {
		if pattern[i-1] == '*' {
			dp[i][0] = dp[i-1][0]
		}
	}
	for i := 1; i <= len(pattern); i++ {
		for j := 1; j <= len(s); j++ {
			switch pattern[i-1] {
			case '*':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '?':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && pattern[i-1] == s[j-1]
			}
		}
	}
	return dp[len(pattern)][len(s)]
}
