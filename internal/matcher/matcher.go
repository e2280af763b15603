// Package matcher canonicalises function names and matches them against
// glob-style patterns, grounded on the teacher's tool-name matcher
// (internal/tool/matcher). It backs registry.Store.MatchIDs, which the
// hybrid selector's rule tier uses to expand rule function_id patterns.
package matcher

import "strings"

// Canon normalises a function/service name for comparison: trims whitespace
// and collapses the "/" and ":" separators the catalogue's source systems
// use interchangeably into "_".
func Canon(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

// serviceOf returns the prefix of a canonicalised name up to its final "_"
// segment, used to test service-only patterns.
func serviceOf(canon string) string {
	idx := strings.LastIndex(canon, "_")
	if idx < 0 {
		return canon
	}
	return canon[:idx]
}

// Match reports whether name matches pattern. Both are canonicalised first.
// Supported pattern forms:
//   - exact: "get_energy_kpi" matches only "get_energy_kpi"
//   - wildcard suffix: "energy_*" matches any name with that prefix
//   - service-only: "energy" matches any name whose service component
//     (the prefix before the final "_" segment) equals "energy"
//   - legacy prefix: a bare pattern with no "_" also matches names that
//     simply start with it, for catalogues migrated from a flatter scheme
func Match(pattern, name string) bool {
	p := Canon(pattern)
	n := Canon(name)
	if p == n {
		return true
	}
	if strings.HasSuffix(p, "*") {
		prefix := strings.TrimSuffix(p, "*")
		return strings.HasPrefix(n, prefix)
	}
	if serviceOf(n) == p {
		return true
	}
	if !strings.Contains(p, "_") && strings.HasPrefix(n, p) {
		return true
	}
	return false
}

// MatchAny reports whether name matches any of patterns.
func MatchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if Match(p, name) {
			return true
		}
	}
	return false
}
