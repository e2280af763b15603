// Package ruleselect implements the Rule-Based Selector (C3, §4.3): the
// first, cheapest tier of the Hybrid Selector. It is a pure function of
// (rules, query, context) with no I/O, matching keyword lists or regexes
// against a case-insensitive, Unicode-normalised query.
package ruleselect

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Rule is the Rule entity from §3: pattern is either a keyword list or a
// regex; Regex is nil for a keyword rule. FunctionIDs is the ordered list
// of candidates the rule contributes when it fires.
type Rule struct {
	Name        string
	Keywords    []string
	Regex       *regexp.Regexp
	FunctionIDs []string
	Confidence  float64
}

// Candidate is one ranked hit from Select.
type Candidate struct {
	FunctionID string
	Confidence float64
}

// Context carries whatever ambient state the selector may eventually need;
// the rule tier is pure and currently ignores it, but it is threaded
// through to keep the C3/C4 contract signature literal (§4.3/§4.4).
type Context struct {
	ConversationID string
}

func normalize(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

// matches reports whether the rule fires against a normalised query.
func (r Rule) matches(normalizedQuery string) bool {
	if r.Regex != nil {
		return r.Regex.MatchString(normalizedQuery)
	}
	for _, kw := range r.Keywords {
		if strings.Contains(normalizedQuery, normalize(kw)) {
			return true
		}
	}
	return false
}

// Select evaluates every rule against query and merges contributed
// function_ids by taking the maximum confidence across matching rules.
// Rule order only breaks ties for callers that want a stable presentation
// order; it never changes which candidates appear. Returns an empty,
// non-nil slice when no rule fires.
func Select(rules []Rule, query string, _ Context) []Candidate {
	normalizedQuery := normalize(query)

	best := make(map[string]float64)
	for _, rule := range rules {
		if !rule.matches(normalizedQuery) {
			continue
		}
		for _, fid := range rule.FunctionIDs {
			if cur, ok := best[fid]; !ok || rule.Confidence > cur {
				best[fid] = rule.Confidence
			}
		}
	}

	// First-seen order (by rule, then by FunctionIDs order) for presentation,
	// reflecting the merged (max) confidence computed above.
	seen := make(map[string]bool, len(best))
	out := make([]Candidate, 0, len(best))
	for _, rule := range rules {
		if !rule.matches(normalizedQuery) {
			continue
		}
		for _, fid := range rule.FunctionIDs {
			if seen[fid] {
				continue
			}
			seen[fid] = true
			out = append(out, Candidate{FunctionID: fid, Confidence: best[fid]})
		}
	}
	return out
}

// TopConfidence returns the highest per-candidate confidence among
// candidates, or 0 when candidates is empty (§4.3: "overall selector-level
// confidence is the highest per-candidate confidence").
func TopConfidence(candidates []Candidate) float64 {
	var top float64
	for _, c := range candidates {
		if c.Confidence > top {
			top = c.Confidence
		}
	}
	return top
}
