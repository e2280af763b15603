package synth

import (
	"regexp"
	"strings"
)

// Template is the Template entity (§3, C5 tier 1): one or more patterns, any
// of which matching the query yields a candidate argument set after
// placeholder substitution.
type Template struct {
	Name       string
	Patterns   []*regexp.Regexp
	Parameters map[string]string // literal value or "{groupN}" placeholder; a value resolving to an alias phrase becomes its canonical value
}

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)

// matchTemplate returns the first pattern match for t against query, or nil
// if none of its patterns match.
func matchTemplate(t Template, query string) []string {
	for _, pat := range t.Patterns {
		if m := pat.FindStringSubmatch(query); m != nil {
			return m
		}
	}
	return nil
}

// substitute resolves a parameter value's "{groupN}" placeholders from the
// regex capture groups ("{group1}" -> m[1]); any other placeholder is left
// as written. Alias phrases are mapped afterwards, by applyTemplates.
func substitute(value string, groups []string) string {
	return placeholderRe.ReplaceAllStringFunc(value, func(ph string) string {
		name := strings.Trim(ph, "{}")
		if strings.HasPrefix(name, "group") {
			idxStr := strings.TrimPrefix(name, "group")
			if idx := atoiSafe(idxStr); idx > 0 && idx < len(groups) {
				return groups[idx]
			}
		}
		return ph
	})
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// applyTemplates tries each template in order, returning the first match's
// substituted parameter set. Returns ok=false if none match.
func applyTemplates(templates []Template, query string) (map[string]interface{}, bool) {
	for _, t := range templates {
		groups := matchTemplate(t, query)
		if groups == nil {
			continue
		}
		params := make(map[string]interface{}, len(t.Parameters))
		for key, rawValue := range t.Parameters {
			resolved := substitute(rawValue, groups)
			if alias, ok := aliasLookup(resolved); ok {
				params[key] = alias
				continue
			}
			params[key] = resolved
		}
		return params, true
	}
	return nil, false
}

// aliasDict maps deterministic Vietnamese/English phrases to their
// canonical value, per §4.5 tier 1 examples ("miền Bắc"→"North",
// "hôm nay"→"today").
var aliasDict = map[string]string{
	"miền bắc": "North",
	"mien bac": "North",
	"miền nam": "South",
	"mien nam": "South",
	"miền trung": "Central",
	"mien trung": "Central",
	"hôm nay":    "today",
	"hom nay":    "today",
	"hôm qua":    "yesterday",
	"hom qua":    "yesterday",
	"tuần này":   "this_week",
	"tuan nay":   "this_week",
	"tuần trước": "last_week",
	"tuan truoc": "last_week",
	"tháng này":  "this_month",
	"thang nay":  "this_month",
}

func aliasLookup(phrase string) (string, bool) {
	v, ok := aliasDict[strings.ToLower(strings.TrimSpace(phrase))]
	return v, ok
}
