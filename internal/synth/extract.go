package synth

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reactquery/agent/internal/registry"
)

// Clock supplies the reference time extraction resolves relative date
// phrases against (§4.5 tier 2: "reference clock passed in context").
// Production code wires time.Now; tests wire a fixed instant for
// determinism.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, wrapping time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a deterministic Clock for tests.
type FixedClock struct{ At time.Time }

// Now returns the fixed instant.
func (f FixedClock) Now() time.Time { return f.At }

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// extractNumber returns the first unambiguous numeric token in text.
func extractNumber(text string) (float64, bool) {
	m := numberRe.FindString(text)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// relativeDatePhrases maps normalised relative-date phrases to a resolver
// producing an ISO date (or date-range placeholder) given a reference time.
var relativeDatePhrases = map[string]func(ref time.Time) string{
	"today":       func(ref time.Time) string { return ref.Format("2006-01-02") },
	"hôm nay":     func(ref time.Time) string { return ref.Format("2006-01-02") },
	"yesterday":   func(ref time.Time) string { return ref.AddDate(0, 0, -1).Format("2006-01-02") },
	"hôm qua":     func(ref time.Time) string { return ref.AddDate(0, 0, -1).Format("2006-01-02") },
	"this_week":   func(ref time.Time) string { return startOfWeek(ref).Format("2006-01-02") + "/" + ref.Format("2006-01-02") },
	"tuần này":    func(ref time.Time) string { return startOfWeek(ref).Format("2006-01-02") + "/" + ref.Format("2006-01-02") },
	"last_week":   func(ref time.Time) string { return weekBefore(ref) },
	"tuần trước":  func(ref time.Time) string { return weekBefore(ref) },
	"last 7 days": func(ref time.Time) string { return ref.AddDate(0, 0, -7).Format("2006-01-02") + "/" + ref.Format("2006-01-02") },
	"this_month":  func(ref time.Time) string { return ref.Format("2006-01") },
	"tháng này":   func(ref time.Time) string { return ref.Format("2006-01") },
}

func startOfWeek(ref time.Time) time.Time {
	offset := int(ref.Weekday())
	if offset == 0 {
		offset = 7 // ISO week starts Monday
	}
	return ref.AddDate(0, 0, -(offset - 1))
}

func weekBefore(ref time.Time) string {
	end := startOfWeek(ref).AddDate(0, 0, -1)
	start := startOfWeek(end)
	return start.Format("2006-01-02") + "/" + end.Format("2006-01-02")
}

// resolveDatePhrase resolves a free-text query's relative date phrase (if
// any) to a concrete ISO date or range, using clock as the reference time.
func resolveDatePhrase(query string, clock Clock) (string, bool) {
	lower := strings.ToLower(query)
	for phrase, resolve := range relativeDatePhrases {
		if strings.Contains(lower, phrase) {
			return resolve(clock.Now()), true
		}
	}
	return "", false
}

// extractEnumValue matches query against a parameter's declared enum values
// and the alias dictionary, returning the canonical enum member.
func extractEnumValue(query string, enum []interface{}) (interface{}, bool) {
	lower := strings.ToLower(query)
	for _, v := range enum {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if strings.Contains(lower, strings.ToLower(s)) {
			return s, true
		}
	}
	for phrase, canon := range aliasDict {
		if !strings.Contains(lower, phrase) {
			continue
		}
		for _, v := range enum {
			if s, ok := v.(string); ok && strings.EqualFold(s, canon) {
				return s, true
			}
		}
	}
	return nil, false
}

// extractParameters applies per-type extractors (§4.5 tier 2) for every
// parameter in schema, returning whatever it could confidently extract from
// query. Missing values are left absent for the caller's next tier.
func extractParameters(schema map[string]registry.ParamSpec, query string, clock Clock) map[string]interface{} {
	params := make(map[string]interface{})
	lowerQuery := strings.ToLower(query)
	for name, spec := range schema {
		switch {
		case len(spec.Enum) > 0:
			if v, ok := extractEnumValue(query, spec.Enum); ok {
				params[name] = v
			}
		case spec.Type == registry.ParamString && looksLikeDateParam(name):
			if v, ok := resolveDatePhrase(lowerQuery, clock); ok {
				params[name] = v
			}
		case spec.Type == registry.ParamInteger || spec.Type == registry.ParamNumber:
			if v, ok := extractNumber(query); ok {
				if spec.Type == registry.ParamInteger {
					params[name] = int64(v)
				} else {
					params[name] = v
				}
			}
		}
	}
	return params
}

func looksLikeDateParam(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "period") || strings.Contains(lower, "day") || strings.Contains(lower, "time")
}
