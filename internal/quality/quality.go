// Package quality implements the Quality Validator (C7, §4.7): a pure,
// cheap scoring function over a run's Working Memory. It never calls the
// Language Model.
package quality

import (
	"regexp"
	"strings"

	"github.com/reactquery/agent/internal/workmem"
)

// Weights from §4.7: overall = 0.30*completeness + 0.30*coverage +
// 0.25*reliability + 0.15*format.
const (
	weightCompleteness = 0.30
	weightCoverage      = 0.30
	weightReliability   = 0.25
	weightFormat        = 0.15
)

// Score computes (overall, details) for wm (§4.7 contract).
func Score(wm *workmem.WorkingMemory) (float64, workmem.QualityDetails) {
	details := workmem.QualityDetails{
		Completeness: completeness(wm),
		Coverage:     coverage(wm),
		Reliability:  reliability(wm),
		Format:       format(wm),
	}
	overall := weightCompleteness*details.Completeness +
		weightCoverage*details.Coverage +
		weightReliability*details.Reliability +
		weightFormat*details.Format
	return overall, details
}

// needSplitter breaks the first iteration's thought into enumerable
// information needs on common list separators (commas, semicolons, " and ",
// newlines). A thought with no such separators is treated as a single need.
var needSplitter = regexp.MustCompile(`\s*(?:,|;|\n|\band\b)\s*`)

func statedNeeds(wm *workmem.WorkingMemory) int {
	if len(wm.Iterations) == 0 {
		return 1
	}
	thought := strings.TrimSpace(wm.Iterations[0].Thought)
	if thought == "" {
		return 1
	}
	parts := needSplitter.Split(thought, -1)
	count := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func successfulCallCount(wm *workmem.WorkingMemory) int {
	n := 0
	for _, c := range wm.APICalls {
		if c.Success {
			n++
		}
	}
	return n
}

// completeness is the fraction of stated needs satisfied by at least one
// successful observation (§4.7). An empty run (no iterations at all) has
// zero needs satisfied, driving completeness to 0 as specified.
func completeness(wm *workmem.WorkingMemory) float64 {
	if len(wm.Iterations) == 0 {
		return 0
	}
	needs := statedNeeds(wm)
	satisfied := successfulCallCount(wm)
	if satisfied > needs {
		satisfied = needs
	}
	return float64(satisfied) / float64(needs)
}

// expectedCallCount is the size of the last selected function set, or 1 if
// none was ever selected (§4.7 "coverage").
func expectedCallCount(wm *workmem.WorkingMemory) int {
	for i := len(wm.Iterations) - 1; i >= 0; i-- {
		it := wm.Iterations[i]
		if it.Action.Type != workmem.ActionSearchFunctions {
			continue
		}
		if records, ok := it.Observation.([]interface{}); ok && len(records) > 0 {
			return len(records)
		}
		if n, ok := it.Observation.(int); ok && n > 0 {
			return n
		}
	}
	return 1
}

func coverage(wm *workmem.WorkingMemory) float64 {
	expected := expectedCallCount(wm)
	successful := successfulCallCount(wm)
	ratio := float64(successful) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// reliability is the ratio of successful to total Execution Records, or 1
// if none were attempted (§4.7: "the latter drives completeness to 0, not
// reliability").
func reliability(wm *workmem.WorkingMemory) float64 {
	if len(wm.APICalls) == 0 {
		return 1
	}
	return float64(successfulCallCount(wm)) / float64(len(wm.APICalls))
}

// format scores how many successful observations parse as a non-empty
// object/array shape: 1 if all do, 0.5 if some do, 0 if none do or there was
// no successful call to judge (a run with zero successful calls cannot earn
// format credit it didn't demonstrate).
func format(wm *workmem.WorkingMemory) float64 {
	total := 0
	wellFormed := 0
	for i, call := range wm.APICalls {
		if !call.Success {
			continue
		}
		total++
		if isWellFormed(wm.Observations[i]) {
			wellFormed++
		}
	}
	if total == 0 {
		return 0
	}
	if wellFormed == total {
		return 1
	}
	if wellFormed == 0 {
		return 0
	}
	return 0.5
}

func isWellFormed(observation interface{}) bool {
	switch v := observation.(type) {
	case map[string]interface{}:
		return len(v) > 0
	case []interface{}:
		return len(v) > 0
	default:
		return false
	}
}
