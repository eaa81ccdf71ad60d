package backward

import (
	"sort"

	"github.com/smilemakc/ruleforge/pkg/rule"
)

// ConclusionIndex maps a field path to the rules that may conclude it via a
// Set/Update action, sorted by descending salience so proof search tries
// the highest-salience candidate first (spec.md §4.7 "Conclusion index",
// "O(1) per field").
type ConclusionIndex struct {
	byField map[string][]*rule.Rule
}

// BuildConclusionIndex scans every rule's action list for Set/Update
// actions and indexes them by the field they assign.
func BuildConclusionIndex(rules []*rule.Rule) *ConclusionIndex {
	idx := &ConclusionIndex{byField: make(map[string][]*rule.Rule)}
	for _, r := range rules {
		for _, a := range r.Actions {
			if a.Kind != rule.ActionSet && a.Kind != rule.ActionUpdate {
				continue
			}
			if a.Field == "" {
				continue
			}
			idx.byField[a.Field] = append(idx.byField[a.Field], r)
		}
	}
	for field := range idx.byField {
		candidates := idx.byField[field]
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Salience > candidates[j].Salience
		})
		idx.byField[field] = candidates
	}
	return idx
}

// Candidates returns the rules that may conclude field, in salience order.
func (idx *ConclusionIndex) Candidates(field string) []*rule.Rule {
	return idx.byField[field]
}

// FindCandidates unions the candidate rule lists for every field a goal
// expression references (spec.md §4.7 `find_candidates(goal_expression)`).
func (idx *ConclusionIndex) FindCandidates(fields []string) []*rule.Rule {
	seen := make(map[string]struct{})
	var out []*rule.Rule
	for _, f := range fields {
		for _, r := range idx.byField[f] {
			if _, dup := seen[r.Name]; dup {
				continue
			}
			seen[r.Name] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
