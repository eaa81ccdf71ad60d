package rete

import (
	"sort"
	"sync"

	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/rule"
)

// Activation is a terminal-node output: rule R fully matched with binding
// set B (spec.md §4.3 "Terminal node"). The engine façade turns this into
// an agenda.Activation once it assigns salience/group metadata from the
// owning rule.
type Activation struct {
	RuleName string
	Match    Match
}

// ruleMatchCache holds the last computed match set for one rule, tagged with
// the alpha-memory fingerprint it was computed against. It stands in for a
// true per-node beta memory (spec.md §4.3): rather than a persistent object
// per join node, one cache entry per rule is invalidated in bulk whenever any
// fact type the rule's condition tree reads has changed.
type ruleMatchCache struct {
	fingerprint uint64
	matches     []Match
}

// Network is the compiled discrimination network for a rule set: each
// rule's condition tree paired with a persistent alpha memory per fact type
// (alpha.go) that the tree is evaluated against, plus the fact_type -> rules
// dependency map that drives incremental propagation (spec.md §4.3). A rule's
// match set is only recomputed when the alpha memories it depends on have
// actually changed since the last evaluation, via ruleMatchCache.
type Network struct {
	rules  []*rule.Rule
	byName map[string]*rule.Rule
	deps   map[string]map[string]struct{}
	types  map[string]map[string]struct{} // rule name -> fact types its condition tree reads

	alpha *alphaNetwork

	cacheMu sync.Mutex
	cache   map[string]ruleMatchCache
}

// New compiles rules into a Network, computing the fact-type dependency map
// by walking each rule's condition tree and pre-registering every fact type
// discovered with the network's alpha memory.
func New(rules []*rule.Rule) *Network {
	n := &Network{
		rules:  rules,
		byName: make(map[string]*rule.Rule, len(rules)),
		deps:   make(map[string]map[string]struct{}),
		types:  make(map[string]map[string]struct{}, len(rules)),
		cache:  make(map[string]ruleMatchCache, len(rules)),
	}

	allTypes := make(map[string]struct{})
	for _, r := range rules {
		n.byName[r.Name] = r
		rt := factTypesOf(&r.Condition)
		n.types[r.Name] = rt
		for t := range rt {
			allTypes[t] = struct{}{}
			if n.deps[t] == nil {
				n.deps[t] = make(map[string]struct{})
			}
			n.deps[t][r.Name] = struct{}{}
		}
	}
	n.alpha = newAlphaNetwork(allTypes)
	return n
}

func factTypesOf(cond *rule.Condition) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func(c *rule.Condition)
	walk = func(c *rule.Condition) {
		if c == nil {
			return
		}
		switch c.Kind {
		case rule.ConditionSingle:
			if c.Pattern != nil {
				out[c.Pattern.FactType] = struct{}{}
			}
		case rule.ConditionAnd, rule.ConditionOr:
			walk(c.Left)
			walk(c.Right)
		case rule.ConditionNot, rule.ConditionExists, rule.ConditionForall:
			walk(c.Inner)
		case rule.ConditionAccumulate:
			if c.Accumulate != nil {
				if c.Accumulate.Source != nil {
					out[c.Accumulate.Source.FactType] = struct{}{}
				}
				walk(c.Accumulate.Having)
			}
		case rule.ConditionStreamPattern:
			if c.Stream != nil {
				out[c.Stream.EventType] = struct{}{}
			}
		}
	}
	walk(cond)
	return out
}

// Rule looks up a compiled rule by name.
func (n *Network) Rule(name string) (*rule.Rule, bool) {
	r, ok := n.byName[name]
	return r, ok
}

// Rules returns every compiled rule in declaration order.
func (n *Network) Rules() []*rule.Rule {
	return n.rules
}

// DependentRules returns, in a deterministic order, the names of every rule
// whose condition tree references at least one of the given fact types
// (spec.md §4.3 "On each working-memory delta for a fact_type, only the
// rules that depend on it are re-evaluated").
func (n *Network) DependentRules(factTypes []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range factTypes {
		for name := range n.deps[t] {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Evaluate produces every Activation for one rule against wm's current
// facts (spec.md §4.3 "evaluator walks the condition tree over persistent
// alpha memory; matches produce activations"). wm is bound to the network's
// alpha memories on first use (or whenever wm changes) so subsequent calls
// read the incrementally maintained memories instead of rescanning wm.
func (n *Network) Evaluate(ruleName string, wm *memory.WorkingMemory) []Activation {
	r, ok := n.byName[ruleName]
	if !ok {
		return nil
	}
	n.alpha.ensureBound(wm)

	matches := n.matchesFor(r)
	out := make([]Activation, len(matches))
	for i, m := range matches {
		out[i] = Activation{RuleName: r.Name, Match: m}
	}
	return out
}

// matchesFor returns r's match set, recomputing it only if the alpha
// memories r's condition tree reads have changed generation since the last
// call (ruleMatchCache).
func (n *Network) matchesFor(r *rule.Rule) []Match {
	fp := n.alpha.fingerprint(n.types[r.Name])

	n.cacheMu.Lock()
	if cached, ok := n.cache[r.Name]; ok && cached.fingerprint == fp {
		n.cacheMu.Unlock()
		return cached.matches
	}
	n.cacheMu.Unlock()

	matches := evalConditionWithContext(&r.Condition, n.alpha, emptyMatch())

	n.cacheMu.Lock()
	n.cache[r.Name] = ruleMatchCache{fingerprint: fp, matches: matches}
	n.cacheMu.Unlock()

	return matches
}

// EvaluateAll evaluates every compiled rule, batched into EvaluationWaves so
// that rules with disjoint fact-type dependencies run concurrently; results
// are returned in rule declaration order regardless of which wave a rule
// landed in or how long its goroutine took.
func (n *Network) EvaluateAll(wm *memory.WorkingMemory) []Activation {
	n.alpha.ensureBound(wm)
	return n.evaluateRuleSet(wm, n.rules)
}

// Propagate re-evaluates only the rules that depend on the given delta fact
// types (spec.md §4.3 "Incremental propagation"), again batched by wave.
func (n *Network) Propagate(wm *memory.WorkingMemory, deltaFactTypes []string) []Activation {
	n.alpha.ensureBound(wm)
	var subset []*rule.Rule
	for _, name := range n.DependentRules(deltaFactTypes) {
		if r, ok := n.byName[name]; ok {
			subset = append(subset, r)
		}
	}
	return n.evaluateRuleSet(wm, subset)
}

// evaluateRuleSet evaluates rules in waves() batches, running each wave's
// rules concurrently (their fact-type dependencies are disjoint by
// construction, so their alpha reads and cache writes never touch the same
// rule entry), then flattens results back into rules' original relative
// order.
func (n *Network) evaluateRuleSet(wm *memory.WorkingMemory, rules []*rule.Rule) []Activation {
	if len(rules) == 0 {
		return nil
	}

	order := make(map[string]int, len(rules))
	for i, r := range rules {
		order[r.Name] = i
	}

	results := make([][]Activation, len(rules))
	for _, wave := range waves(rules) {
		var wg sync.WaitGroup
		for _, r := range wave {
			r := r
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[order[r.Name]] = n.Evaluate(r.Name, wm)
			}()
		}
		wg.Wait()
	}

	var out []Activation
	for _, acts := range results {
		out = append(out, acts...)
	}
	return out
}

// waves groups rules into batches where no two rules in the same batch share
// a fact-type dependency, so a batch's rules may be evaluated concurrently
// without racing on the same alpha memory's cache entry. This reuses the
// teacher's Kahn's-algorithm wave-building shape (independent nodes batched
// into a layer, repeated until every node is placed) applied to the
// rule/fact-type dependency graph instead of a workflow DAG.
func waves(rules []*rule.Rule) [][]*rule.Rule {
	remaining := append([]*rule.Rule(nil), rules...)
	var out [][]*rule.Rule

	for len(remaining) > 0 {
		used := make(map[string]struct{})
		var wave, next []*rule.Rule

		for _, r := range remaining {
			types := factTypesOf(&r.Condition)
			overlaps := false
			for t := range types {
				if _, ok := used[t]; ok {
					overlaps = true
					break
				}
			}
			if overlaps {
				next = append(next, r)
				continue
			}
			wave = append(wave, r)
			for t := range types {
				used[t] = struct{}{}
			}
		}

		if len(wave) == 0 {
			// Defensive only: the first remaining rule always joins the
			// wave, so this is not reached. Rules that all reference the
			// same fact type get one wave each.
			wave = remaining
			next = nil
		}

		out = append(out, wave)
		remaining = next
	}

	return out
}

// EvaluationWaves exposes the same wave batching EvaluateAll/Propagate use
// internally, for callers (and tests) that want to inspect or drive the
// concurrency grouping directly.
func (n *Network) EvaluationWaves() [][]*rule.Rule {
	return waves(n.rules)
}
