package backward

import (
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// Strategy selects how proof search orders candidate exploration
// (spec.md §4.7 step 4).
type Strategy int

const (
	DepthFirst Strategy = iota
	BreadthFirst
	IterativeDeepening
)

// ProofStep records one rule firing in a proof trace: the rule that
// concluded a field, the premises it required, and the field it concluded
// (spec.md §3 "Proof graph node", §6 "proof_trace").
type ProofStep struct {
	Rule       string
	Premises   []string
	Conclusion string
}

// ProofResult is the outcome of a Prove call (spec.md §6 "Backward queries
// yield: provable flag, proof_trace, missing_facts, stats").
type ProofResult struct {
	Provable     bool
	ProofTrace   []ProofStep
	MissingFacts []string
}

// Stats accumulates proof-search counters across Prove calls
// (spec.md §4.7 "Stats").
type Stats struct {
	GoalsExplored  int
	RulesEvaluated int
	CacheHits      int
	CacheMisses    int
	Invalidations  int
}

// Engine is the backward-chaining proof search driver.
type Engine struct {
	rules    []*rule.Rule
	index    *ConclusionIndex
	cache    *ProofCache
	Strategy Strategy
	MaxDepth int
	Stats    Stats
}

// New builds a backward-chaining engine over rules, with proof caching
// enabled and a cache capacity of 256 goals.
func New(rules []*rule.Rule, strategy Strategy, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return &Engine{
		rules:    rules,
		index:    BuildConclusionIndex(rules),
		cache:    NewProofCache(256),
		Strategy: strategy,
		MaxDepth: maxDepth,
	}
}

// Invalidate drops cached proofs that depended on field, e.g. when the host
// retracts a fact that backed a premise (spec.md §4.7 "Proof graph cache"
// invalidation).
func (e *Engine) Invalidate(field string) {
	e.Stats.Invalidations += e.cache.Invalidate(field)
}

// Prove attempts to prove goalExpr true against facts, per spec.md §4.7's
// five-step algorithm: direct evaluation, conclusion-index lookup, recursive
// condition-tree proof with in-memory action simulation, bounded by
// MaxDepth, terminating PROVED or UNPROVABLE. A search cut off by the
// MaxDepth bound is reported as UNPROVABLE with a nil error, the same as one
// whose candidates ran out; rule.ErrDepthExceeded is not returned.
func (e *Engine) Prove(goalExpr string, facts map[string]value.Value) (ProofResult, error) {
	e.Stats.GoalsExplored++

	key := rule.FactKey{Pattern: goalExpr}
	if cached, ok := e.cache.Get(key); ok {
		e.Stats.CacheHits++
		return cached, nil
	}
	e.Stats.CacheMisses++

	program, err := compileGoal(goalExpr)
	if err != nil {
		return ProofResult{}, err
	}

	if ok, err := evalGoal(program, facts); err != nil {
		return ProofResult{}, err
	} else if ok {
		result := ProofResult{Provable: true}
		e.cache.Put(key, result)
		return result, nil
	}

	fields, err := extractFields(goalExpr)
	if err != nil {
		return ProofResult{}, err
	}

	result := e.proveGoalFields(fields, program, facts)
	if result.Provable {
		e.cache.Put(key, result)
	}
	return result, nil
}

// proveGoalFields drives the per-field subgoal search across a goal's
// referenced fields. DepthFirst and BreadthFirst search once at the engine's
// configured MaxDepth; IterativeDeepening instead retries the whole pass
// with an increasing bound (1, 2, ... MaxDepth), accepting the first bound
// that proves the goal. That repeats shallow work on every failed bound, but
// guarantees the shallowest proof is the one returned (spec.md §4.7 step 4).
func (e *Engine) proveGoalFields(fields []string, program *vm.Program, facts map[string]value.Value) ProofResult {
	if e.Strategy != IterativeDeepening {
		return e.proveGoalFieldsAtBound(fields, program, facts, e.MaxDepth)
	}

	for bound := 1; bound < e.MaxDepth; bound++ {
		if result := e.proveGoalFieldsAtBound(fields, program, facts, bound); result.Provable {
			return result
		}
	}
	return e.proveGoalFieldsAtBound(fields, program, facts, e.MaxDepth)
}

func (e *Engine) proveGoalFieldsAtBound(fields []string, program *vm.Program, facts map[string]value.Value, bound int) ProofResult {
	working := cloneFlat(facts)

	savedMaxDepth := e.MaxDepth
	e.MaxDepth = bound
	defer func() { e.MaxDepth = savedMaxDepth }()

	var steps []ProofStep
	var missing []string

	for _, f := range fields {
		if evalFieldPresent(working, f) {
			continue
		}
		ok, fieldSteps, fieldMissing := e.proveField(f, working, 0)
		if ok {
			steps = append(steps, fieldSteps...)
		} else {
			missing = append(missing, fieldMissing...)
		}
	}

	provable := false
	if ok, err := evalGoal(program, working); err == nil && ok {
		provable = true
	}

	return ProofResult{Provable: provable, ProofTrace: steps, MissingFacts: dedupe(missing)}
}

func evalFieldPresent(facts map[string]value.Value, field string) bool {
	_, ok := facts[field]
	return ok
}

// proveField tries to derive field by finding a rule whose condition tree
// can be proved and whose Set action assigns it, simulating that rule's
// action into the in-memory fact copy on success (spec.md §4.7 steps 2-3).
// Under BreadthFirst it first widens across every candidate's direct
// (zero-recursion) satisfiability before deepening into any one of them;
// DepthFirst and IterativeDeepening both commit to the highest-salience
// candidate's full recursive proof immediately, the latter under a bound
// that proveGoalFields tightens on each retry.
func (e *Engine) proveField(field string, facts map[string]value.Value, depth int) (bool, []ProofStep, []string) {
	if depth >= e.MaxDepth {
		return false, nil, nil
	}

	candidates := e.candidatesInOrder(field)
	if len(candidates) == 0 {
		return false, nil, []string{field}
	}

	if e.Strategy == BreadthFirst {
		if ok, steps := e.proveFieldDirect(candidates, facts, field); ok {
			return true, steps, nil
		}
	}

	var missing []string
	for _, cand := range candidates {
		e.Stats.RulesEvaluated++
		ok, steps, candMissing := e.proveCondition(&cand.Condition, facts, depth+1)
		if !ok {
			missing = append(missing, candMissing...)
			continue
		}
		applySetActions(cand, facts)
		steps = append(steps, ProofStep{
			Rule:       cand.Name,
			Premises:   fieldsOfCondition(&cand.Condition),
			Conclusion: field,
		})
		return true, steps, nil
	}
	return false, nil, missing
}

// proveFieldDirect is BreadthFirst's level-0 pass: it tests every candidate's
// condition against the facts as they stand, with no further subgoal
// derivation, so a shallow lower-salience candidate wins over a
// higher-salience one that would otherwise require deep recursion.
func (e *Engine) proveFieldDirect(candidates []*rule.Rule, facts map[string]value.Value, field string) (bool, []ProofStep) {
	for _, cand := range candidates {
		e.Stats.RulesEvaluated++
		if !evalConditionFlat(&cand.Condition, facts) {
			continue
		}
		applySetActions(cand, facts)
		return true, []ProofStep{{
			Rule:       cand.Name,
			Premises:   fieldsOfCondition(&cand.Condition),
			Conclusion: field,
		}}
	}
	return false, nil
}

// candidatesInOrder returns field's conclusion-index candidates in
// descending-salience order, the traversal order all three strategies start
// from; BreadthFirst additionally widens across this same ordering at each
// depth level before any one candidate is allowed to recurse (proveField),
// and IterativeDeepening replays it at successively deeper bounds
// (proveGoalFields).
func (e *Engine) candidatesInOrder(field string) []*rule.Rule {
	return e.index.Candidates(field)
}

func (e *Engine) proveCondition(cond *rule.Condition, facts map[string]value.Value, depth int) (bool, []ProofStep, []string) {
	if cond == nil {
		return true, nil, nil
	}
	switch cond.Kind {
	case rule.ConditionSingle:
		return e.provePattern(cond.Pattern, facts, depth)

	case rule.ConditionAnd:
		ok1, s1, m1 := e.proveCondition(cond.Left, facts, depth)
		if !ok1 {
			return false, s1, m1
		}
		ok2, s2, m2 := e.proveCondition(cond.Right, facts, depth)
		if !ok2 {
			return false, append(s1, s2...), append(m1, m2...)
		}
		return true, append(s1, s2...), nil

	case rule.ConditionOr:
		if ok, s, _ := e.proveCondition(cond.Left, facts, depth); ok {
			return true, s, nil
		}
		if ok, s, _ := e.proveCondition(cond.Right, facts, depth); ok {
			return true, s, nil
		}
		return false, nil, nil

	case rule.ConditionNot, rule.ConditionForall:
		if !evalConditionFlat(cond.Inner, facts) {
			return true, nil, nil
		}
		return false, nil, nil

	case rule.ConditionExists:
		if evalConditionFlat(cond.Inner, facts) {
			return true, nil, nil
		}
		return false, nil, nil
	}
	return false, nil, nil
}

func (e *Engine) provePattern(p *rule.Pattern, facts map[string]value.Value, depth int) (bool, []ProofStep, []string) {
	if evalPatternFlat(p, facts) {
		return true, nil, nil
	}
	if depth >= e.MaxDepth {
		return false, nil, nil
	}

	field := fieldKeyOf(p)
	ok, steps, missing := e.proveField(field, facts, depth)
	if !ok {
		return false, steps, missing
	}
	if evalPatternFlat(p, facts) {
		return true, steps, nil
	}
	return false, steps, missing
}

func applySetActions(r *rule.Rule, facts map[string]value.Value) {
	for _, a := range r.Actions {
		if a.Kind != rule.ActionSet && a.Kind != rule.ActionUpdate {
			continue
		}
		if a.Field == "" {
			continue
		}
		facts[a.Field] = a.Value
	}
}

func cloneFlat(facts map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(facts))
	for k, v := range facts {
		out[k] = v
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
