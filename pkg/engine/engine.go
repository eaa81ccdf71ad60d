package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/robfig/cron/v3"

	"github.com/smilemakc/ruleforge/pkg/agenda"
	"github.com/smilemakc/ruleforge/pkg/backward"
	"github.com/smilemakc/ruleforge/pkg/executor"
	"github.com/smilemakc/ruleforge/pkg/memory"
	"github.com/smilemakc/ruleforge/pkg/rete"
	"github.com/smilemakc/ruleforge/pkg/rule"
	"github.com/smilemakc/ruleforge/pkg/tms"
	"github.com/smilemakc/ruleforge/pkg/value"
)

// ActionError reports a failing action within a firing activation, always
// carrying the owning rule's name (spec.md §4.9 guarantee (i)).
type ActionError struct {
	RuleName    string
	ActionIndex int
	Err         error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("rule %q action[%d]: %v", e.RuleName, e.ActionIndex, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// ErrHandleRetractedMidActivation is returned when a rule's action list
// retracts a fact handle and a later action in the same list tries to
// consume it (spec.md §4.9 guarantee (ii)).
var ErrHandleRetractedMidActivation = fmt.Errorf("fact handle retracted earlier in this activation's action list")

// Engine implements the execution cycle: match (pkg/rete) -> conflict
// resolve (pkg/agenda) -> act (pkg/executor dispatch) -> propagate
// (pkg/rete, pkg/tms), per spec.md §4.9.
type Engine struct {
	WM       *memory.WorkingMemory
	Network  *rete.Network
	Agenda   *agenda.Agenda
	TMS      *tms.TMS
	Handlers *executor.HandlerRegistry
	Funcs    *executor.FunctionRegistry
	Backward *backward.Engine

	Options *ExecutionOptions
	Stats   Stats

	scheduler *cron.Cron
}

// New wires an Engine over a compiled rule set and a (possibly
// pre-populated) working memory.
func New(rules []*rule.Rule, wm *memory.WorkingMemory, opts *ExecutionOptions) *Engine {
	if opts == nil {
		opts = DefaultExecutionOptions()
	}
	return &Engine{
		WM:       wm,
		Network:  rete.New(rules),
		Agenda:   agenda.New(),
		TMS:      tms.New(),
		Handlers: executor.NewHandlerRegistry(),
		Funcs:    executor.NewFunctionRegistry(),
		Backward: backward.New(rules, opts.BackwardStrategy, opts.BackwardMaxDepth),
		Options:  opts,
	}
}

// Prove answers goalExpr against the engine's live working memory via
// backward chaining, feeding the same fact base the forward engine
// maintains through WM.ToFlatView (spec.md §7's intent that backward
// queries run over the forward engine's fact base, not a caller-supplied
// copy).
func (e *Engine) Prove(goalExpr string) (backward.ProofResult, error) {
	return e.Backward.Prove(goalExpr, e.WM.ToFlatView().Snapshot())
}

func (e *Engine) emit(ev ExecutionEvent) {
	if e.Options.Observer == nil {
		return
	}
	ev.Timestamp = time.Now()
	e.Options.Observer(ev)
}

func newActivation(id int64, act rete.Activation, r *rule.Rule) *agenda.Activation {
	bindings := make(map[string]any, len(act.Match.Bindings))
	for k, v := range act.Match.Bindings {
		bindings[k] = v
	}
	handles := make([]uint64, len(act.Match.Handles))
	for i, h := range act.Match.Handles {
		handles[i] = uint64(h)
	}
	return &agenda.Activation{
		ID:              id,
		RuleName:        r.Name,
		Salience:        r.Salience,
		AgendaGroup:     r.AgendaGroup,
		ActivationGroup: r.ActivationGroup,
		RuleflowGroup:   r.RuleflowGroup,
		NoLoop:          r.NoLoop,
		LockOnActive:    r.LockOnActive,
		AutoFocus:       r.AutoFocus,
		CreatedAt:       time.Now(),
		Bindings:        bindings,
		Handles:         handles,
	}
}

func (e *Engine) enqueue(activations []rete.Activation) {
	for _, act := range activations {
		r, ok := e.Network.Rule(act.RuleName)
		if !ok {
			continue
		}
		e.Agenda.Add(newActivation(e.Agenda.NextActivationID(), act, r))
	}
}

// Run drives the match -> select -> act -> propagate cycle until the
// agenda is empty, max_cycles is reached, or the optional timeout elapses
// (spec.md §4.9 steps 1-5).
func (e *Engine) Run(ctx context.Context) error {
	e.enqueue(e.Network.EvaluateAll(e.WM))

	var deadline time.Time
	if e.Options.Timeout > 0 {
		deadline = time.Now().Add(e.Options.Timeout)
	}

	maxCycles := e.Options.MaxCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}

	for cycle := 0; cycle < maxCycles; cycle++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("execution timed out after %v", e.Options.Timeout)
		}

		act := e.Agenda.Next()
		if act == nil {
			break
		}

		e.emit(ExecutionEvent{Type: EventCycleStarted, Cycle: cycle, RuleName: act.RuleName, ActivationID: act.ID})
		e.Stats.Cycles++
		e.Stats.ActivationsFired++

		err := e.fire(ctx, act)
		e.Agenda.MarkFired(act)

		if err != nil {
			e.Stats.ActionFailures++
			e.emit(ExecutionEvent{Type: EventRuleFailed, Cycle: cycle, RuleName: act.RuleName, ActivationID: act.ID, Error: err})
			return err
		}
		e.emit(ExecutionEvent{Type: EventRuleFired, Cycle: cycle, RuleName: act.RuleName, ActivationID: act.ID})

		e.propagate()
	}

	return nil
}

func (e *Engine) propagate() {
	modified := e.WM.ModifiedDelta()
	retracted := e.WM.RetractedDelta()

	factTypes := make(map[string]struct{})
	for _, h := range modified {
		if f, ok := e.WM.Get(h); ok {
			factTypes[f.FactType] = struct{}{}
		}
	}
	for _, h := range retracted {
		if f, ok := e.WM.Get(h); ok {
			factTypes[f.FactType] = struct{}{}
		}
	}

	e.Stats.FactsAsserted += len(modified)
	e.Stats.FactsRetracted += len(retracted)

	if len(factTypes) > 0 {
		types := make([]string, 0, len(factTypes))
		for t := range factTypes {
			types = append(types, t)
		}
		e.enqueue(e.Network.Propagate(e.WM, types))
	}

	e.WM.ClearDeltas()
}

// fire executes act's rule's action list in declaration order, per
// spec.md §4.9 step 2.
func (e *Engine) fire(ctx context.Context, act *agenda.Activation) error {
	r, ok := e.Network.Rule(act.RuleName)
	if !ok {
		return &ActionError{RuleName: act.RuleName, Err: fmt.Errorf("rule not found in network")}
	}

	retractedThisActivation := make(map[uint64]bool)

	for i, action := range r.Actions {
		if err := e.executeAction(ctx, r, act, i, action, retractedThisActivation); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) executeAction(ctx context.Context, r *rule.Rule, act *agenda.Activation, index int, action rule.Action, retractedThisActivation map[uint64]bool) error {
	switch action.Kind {
	case rule.ActionSet, rule.ActionUpdate:
		handle, err := e.resolveHandle(act, retractedThisActivation)
		if err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}
		f, ok := e.WM.Get(handle)
		if !ok {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: fmt.Errorf("handle %d not found", handle)}
		}
		fields := cloneFields(f.Fields)
		fields[action.Field] = e.resolveValue(action, act)
		if err := e.WM.Update(handle, fields); err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}
		e.emit(ExecutionEvent{Type: EventFactAsserted, RuleName: r.Name, FactHandle: uint64(handle), FactType: f.FactType})

	case rule.ActionLog:
		e.emit(ExecutionEvent{Type: EventRuleFired, RuleName: r.Name, Message: action.Message})

	case rule.ActionCall, rule.ActionMethodCall:
		name := action.HandlerName
		if action.Kind == rule.ActionMethodCall {
			name = action.Object + "." + action.Method
		}
		handler, err := e.Handlers.Get(name)
		if err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}
		args := e.resolveArgs(action.Args, act)
		policy := e.Options.RetryPolicy
		if policy == nil {
			policy = NoRetryPolicy()
		}
		if err := policy.Execute(ctx, func() error {
			_, handlerErr := handler.Execute(ctx, args, e.WM)
			return handlerErr
		}); err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: &executor.HandlerError{RuleName: r.Name, HandlerName: name, Err: err}}
		}

	case rule.ActionActivateAgendaGroup:
		e.Agenda.SetFocus(action.GroupName)

	case rule.ActionScheduleRule:
		if err := e.scheduleRule(r, action); err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}

	case rule.ActionInsertLogicalFact:
		fields := make(map[string]value.Value, len(action.Fields))
		for k, v := range action.Fields {
			fields[k] = v
		}
		handle := e.WM.Insert(action.FactType, fields)
		premises := make([]rule.FactHandle, len(act.Handles))
		for i, h := range act.Handles {
			premises[i] = rule.FactHandle(h)
		}
		e.TMS.AddLogicalJustification(handle, r.Name, premises)
		e.emit(ExecutionEvent{Type: EventFactAsserted, RuleName: r.Name, FactHandle: uint64(handle), FactType: action.FactType})

	case rule.ActionRetract:
		handle, err := e.resolveHandle(act, retractedThisActivation)
		if err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}
		if err := e.WM.Retract(handle); err != nil {
			return &ActionError{RuleName: r.Name, ActionIndex: index, Err: err}
		}
		retractedThisActivation[uint64(handle)] = true
		for _, cascaded := range e.TMS.RetractWithCascade(handle) {
			retractedThisActivation[uint64(cascaded)] = true
			if cascaded != handle {
				_ = e.WM.Retract(cascaded)
			}
			e.Stats.Cascades++
			e.emit(ExecutionEvent{Type: EventJustificationCascaded, RuleName: r.Name, FactHandle: uint64(cascaded)})
		}
		e.emit(ExecutionEvent{Type: EventFactRetracted, RuleName: r.Name, FactHandle: uint64(handle)})
	}
	return nil
}

// resolveHandle picks the fact handle an action targets. Rules with a
// single matched pattern (the common case this façade optimizes for) bind
// exactly one handle; guarantee (ii) is enforced here regardless of which
// handle a multi-pattern rule would otherwise target.
func (e *Engine) resolveHandle(act *agenda.Activation, retractedThisActivation map[uint64]bool) (rule.FactHandle, error) {
	if len(act.Handles) == 0 {
		return 0, fmt.Errorf("activation has no bound fact handle")
	}
	handle := act.Handles[len(act.Handles)-1]
	if retractedThisActivation[handle] {
		return 0, fmt.Errorf("%w: handle %d", ErrHandleRetractedMidActivation, handle)
	}
	return rule.FactHandle(handle), nil
}

func (e *Engine) resolveValue(action rule.Action, act *agenda.Activation) value.Value {
	if action.Expression == "" {
		return action.Value
	}
	env := make(map[string]any, len(act.Bindings))
	for k, v := range act.Bindings {
		if val, ok := v.(value.Value); ok {
			env[k] = val.Raw()
		} else {
			env[k] = v
		}
	}
	result, err := expr.Eval(action.Expression, env)
	if err != nil {
		return action.Value
	}
	return value.FromRaw(result)
}

func (e *Engine) resolveArgs(actionArgs map[string]value.Value, act *agenda.Activation) map[string]value.Value {
	args := make(map[string]value.Value, len(actionArgs)+len(act.Bindings))
	for k, v := range act.Bindings {
		if val, ok := v.(value.Value); ok {
			args[k] = val
		}
	}
	for k, v := range actionArgs {
		args[k] = v
	}
	return args
}

func (e *Engine) scheduleRule(r *rule.Rule, action rule.Action) error {
	if e.scheduler == nil {
		e.scheduler = cron.New()
		e.scheduler.Start()
	}
	group := action.GroupName
	_, err := e.scheduler.AddFunc(action.CronSchedule, func() {
		for _, act := range e.Network.Evaluate(r.Name, e.WM) {
			a := newActivation(e.Agenda.NextActivationID(), act, r)
			if group != "" {
				a.AgendaGroup = group
			}
			e.Agenda.Add(a)
		}
	})
	return err
}

// Close stops the cron scheduler backing any ActionScheduleRule actions.
func (e *Engine) Close() {
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
}

func cloneFields(fields map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
