package rule

import "github.com/smilemakc/ruleforge/pkg/value"

// ActionKind tags the variant of an Action (spec.md §3 "Rule" action list,
// §4.9 action dispatch).
type ActionKind int

const (
	ActionSet ActionKind = iota
	ActionLog
	ActionCall
	ActionMethodCall
	ActionUpdate
	ActionActivateAgendaGroup
	ActionScheduleRule
	ActionInsertLogicalFact
	ActionRetract
)

// Action is one step of a rule's action list, executed in declaration order
// by the engine façade (spec.md §4.9).
type Action struct {
	Kind ActionKind

	// ActionSet / ActionUpdate: assign Field to Value (or to the result of
	// Expression, evaluated over the bound variables) on the last fact
	// handle the activation bound. The engine façade does not read Var.
	Var        string
	Field      string
	Value      value.Value
	Expression string

	// ActionLog
	Message string

	// ActionCall / ActionMethodCall: dispatch to a host-registered handler
	// or function. Object is set for MethodCall ("$var.Method").
	HandlerName string
	Object      string
	Method      string
	Args        map[string]value.Value

	// ActionActivateAgendaGroup / ActionScheduleRule
	GroupName    string
	CronSchedule string // robfig/cron expression or "@every 5m" style

	// ActionInsertLogicalFact: the new fact's type/fields; justification
	// premises are taken from the firing activation's bound fact handles.
	FactType string
	Fields   map[string]value.Value
}
