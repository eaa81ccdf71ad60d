package rule

import "github.com/smilemakc/ruleforge/pkg/value"

// Rule is a declarative IF-THEN rule: a condition tree plus an ordered
// action list and the conflict-resolution metadata the agenda needs
// (spec.md §3 "Rule").
type Rule struct {
	Name       string
	Salience   int
	Condition  Condition
	Actions    []Action
	AgendaGroup     string
	ActivationGroup string
	RuleflowGroup   string
	NoLoop        bool
	LockOnActive  bool
	AutoFocus     bool
}

// ConditionKind tags the variant of a Condition tree node (spec.md §9:
// "tagged variants {Single, Compound(op,l,r), Not(x), Exists(x), Forall(x),
// Accumulate(...), StreamPattern(...)}").
type ConditionKind int

const (
	ConditionSingle ConditionKind = iota
	ConditionAnd
	ConditionOr
	ConditionNot
	ConditionExists
	ConditionForall
	ConditionAccumulate
	ConditionStreamPattern
)

// Condition is a node in a rule's condition tree. Exactly one of the
// type-specific fields is populated, selected by Kind.
type Condition struct {
	Kind ConditionKind

	// ConditionSingle
	Pattern *Pattern

	// ConditionAnd / ConditionOr
	Left, Right *Condition

	// ConditionNot / ConditionExists / ConditionForall
	Inner *Condition

	// ConditionAccumulate
	Accumulate *AccumulateSpec

	// ConditionStreamPattern
	Stream *StreamPatternSpec
}

// AccumulatorKind enumerates the supported accumulate-node aggregations
// (spec.md §4.3 "Accumulate nodes").
type AccumulatorKind int

const (
	AccCount AccumulatorKind = iota
	AccSum
	AccAvg
	AccMin
	AccMax
)

// AccumulateSpec configures an accumulate node: collect facts matching
// Source, apply Accumulator over ExtractField, bind the result to BindVar,
// and (optionally) test the outcome against a downstream Condition.
type AccumulateSpec struct {
	Source       *Pattern
	Accumulator  AccumulatorKind
	ExtractField string
	BindVar      string
	Having       *Condition
}

// WindowKind enumerates the stream window strategies (spec.md §4.8).
type WindowKind int

const (
	WindowSliding WindowKind = iota
	WindowTumbling
	WindowSession
)

// WindowSpec configures time-windowed retention for a stream pattern.
type WindowSpec struct {
	Kind     WindowKind
	Duration int64 // nanoseconds; sliding/tumbling duration or session gap
}

// StreamPatternSpec configures a C8 stream alpha match embedded in a rule
// condition tree.
type StreamPatternSpec struct {
	StreamName string
	EventType  string
	Window     *WindowSpec
	Pattern    *Pattern
}

// PatternKind tags the variant of a Pattern constraint (spec.md §3
// "Pattern constraints").
type PatternKind int

const (
	PatternSimple PatternKind = iota
	PatternBinding
	PatternVariable
	PatternMultiField
)

// MultiFieldOp enumerates the array operators a Pattern may apply
// (spec.md §3(d)).
type MultiFieldOp int

const (
	MultiCollect MultiFieldOp = iota
	MultiContains
	MultiCount
	MultiFirst
	MultiLast
	MultiIndex
	MultiSlice
	MultiIsEmpty
	MultiNotEmpty
)

// Pattern is a single constraint against one fact type's field.
// FactType+Field identify what is matched; the remaining fields select the
// constraint kind per spec.md §3:
//
//	(a) Simple:    Field Op Literal
//	(b) Binding:   Field := $Var
//	(c) Variable:  Field Op $Var  (Var must already be bound)
//	(d) MultiField: array operator on Field
type Pattern struct {
	Kind     PatternKind
	FactType string
	Field    string

	// PatternSimple
	Op      value.Operator
	Literal value.Value

	// PatternBinding / PatternVariable
	Var string

	// PatternVariable (op against a bound variable's value)
	VarOp value.Operator

	// PatternMultiField
	MultiOp    MultiFieldOp
	Index      int
	SliceStart int
	SliceEnd   int
	Expression string // raw expr-lang source, when the constraint is a compiled expression
}
