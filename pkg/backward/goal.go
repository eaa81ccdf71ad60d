// Package backward implements goal-driven proof search over the same fact
// base C3 matches forward: a goal expression compiled with expr-lang/expr,
// a conclusion index mapping settable fields to candidate rules, and
// DFS/BFS/iterative-deepening search with a proof-graph cache
// (spec.md §4.7).
package backward

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// compileGoal compiles a goal expression ("D == true", "len(Items) > 0")
// against a dynamic map[string]any environment. AllowUndefinedVariables
// mirrors spec.md §4.1's "undefined comparisons are false" policy: a field
// absent from the fact base evaluates to nil rather than failing compile.
func compileGoal(expression string) (*vm.Program, error) {
	return expr.Compile(
		expression,
		expr.Env(map[string]any{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
		builtinFunctions()...,
	)
}

func evalGoal(program *vm.Program, facts map[string]value.Value) (bool, error) {
	out, err := expr.Run(program, flatToAny(facts))
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("goal expression did not evaluate to bool: %v", out)
	}
	return b, nil
}

func flatToAny(facts map[string]value.Value) map[string]any {
	out := make(map[string]any, len(facts))
	for k, v := range facts {
		out[k] = v.Raw()
	}
	return out
}

// builtinFunctions registers the mini-language's isEmpty(x), exists(x) and
// count(x) calls as expr-lang options bound against the dynamic
// environment; len(x) is expr-lang's own built-in and is not registered
// here.
func builtinFunctions() []expr.Option {
	return []expr.Option{
		expr.Function("isEmpty", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("isEmpty expects 1 argument")
			}
			return isEmptyAny(params[0]), nil
		}),
		expr.Function("exists", func(params ...any) (any, error) {
			if len(params) != 1 {
				return false, fmt.Errorf("exists expects 1 argument")
			}
			return params[0] != nil, nil
		}),
		expr.Function("count", func(params ...any) (any, error) {
			if len(params) != 1 {
				return 0, fmt.Errorf("count expects 1 argument")
			}
			return lengthOfAny(params[0]), nil
		}),
	}
}

func isEmptyAny(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

func lengthOfAny(v any) int {
	switch t := v.(type) {
	case string:
		return len(t)
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 0
	}
}

// extractFields walks a compiled goal expression's AST, collecting every
// dotted field path it references (spec.md §4.7 "extract_fields() →
// list<field_path>"), used both for missing-fact reporting and to find the
// conclusion-index candidates that might prove an unresolved goal.
func extractFields(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, err
	}

	v := &fieldVisitor{seen: make(map[string]struct{})}
	ast.Walk(&tree.Node, v)
	return v.fields, nil
}

type fieldVisitor struct {
	fields []string
	seen   map[string]struct{}
}

func (v *fieldVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.MemberNode:
		if path, ok := memberPath(n); ok {
			v.add(path)
		}
	case *ast.IdentifierNode:
		v.add(n.Value)
	}
}

func (v *fieldVisitor) add(path string) {
	if _, dup := v.seen[path]; dup {
		return
	}
	v.seen[path] = struct{}{}
	v.fields = append(v.fields, path)
}

// memberPath reconstructs a dotted path ("Customer.Tier") from a chain of
// MemberNode/IdentifierNode, the shape expr-lang produces for `a.b.c`.
func memberPath(m *ast.MemberNode) (string, bool) {
	prop, ok := m.Property.(*ast.StringNode)
	if !ok {
		return "", false
	}
	switch base := m.Node.(type) {
	case *ast.IdentifierNode:
		return base.Value + "." + prop.Value, true
	case *ast.MemberNode:
		parent, ok := memberPath(base)
		if !ok {
			return "", false
		}
		return parent + "." + prop.Value, true
	}
	return "", false
}
