package value

import "strings"

// Operator enumerates the comparison and containment operators patterns and
// conditions may use against a Value.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "startsWith"
	OpEndsWith     Operator = "endsWith"
	OpMatches      Operator = "matches" // glob: '*' zero-or-more, '?' exactly-one
	OpIn           Operator = "in"
)

// Compare evaluates a op b per the coercion rules in spec.md §3/§4.1:
//   - Null compares false for every operator except `== Null`.
//   - Integer/Float widen across the pair for ordering and equality.
//   - String operators (contains/startsWith/endsWith/matches) are defined
//     only between two strings.
//   - `in` checks array membership (b must be an Array).
//   - Undefined operator/kind combinations return false rather than
//     erroring, per the "silently false" evaluation policy.
func Compare(a Value, op Operator, b Value) bool {
	if _, aNull := a.(Null); aNull {
		if _, bNull := b.(Null); bNull {
			return op == OpEqual
		}
		return false
	}
	if _, bNull := b.(Null); bNull {
		return false
	}

	switch op {
	case OpEqual:
		return equal(a, b)
	case OpNotEqual:
		return !equal(a, b)
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return orderCompare(a, op, b)
	case OpContains:
		return containsOp(a, b)
	case OpStartsWith:
		as, aok := asStr(a)
		bs, bok := asStr(b)
		return aok && bok && strings.HasPrefix(as, bs)
	case OpEndsWith:
		as, aok := asStr(a)
		bs, bok := asStr(b)
		return aok && bok && strings.HasSuffix(as, bs)
	case OpMatches:
		as, aok := asStr(a)
		bs, bok := asStr(b)
		return aok && bok && Matches(bs, as)
	case OpIn:
		arr, ok := b.(Array)
		if !ok {
			return false
		}
		for _, item := range arr {
			if equal(a, item) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func equal(a, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		af, _ := AsFloat(a)
		bf, _ := AsFloat(b)
		return af == bf
	}
	if as, aok := a.(Str); aok {
		if bs, bok := b.(Str); bok {
			return as == bs
		}
		return false
	}
	if ab, aok := a.(Bool); aok {
		if bb, bok := b.(Bool); bok {
			return ab == bb
		}
		return false
	}
	if ae, aok := a.(Expr); aok {
		if be, bok := b.(Expr); bok {
			return ae == be
		}
		return false
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return a.String() == b.String()
}

func isNumeric(v Value) bool {
	k := v.Kind()
	return k == KindInt || k == KindFloat
}

func orderCompare(a Value, op Operator, b Value) bool {
	if isNumeric(a) && isNumeric(b) {
		af, _ := AsFloat(a)
		bf, _ := AsFloat(b)
		switch op {
		case OpLess:
			return af < bf
		case OpLessEqual:
			return af <= bf
		case OpGreater:
			return af > bf
		case OpGreaterEqual:
			return af >= bf
		}
	}
	as, aok := a.(Str)
	bs, bok := b.(Str)
	if aok && bok {
		switch op {
		case OpLess:
			return as < bs
		case OpLessEqual:
			return as <= bs
		case OpGreater:
			return as > bs
		case OpGreaterEqual:
			return as >= bs
		}
	}
	return false
}

func containsOp(container, item Value) bool {
	switch c := container.(type) {
	case Array:
		for _, v := range c {
			if equal(v, item) {
				return true
			}
		}
		return false
	case Str:
		s, ok := asStr(item)
		return ok && strings.Contains(string(c), s)
	default:
		return false
	}
}

func asStr(v Value) (string, bool) {
	s, ok := v.(Str)
	if !ok {
		return "", false
	}
	return string(s), true
}

// AsInteger projects v to an int64, widening floats by truncation and
// parsing numeric strings. Non-numeric values yield (0, false).
func AsInteger(v Value) (int64, bool) {
	switch t := v.(type) {
	case Int:
		return int64(t), true
	case Float:
		return int64(t), true
	case Bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsFloat projects v to a float64.
func AsFloat(v Value) (float64, bool) {
	switch t := v.(type) {
	case Int:
		return float64(t), true
	case Float:
		return float64(t), true
	case Bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// AsNumber is an alias for AsFloat, matching spec.md's `as_number` name.
func AsNumber(v Value) (float64, bool) { return AsFloat(v) }

// AsBoolean projects v to a bool. Numbers are truthy when non-zero, strings
// are truthy when non-empty, Null is always false.
func AsBoolean(v Value) bool {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case Str:
		return t != ""
	case Null:
		return false
	case Array:
		return len(t) > 0
	default:
		return v != nil
	}
}

// AsString projects v to its string representation. Never fails.
func AsString(v Value) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// Matches implements glob-style wildcard matching with '*' (zero-or-more
// characters) and '?' (exactly one character), by classic recursive
// descent over the pattern and text.
func Matches(pattern, text string) bool {
	return matchesAt(pattern, text)
}

func matchesAt(pattern, text string) bool {
	if pattern == "" {
		return text == ""
	}

	switch pattern[0] {
	case '*':
		// Try consuming zero or more characters of text.
		if matchesAt(pattern[1:], text) {
			return true
		}
		for i := 0; i < len(text); i++ {
			if matchesAt(pattern[1:], text[i+1:]) {
				return true
			}
		}
		return false
	case '?':
		if len(text) == 0 {
			return false
		}
		return matchesAt(pattern[1:], text[1:])
	default:
		if len(text) == 0 || text[0] != pattern[0] {
			return false
		}
		return matchesAt(pattern[1:], text[1:])
	}
}
