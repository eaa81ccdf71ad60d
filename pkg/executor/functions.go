package executor

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// Function is a host-provided pure function conditions and actions may call
// by name, receiving a positional argument list and returning a single
// Value (spec.md §6 "Function registry").
type Function func(args []value.Value) (value.Value, error)

// FunctionRegistry is a thread-safe name -> Function map, pre-populated
// with the built-in set via NewFunctionRegistry (spec.md §6: "The built-in
// set includes at least: len, isEmpty, exists, count, sum, max, min,
// round, avg, uppercase, contains, timestamp, random").
type FunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctionRegistry returns a registry pre-loaded with the built-in
// function set; callers may Register additional host functions on top.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{funcs: make(map[string]Function)}
	for name, fn := range builtinFunctions() {
		r.funcs[name] = fn
	}
	return r
}

// Register adds or replaces the function for name.
func (r *FunctionRegistry) Register(name string, fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Call invokes the named function with args.
func (r *FunctionRegistry) Call(name string, args []value.Value) (value.Value, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	return fn(args)
}

// Has reports whether name is registered.
func (r *FunctionRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

func builtinFunctions() map[string]Function {
	return map[string]Function{
		"len":       fnLen,
		"isEmpty":   fnIsEmpty,
		"exists":    fnExists,
		"count":     fnLen,
		"sum":       fnSum,
		"max":       fnMax,
		"min":       fnMin,
		"round":     fnRound,
		"avg":       fnAvg,
		"uppercase": fnUppercase,
		"contains":  fnContains,
		"timestamp": fnTimestamp,
		"random":    fnRandom,
	}
}

func arrayArg(args []value.Value) (value.Array, bool) {
	if len(args) == 0 {
		return nil, false
	}
	arr, ok := args[0].(value.Array)
	return arr, ok
}

func fnLen(args []value.Value) (value.Value, error) {
	switch {
	case len(args) == 0:
		return value.Int(0), nil
	default:
		switch v := args[0].(type) {
		case value.Array:
			return value.Int(len(v)), nil
		case value.Str:
			return value.Int(len(v)), nil
		default:
			return value.Int(0), nil
		}
	}
}

func fnIsEmpty(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Bool(true), nil
	}
	switch v := args[0].(type) {
	case value.Array:
		return value.Bool(len(v) == 0), nil
	case value.Str:
		return value.Bool(len(v) == 0), nil
	case value.Null:
		return value.Bool(true), nil
	default:
		return value.Bool(false), nil
	}
}

func fnExists(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Bool(false), nil
	}
	_, isNull := args[0].(value.Null)
	return value.Bool(args[0] != nil && !isNull), nil
}

func fnSum(args []value.Value) (value.Value, error) {
	arr, ok := arrayArg(args)
	if !ok {
		return value.Float(0), nil
	}
	var total float64
	for _, v := range arr {
		f, _ := value.AsFloat(v)
		total += f
	}
	return value.Float(total), nil
}

func fnAvg(args []value.Value) (value.Value, error) {
	arr, ok := arrayArg(args)
	if !ok || len(arr) == 0 {
		return value.Float(0), nil
	}
	var total float64
	for _, v := range arr {
		f, _ := value.AsFloat(v)
		total += f
	}
	return value.Float(total / float64(len(arr))), nil
}

func fnMax(args []value.Value) (value.Value, error) {
	arr, ok := arrayArg(args)
	if !ok || len(arr) == 0 {
		return value.Null{}, nil
	}
	best, _ := value.AsFloat(arr[0])
	bestVal := arr[0]
	for _, v := range arr[1:] {
		f, _ := value.AsFloat(v)
		if f > best {
			best, bestVal = f, v
		}
	}
	return bestVal, nil
}

func fnMin(args []value.Value) (value.Value, error) {
	arr, ok := arrayArg(args)
	if !ok || len(arr) == 0 {
		return value.Null{}, nil
	}
	best, _ := value.AsFloat(arr[0])
	bestVal := arr[0]
	for _, v := range arr[1:] {
		f, _ := value.AsFloat(v)
		if f < best {
			best, bestVal = f, v
		}
	}
	return bestVal, nil
}

func fnRound(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Int(0), nil
	}
	f, _ := value.AsFloat(args[0])
	if f >= 0 {
		return value.Int(int64(f + 0.5)), nil
	}
	return value.Int(int64(f - 0.5)), nil
}

func fnUppercase(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Str(""), nil
	}
	return value.Str(strings.ToUpper(value.AsString(args[0]))), nil
}

func fnContains(args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Bool(false), nil
	}
	return value.Bool(value.Compare(args[0], value.OpContains, args[1])), nil
}

func fnTimestamp(_ []value.Value) (value.Value, error) {
	return value.Int(time.Now().UnixNano()), nil
}

func fnRandom(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Float(rand.Float64()), nil
	}
	n, _ := value.AsInteger(args[0])
	if n <= 0 {
		return value.Int(0), nil
	}
	return value.Int(rand.Int63n(n)), nil
}
