package rcexpr

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"

	"github.com/expr-lang/expr"
)

// builtinOptions returns the fixed, pure builtin surface spec §4.1 allows:
// abs, min, max, sum, round, pow, len, int, float, str, bool, list, tuple,
// dict, sorted, reversed, enumerate, range, all, any, repr, format, type,
// isinstance, iter, next, escape, unescape. No I/O, no reflection into
// process internals — every function here closes only over its arguments.
func builtinOptions() []expr.Option {
	return []expr.Option{
		expr.Function("abs", fnAbs),
		expr.Function("min", fnMin),
		expr.Function("max", fnMax),
		expr.Function("sum", fnSum),
		expr.Function("round", fnRound),
		expr.Function("pow", fnPow),
		expr.Function("len", fnLen),
		expr.Function("int", fnInt),
		expr.Function("float", fnFloat),
		expr.Function("str", fnStr),
		expr.Function("bool", fnBool),
		expr.Function("list", fnList),
		expr.Function("tuple", fnList),
		expr.Function("dict", fnDict),
		expr.Function("sorted", fnSorted),
		expr.Function("reversed", fnReversed),
		expr.Function("enumerate", fnEnumerate),
		expr.Function("range", fnRange),
		expr.Function("all", fnAll),
		expr.Function("any", fnAny),
		expr.Function("repr", fnRepr),
		expr.Function("format", fnFormat),
		expr.Function("type", fnType),
		expr.Function("isinstance", fnIsInstance),
		expr.Function("iter", fnIter),
		expr.Function("next", fnNext),
		expr.Function("escape", fnEscape),
		expr.Function("unescape", fnUnescape),
		expr.AllowUndefinedVariables(),
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		out := make([]any, 0, len(t))
		for _, r := range t {
			out = append(out, string(r))
		}
		return out
	default:
		return nil
	}
}

func fnAbs(args ...any) (any, error) {
	f, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("abs: not a number")
	}
	if i, ok := args[0].(int); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	return math.Abs(f), nil
}

func fnMin(args ...any) (any, error) { return reduceNumeric(args, func(a, b float64) bool { return a < b }) }
func fnMax(args ...any) (any, error) { return reduceNumeric(args, func(a, b float64) bool { return a > b }) }

func reduceNumeric(args []any, better func(a, b float64) bool) (any, error) {
	items := args
	if len(args) == 1 {
		if s := asSlice(args[0]); s != nil {
			items = s
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty sequence")
	}
	best := items[0]
	bestF, _ := toFloat(best)
	for _, it := range items[1:] {
		f, ok := toFloat(it)
		if !ok {
			continue
		}
		if better(f, bestF) {
			best, bestF = it, f
		}
	}
	return best, nil
}

func fnSum(args ...any) (any, error) {
	items := args
	if len(args) == 1 {
		if s := asSlice(args[0]); s != nil {
			items = s
		}
	}
	total := 0.0
	allInt := true
	for _, it := range items {
		f, ok := toFloat(it)
		if !ok {
			return nil, fmt.Errorf("sum: non-numeric element")
		}
		if _, isInt := it.(int); !isInt {
			allInt = false
		}
		total += f
	}
	if allInt {
		return int(total), nil
	}
	return total, nil
}

func fnRound(args ...any) (any, error) {
	f, ok := toFloat(args[0])
	if !ok {
		return nil, fmt.Errorf("round: not a number")
	}
	if len(args) > 1 {
		if nd, ok := toFloat(args[1]); ok {
			mult := math.Pow(10, nd)
			return math.Round(f*mult) / mult, nil
		}
	}
	return int(math.Round(f)), nil
}

func fnPow(args ...any) (any, error) {
	base, ok1 := toFloat(args[0])
	exp, ok2 := toFloat(args[1])
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("pow: non-numeric argument")
	}
	return math.Pow(base, exp), nil
}

func fnLen(args ...any) (any, error) {
	switch t := args[0].(type) {
	case string:
		return len([]rune(t)), nil
	case []any:
		return len(t), nil
	case map[string]any:
		return len(t), nil
	default:
		return nil, fmt.Errorf("len: unsupported type")
	}
}

func fnInt(args ...any) (any, error) {
	switch t := args[0].(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("int: cannot convert %q", t)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("int: unsupported type")
	}
}

func fnFloat(args ...any) (any, error) {
	if f, ok := toFloat(args[0]); ok {
		return f, nil
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("float: cannot convert %q", s)
		}
		return f, nil
	}
	return nil, fmt.Errorf("float: unsupported type")
}

func fnStr(args ...any) (any, error) { return stringify(args[0]), nil }

func fnBool(args ...any) (any, error) { return truthy(args[0]), nil }

func fnList(args ...any) (any, error) {
	if len(args) == 1 {
		if s := asSlice(args[0]); s != nil {
			return s, nil
		}
	}
	return append([]any{}, args...), nil
}

func fnDict(args ...any) (any, error) {
	out := map[string]any{}
	if len(args) == 1 {
		if pairs, ok := args[0].([]any); ok {
			for _, p := range pairs {
				pair, ok := p.([]any)
				if !ok || len(pair) != 2 {
					return nil, fmt.Errorf("dict: expected [key, value] pairs")
				}
				key, ok := pair[0].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key must be a string")
				}
				out[key] = pair[1]
			}
			return out, nil
		}
	}
	return out, nil
}

func fnSorted(args ...any) (any, error) {
	s := append([]any{}, asSlice(args[0])...)
	sort.SliceStable(s, func(i, j int) bool { return lessAny(s[i], s[j]) })
	return s, nil
}

func lessAny(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af < bf
		}
	}
	return stringify(a) < stringify(b)
}

func fnReversed(args ...any) (any, error) {
	s := asSlice(args[0])
	out := make([]any, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out, nil
}

func fnEnumerate(args ...any) (any, error) {
	s := asSlice(args[0])
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = []any{i, v}
	}
	return out, nil
}

func fnRange(args ...any) (any, error) {
	start, stop, step := 0, 0, 1
	switch len(args) {
	case 1:
		n, _ := args[0].(int)
		stop = n
	case 2:
		start, _ = args[0].(int)
		stop, _ = args[1].(int)
	case 3:
		start, _ = args[0].(int)
		stop, _ = args[1].(int)
		step, _ = args[2].(int)
	default:
		return nil, fmt.Errorf("range: expected 1-3 arguments")
	}
	if step == 0 {
		return nil, fmt.Errorf("range: step cannot be zero")
	}
	var out []any
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, i)
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, i)
		}
	}
	return out, nil
}

func fnAll(args ...any) (any, error) {
	for _, v := range asSlice(args[0]) {
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func fnAny(args ...any) (any, error) {
	for _, v := range asSlice(args[0]) {
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func fnRepr(args ...any) (any, error) {
	if s, ok := args[0].(string); ok {
		return strconv.Quote(s), nil
	}
	return stringify(args[0]), nil
}

func fnFormat(args ...any) (any, error) {
	if len(args) == 0 {
		return "", nil
	}
	tmpl, ok := args[0].(string)
	if !ok {
		return stringify(args[0]), nil
	}
	rest := make([]any, len(args)-1)
	for i, a := range args[1:] {
		rest[i] = a
	}
	return fmt.Sprintf(tmpl, rest...), nil
}

func fnType(args ...any) (any, error) {
	switch args[0].(type) {
	case nil:
		return "NoneType", nil
	case bool:
		return "bool", nil
	case int, int64:
		return "int", nil
	case float64, float32:
		return "float", nil
	case string:
		return "str", nil
	case []any:
		return "list", nil
	case map[string]any:
		return "dict", nil
	default:
		return "object", nil
	}
}

func fnIsInstance(args ...any) (any, error) {
	t, err := fnType(args[0])
	if err != nil {
		return nil, err
	}
	want, _ := args[1].(string)
	return t == want, nil
}

// fnIter returns its argument's elements as a plain slice. ReasonChip
// expressions don't need lazy generators; this is enough to let code call
// iter(x) and pass the result to next() or a loop.
func fnIter(args ...any) (any, error) {
	s := asSlice(args[0])
	return append([]any{}, s...), nil
}

// fnNext returns the first element of a slice produced by iter(), without
// removing it.
// There is no mutable iterator state across calls; callers that need
// repeated next() calls should use a loop task instead (spec §4.4).
func fnNext(args ...any) (any, error) {
	s := asSlice(args[0])
	if len(s) == 0 {
		if len(args) > 1 {
			return args[1], nil
		}
		return nil, fmt.Errorf("next: exhausted iterator")
	}
	return s[0], nil
}

func fnEscape(args ...any) (any, error) {
	s, _ := args[0].(string)
	return html.EscapeString(s), nil
}

func fnUnescape(args ...any) (any, error) {
	s, _ := args[0].(string)
	return html.UnescapeString(s), nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		if t {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(t)
	}
}
