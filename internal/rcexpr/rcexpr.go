// Package rcexpr implements the Expression Evaluator (spec §4.1): safe
// predicate evaluation and string-template interpolation over a Variable
// Context, compiled with github.com/expr-lang/expr and restricted to a
// fixed allow-list of pure builtins.
package rcexpr

import (
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// DefaultMaxDepth bounds the recursion of Interpolate over nested
// maps/sequences, guarding against cyclic references (spec §4.1, §9).
const DefaultMaxDepth = 64

// Evaluator compiles and runs expressions against a plain
// map[string]any environment. It caches compiled programs by source text,
// since the same expression (a `when:` guard, a loop expression) is
// typically evaluated once per loop iteration.
type Evaluator struct {
	maxDepth int
	cache    map[string]*vm.Program
	opts     []expr.Option
}

// New constructs an Evaluator with the default recursion depth.
func New() *Evaluator {
	return &Evaluator{
		maxDepth: DefaultMaxDepth,
		cache:    make(map[string]*vm.Program),
		opts:     builtinOptions(),
	}
}

// WithMaxDepth overrides the interpolation recursion limit.
func (e *Evaluator) WithMaxDepth(n int) *Evaluator {
	e.maxDepth = n
	return e
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	if p, ok := e.cache[source]; ok {
		return p, nil
	}
	p, err := expr.Compile(source, e.opts...)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "compile expression %q", source)
	}
	e.cache[source] = p
	return p, nil
}

// Eval compiles (or reuses) and runs source against env, returning the raw
// result. This is the common entry point behind both EvaluatePredicate and
// the placeholder-substitution half of Interpolate.
func (e *Evaluator) Eval(source string, env map[string]any) (any, error) {
	program, err := e.compile(source)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "evaluate expression %q", source)
	}
	return out, nil
}

// EvaluatePredicate evaluates source in boolean context, per spec's
// truthy/falsey scalar rules: zero values, empty strings/collections, false,
// and nil are falsey; everything else is truthy.
func (e *Evaluator) EvaluatePredicate(source string, env map[string]any) (bool, error) {
	v, err := e.Eval(source, env)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// Interpolate recursively walks value, substituting `{{ expr }}`
// placeholders inside strings by evaluating them against env (spec §4.1).
// A string that is exactly one placeholder is replaced by the native,
// type-preserved result; any other string has its placeholders stringified
// and concatenated into the surrounding text. Maps and sequences are deep
// copied with every element interpolated; other scalars pass through as-is.
func (e *Evaluator) Interpolate(value any, env map[string]any) (any, error) {
	return e.interpolateDepth(value, env, 0)
}

func (e *Evaluator) interpolateDepth(value any, env map[string]any, depth int) (any, error) {
	if depth > e.maxDepth {
		return nil, rcerrors.New(rcerrors.KindExpression, "interpolation recursion limit (%d) exceeded", e.maxDepth)
	}
	switch v := value.(type) {
	case string:
		return e.interpolateString(v, env)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			nv, err := e.interpolateDepth(val, env, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			nv, err := e.interpolateDepth(val, env, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return value, nil
	}
}

func (e *Evaluator) interpolateString(s string, env map[string]any) (any, error) {
	matches := placeholderRe.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s, nil
	}

	// Entire string is a single placeholder: type-preserving replacement.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		expr := s[matches[0][2]:matches[0][3]]
		return e.Eval(expr, env)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end, exprStart, exprEnd := m[0], m[1], m[2], m[3]
		b.WriteString(s[last:start])
		result, err := e.Eval(s[exprStart:exprEnd], env)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(result))
		last = end
	}
	b.WriteString(s[last:])
	return b.String(), nil
}
