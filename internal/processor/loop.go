package processor

import (
	"context"
	"sort"

	"github.com/reasonchip/reasonchip/internal/pipeline"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/varctx"
)

// loopBinding is the `loop` object exposed to a loop body (spec §4.4 step
// 3, §8 "Loop ordering").
type loopBinding struct {
	Index     int
	Index0    int
	First     bool
	Last      bool
	Even      bool
	Odd       bool
	RevIndex  int
	RevIndex0 int
}

func (lb loopBinding) toMap() map[string]any {
	return map[string]any{
		"index": lb.Index, "index0": lb.Index0,
		"first": lb.First, "last": lb.Last,
		"even": lb.Even, "odd": lb.Odd,
		"revindex": lb.RevIndex, "revindex0": lb.RevIndex0,
	}
}

// loopItem is one (item, loop) binding produced by evaluating the loop
// expression, in iteration order.
type loopItem struct {
	item any
	key  any // non-nil only when iterating a mapping
	loop loopBinding
}

func buildLoopItems(raw any) ([]loopItem, error) {
	switch v := raw.(type) {
	case []any:
		return itemsFromSlice(v), nil
	case map[string]any:
		return itemsFromMap(v), nil
	default:
		return nil, rcerrors.New(rcerrors.KindTypeMismatch, "loop expression did not yield a sequence or mapping")
	}
}

func itemsFromSlice(v []any) []loopItem {
	n := len(v)
	items := make([]loopItem, n)
	for i, val := range v {
		items[i] = loopItem{item: val, loop: bindingFor(i, n)}
	}
	return items
}

// itemsFromMap iterates a mapping in sorted-key order, since Go maps have
// no stable order of their own — an implementation decision recorded in
// DESIGN.md. Each item carries its key alongside the value.
func itemsFromMap(v map[string]any) []loopItem {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := len(keys)
	items := make([]loopItem, n)
	for i, k := range keys {
		items[i] = loopItem{item: v[k], key: k, loop: bindingFor(i, n)}
	}
	return items
}

func bindingFor(i, n int) loopBinding {
	return loopBinding{
		Index: i + 1, Index0: i,
		First: i == 0, Last: i == n-1,
		Even: i%2 == 0, Odd: i%2 != 0,
		RevIndex: n - i, RevIndex0: n - i - 1,
	}
}

// execLoop evaluates t.Loop to a sequence or mapping, then re-runs steps
// 4-6 (kind execution + result binding, possibly async) once per iteration
// with the loop bindings layered on execScope (spec §4.4 step 3).
func (p *Processor) execLoop(ctx context.Context, t *pipeline.Task, index int, execScope, parentScope *varctx.Context, pipelineName string) (any, error) {
	disp := t.DisplayName(index)

	raw, err := p.resolveLoopValue(t.Loop, execScope)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "evaluating loop expression").WithTask(pipelineName, disp)
	}

	items, err := buildLoopItems(raw)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "loop").WithTask(pipelineName, disp)
	}

	var last any
	for _, it := range items {
		overlay := map[string]any{"item": it.item, "loop": it.loop.toMap()}
		if it.key != nil {
			overlay["key"] = it.key
		}
		iterScope := execScope.ChildWith(overlay)

		val, err := p.execOnePass(ctx, t, index, iterScope, parentScope, pipelineName)
		if err != nil {
			return nil, err
		}
		last = val
	}
	return last, nil
}

// resolveLoopValue handles `loop:str|seq|map` (spec §6): a string is an
// expression evaluated against scope; a literal sequence or mapping
// (already native Go values from the YAML decode) is interpolated and
// used directly.
func (p *Processor) resolveLoopValue(raw any, scope *varctx.Context) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return p.eval.Interpolate(raw, scope.Root())
	}
	return p.eval.Eval(s, scope.Root())
}
