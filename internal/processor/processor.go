// Package processor implements the Processor (spec §4.4): the interpreter
// that walks a Flow of tasks, performing the conditional gate, scope
// materialization, loop expansion, kind-specific execution, result
// binding, and async dispatch steps for each task in order.
package processor

import (
	"context"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/flow"
	"github.com/reasonchip/reasonchip/internal/pipeline"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/rcexpr"
	"github.com/reasonchip/reasonchip/internal/telemetry"
	"github.com/reasonchip/reasonchip/internal/varctx"
)

// CodeRunner executes an inline CodeTask body. The host process supplies
// one (the spec leaves the embedded scripting language open; ReasonChip
// restricts it to the same expression grammar as everything else, see
// DESIGN.md) — params are pre-interpolated, and the runner returns the
// body's `result` binding.
type CodeRunner func(ctx context.Context, body string, params map[string]any, env map[string]any) (map[string]any, error)

// Options configures a Processor. Registry and Resolver are borrowed
// read-only for the run's lifetime (spec §3 "Ownership").
type Options struct {
	Registry *chipreg.Registry
	Resolver pipeline.Resolver
	Eval     *rcexpr.Evaluator
	Code     CodeRunner
	Log      telemetry.Logger
}

// Processor is exclusively owned by one run (spec §3, §5: "not
// thread-safe: each pipeline run is owned by exactly one task").
type Processor struct {
	registry *chipreg.Registry
	resolver pipeline.Resolver
	eval     *rcexpr.Evaluator
	code     CodeRunner
	log      telemetry.Logger
	handles  *handleTable
}

// New constructs a Processor bound to opts. A nil Eval gets a fresh
// default Evaluator; a nil Log gets the no-op Logger.
func New(opts Options) *Processor {
	p := &Processor{
		registry: opts.Registry,
		resolver: opts.Resolver,
		eval:     opts.Eval,
		code:     opts.Code,
		log:      opts.Log,
		handles:  newHandleTable(),
	}
	if p.eval == nil {
		p.eval = rcexpr.New()
	}
	if p.log == nil {
		p.log = telemetry.NoopLogger{}
	}
	return p
}

// Run executes pl's tasks over the given root scope. A Return encountered
// at this top level unwinds this Run's own flow and becomes the returned
// value (spec §4.4 ReturnTask: "unwinds the current flow ... that owns the
// Processor"). A Terminate is NOT caught here: it propagates as an error so
// it can keep unwinding through any enclosing Dispatch calls, all the way
// to whichever Engine.run initiated the outermost call (spec §9 "signals
// the Engine to abort the entire run").
func (p *Processor) Run(ctx context.Context, pl *pipeline.Pipeline, scope *varctx.Context) (result any, err error) {
	defer p.handles.CancelAll()

	q := flow.New(pl.Tasks)
	val, err := p.runFlow(ctx, q, scope, pl.Name)
	if err != nil {
		if rs, ok := err.(*returnSignal); ok {
			return rs.value, nil
		}
		return nil, err
	}
	return val, nil
}

// runFlow drains q task by task. It catches returnSignal (the enclosing
// flow's own unwind) but lets terminateSignal and every real error
// propagate to the caller unchanged.
func (p *Processor) runFlow(ctx context.Context, q *flow.Queue, scope *varctx.Context, pipelineName string) (any, error) {
	index := 0
	for !q.Empty() {
		t := q.Take()
		_, err := p.execTask(ctx, t, index, scope, pipelineName)
		index++
		if err != nil {
			if rs, ok := err.(*returnSignal); ok {
				return rs.value, nil
			}
			if bs, ok := err.(*branchSignal); ok {
				q.Clear()
				q.PushFront(bs.pipeline.Tasks)
				continue
			}
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindCancelled, err, "pipeline %q cancelled", pipelineName).
				WithTask(pipelineName, t.DisplayName(index-1))
		}
	}
	return nil, nil
}

// execTask performs steps 1-6 of spec §4.4 for a single task node.
func (p *Processor) execTask(ctx context.Context, t *pipeline.Task, index int, scope *varctx.Context, pipelineName string) (any, error) {
	disp := t.DisplayName(index)

	// 1. Conditional gate.
	if t.When != "" {
		ok, err := p.eval.EvaluatePredicate(t.When, scope.Root())
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "evaluating when-clause").WithTask(pipelineName, disp)
		}
		if !ok {
			return nil, nil
		}
	}

	// 2. Scope materialization.
	execScope := scope
	if len(t.Variables) != 0 {
		interpolated, err := p.eval.Interpolate(copyAnyMap(t.Variables), scope.Root())
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "interpolating task variables").WithTask(pipelineName, disp)
		}
		execScope = scope.ChildWith(interpolated.(map[string]any))
	} else if t.Kind == pipeline.KindDeclare {
		// A declare merges into the enclosing flow's scope so the tasks
		// after it can read the declared values.
		execScope = scope
	} else {
		execScope = scope.Child()
	}

	// 3. Loop expansion (wraps steps 4-6 per iteration) or a single pass.
	if t.Loop != nil {
		return p.execLoop(ctx, t, index, execScope, scope, pipelineName)
	}
	return p.execOnePass(ctx, t, index, execScope, scope, pipelineName)
}

// execOnePass runs steps 4 (kind-specific execution, sync or async per
// step 6) and 5 (result binding) once, against execScope, binding results
// into parentScope.
func (p *Processor) execOnePass(ctx context.Context, t *pipeline.Task, index int, execScope, parentScope *varctx.Context, pipelineName string) (any, error) {
	disp := t.DisplayName(index)

	run := func(runCtx context.Context) (any, error) {
		return p.execKind(runCtx, t, index, execScope, pipelineName)
	}

	var value any
	var err error

	if t.RunAsync && supportsAsync(t.Kind) {
		h := p.handles.spawn(ctx, run)
		value = h
	} else {
		value, err = run(ctx)
		if err != nil {
			return nil, err
		}
	}

	if err := p.bindResult(t, value, parentScope); err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindInternal, err, "binding result").WithTask(pipelineName, disp)
	}

	if t.ReturnResult {
		return nil, &returnSignal{value: value}
	}
	return value, nil
}

func supportsAsync(k pipeline.Kind) bool {
	switch k {
	case pipeline.KindTaskSet, pipeline.KindDispatch, pipeline.KindChip, pipeline.KindCode:
		return true
	default:
		return false
	}
}

// bindResult applies step 5's four sinks (spec §4.4). A nil value with no
// sinks configured is a no-op, matching CommentTask/DeclareTask/BranchTask,
// which never produce a bindable value.
func (p *Processor) bindResult(t *pipeline.Task, value any, parentScope *varctx.Context) error {
	if t.StoreResultAs != "" {
		if err := parentScope.Set(t.StoreResultAs, value); err != nil {
			return err
		}
	}
	if t.AppendResultInto != "" {
		if err := parentScope.Append(t.AppendResultInto, value); err != nil {
			return err
		}
	}
	if t.KeyResultInto != nil {
		if err := keyInto(parentScope, t.KeyResultInto.Path, t.KeyResultInto.Key, value); err != nil {
			return err
		}
	}
	return nil
}

func keyInto(scope *varctx.Context, path, key string, value any) error {
	existing, err := scope.Get(path)
	m, ok := existing.(map[string]any)
	if err != nil || !ok {
		m = map[string]any{}
	}
	m[key] = value
	return scope.Set(path, m)
}

func copyAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
