package processor

import (
	"context"
	"time"

	"github.com/reasonchip/reasonchip/internal/flow"
	"github.com/reasonchip/reasonchip/internal/pipeline"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/varctx"
)

// execKind performs step 4 of spec §4.4: the behavior specific to t.Kind.
// It returns the task's "result" value (nil for kinds that don't produce
// one), or an error/flow-control signal.
func (p *Processor) execKind(ctx context.Context, t *pipeline.Task, index int, scope *varctx.Context, pipelineName string) (any, error) {
	disp := t.DisplayName(index)

	switch t.Kind {
	case pipeline.KindTaskSet:
		childScope := scope.Child()
		q := flow.New(t.TaskSet)
		return p.runFlow(ctx, q, childScope, pipelineName)

	case pipeline.KindDispatch:
		target, ok := p.resolver(t.Dispatch)
		if !ok {
			return nil, rcerrors.New(rcerrors.KindUnknownPipeline, "unknown pipeline %q", t.Dispatch).WithTask(pipelineName, disp)
		}
		params, err := p.interpolateParams(t.Params, scope)
		if err != nil {
			return nil, err
		}
		childScope := scope.ChildWith(params)
		sub := New(Options{Registry: p.registry, Resolver: p.resolver, Eval: p.eval, Code: p.code, Log: p.log})
		return sub.Run(ctx, target, childScope)

	case pipeline.KindBranch:
		target, ok := p.resolver(t.Branch)
		if !ok {
			return nil, rcerrors.New(rcerrors.KindUnknownPipeline, "unknown pipeline %q", t.Branch).WithTask(pipelineName, disp)
		}
		return nil, &branchSignal{pipeline: target}

	case pipeline.KindChip:
		return p.execChip(ctx, t, scope, pipelineName, disp)

	case pipeline.KindCode:
		return p.execCode(ctx, t, scope, pipelineName, disp)

	case pipeline.KindAssert:
		return nil, p.execAssert(t, scope, pipelineName, disp)

	case pipeline.KindReturn:
		val, err := p.eval.Interpolate(t.Return, scope.Root())
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "interpolating return value").WithTask(pipelineName, disp)
		}
		return nil, &returnSignal{value: val}

	case pipeline.KindDeclare:
		interpolated, err := p.eval.Interpolate(copyAnyMap(t.Declare), scope.Root())
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "interpolating declare").WithTask(pipelineName, disp)
		}
		scope.Merge(interpolated.(map[string]any))
		return nil, nil

	case pipeline.KindComment:
		return nil, nil

	case pipeline.KindTerminate:
		val, err := p.eval.Interpolate(t.Terminate, scope.Root())
		if err != nil {
			return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "interpolating terminate value").WithTask(pipelineName, disp)
		}
		return nil, &terminateSignal{value: val}

	default:
		return nil, rcerrors.New(rcerrors.KindValidation, "unknown task kind %q", t.Kind).WithTask(pipelineName, disp)
	}
}

func (p *Processor) execChip(ctx context.Context, t *pipeline.Task, scope *varctx.Context, pipelineName, disp string) (any, error) {
	if t.Chip == pipeline.WaitForChip {
		return p.execWaitFor(ctx, t, scope, pipelineName, disp)
	}

	entry, ok := p.registry.Lookup(t.Chip)
	if !ok {
		return nil, rcerrors.New(rcerrors.KindUnknownChip, "unknown chip %q", t.Chip).WithTask(pipelineName, disp)
	}

	params, err := p.interpolateParams(t.Params, scope)
	if err != nil {
		return nil, err
	}
	if err := entry.RequestSchema.Check(params); err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindChipInvalidInput, err, "chip %q request", t.Chip).WithTask(pipelineName, disp)
	}

	resp, err := entry.Handler(ctx, params)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindInternal, err, "chip %q handler", t.Chip).WithTask(pipelineName, disp)
	}
	if err := entry.ResponseSchema.Check(resp); err != nil {
		return map[string]any{"status": "error", "error": err.Error()}, nil
	}
	return resp, nil
}

// execWaitFor resolves params.handle (a Handle value produced by an
// earlier run_async task) against this Processor's own handle table.
// params.timeout_seconds, if set, bounds the wait; exceeding it yields
// {status: "timeout"} rather than unwinding (spec §5 "Timeouts": "the
// wait_for chip supports an optional deadline; exceeding it yields a
// response whose status indicates timeout").
func (p *Processor) execWaitFor(ctx context.Context, t *pipeline.Task, scope *varctx.Context, pipelineName, disp string) (any, error) {
	params, err := p.interpolateParams(t.Params, scope)
	if err != nil {
		return nil, err
	}

	h, ok := params["handle"].(Handle)
	if !ok {
		return nil, rcerrors.New(rcerrors.KindChipInvalidInput, "wait_for requires a handle param holding an async Handle").
			WithTask(pipelineName, disp)
	}

	waitCtx := ctx
	if secs, ok := numericParam(params["timeout_seconds"]); ok && secs > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, secondsToDuration(secs))
		defer cancel()
	}

	val, err := p.handles.Await(waitCtx, h)
	if err != nil {
		if waitCtx.Err() != nil {
			return map[string]any{"status": "timeout"}, nil
		}
		return map[string]any{"status": "error", "error": err.Error()}, nil
	}
	return map[string]any{"status": "ok", "result": val}, nil
}

func numericParam(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func (p *Processor) execCode(ctx context.Context, t *pipeline.Task, scope *varctx.Context, pipelineName, disp string) (any, error) {
	if p.code == nil {
		return nil, rcerrors.New(rcerrors.KindInternal, "code task present but no CodeRunner configured").WithTask(pipelineName, disp)
	}
	params, err := p.interpolateParams(t.Params, scope)
	if err != nil {
		return nil, err
	}
	out, err := p.code(ctx, t.Code, params, scope.Root())
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindInternal, err, "code task").WithTask(pipelineName, disp)
	}
	return out["result"], nil
}

func (p *Processor) execAssert(t *pipeline.Task, scope *varctx.Context, pipelineName, disp string) error {
	for _, expr := range t.Assert {
		ok, err := p.eval.EvaluatePredicate(expr, scope.Root())
		if err != nil {
			return rcerrors.Wrap(rcerrors.KindExpression, err, "evaluating assertion %q", expr).WithTask(pipelineName, disp)
		}
		if !ok {
			return rcerrors.New(rcerrors.KindAssertionFailed, "assertion failed: %q", expr).WithTask(pipelineName, disp)
		}
	}
	return nil
}

func (p *Processor) interpolateParams(params map[string]any, scope *varctx.Context) (map[string]any, error) {
	if len(params) == 0 {
		return map[string]any{}, nil
	}
	out, err := p.eval.Interpolate(copyAnyMap(params), scope.Root())
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindExpression, err, "interpolating params")
	}
	return out.(map[string]any), nil
}
