// Package engine implements the Engine (spec §4.5): it owns the Chip
// Registry and Pipeline Collection, validates them together at load time,
// and constructs a fresh Processor per run.
package engine

import (
	"context"
	"io/fs"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/pipeline"
	"github.com/reasonchip/reasonchip/internal/processor"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/rcexpr"
	"github.com/reasonchip/reasonchip/internal/telemetry"
	"github.com/reasonchip/reasonchip/internal/varctx"
)

// CollectionSource names a filesystem root to load under a collection
// name, mirroring the CLI's repeatable `--collection name=path` flag.
type CollectionSource struct {
	Name string
	FS   fs.FS
	Root string
}

// Options configures an Engine.
type Options struct {
	Registry *chipreg.Registry
	Eval     *rcexpr.Evaluator
	Code     processor.CodeRunner
	Log      telemetry.Logger
}

// Engine owns the Chip Registry and Pipeline Collection for one process
// (spec §3 "Ownership": "The Engine owns the Chip Registry and Pipeline
// Collection").
type Engine struct {
	registry   *chipreg.Registry
	eval       *rcexpr.Evaluator
	code       processor.CodeRunner
	log        telemetry.Logger
	collection pipeline.Collection
}

// New constructs an Engine. Call Load before Run.
func New(opts Options) *Engine {
	e := &Engine{
		registry:   opts.Registry,
		eval:       opts.Eval,
		code:       opts.Code,
		log:        opts.Log,
		collection: pipeline.Collection{},
	}
	if e.registry == nil {
		e.registry = chipreg.New()
	}
	if e.eval == nil {
		e.eval = rcexpr.New()
	}
	if e.code == nil {
		e.code = defaultCodeRunner(e.eval)
	}
	if e.log == nil {
		e.log = telemetry.NoopLogger{}
	}
	return e
}

// Load builds the pipeline collection from sources and validates it
// against the registry (spec §4.5 load: "(i) every DispatchTask/BranchTask
// references an existing pipeline name; (ii) every ChipTask references a
// registered chip; (iii) all schemas parse"). Schema parsing is enforced
// earlier, at YAML decode time (pipeline.LoadFile); by the time Load calls
// Validate, only cross-reference checks (i) and (ii) remain to verify.
func (e *Engine) Load(sources ...CollectionSource) error {
	cols := make([]pipeline.Collection, 0, len(sources))
	for _, src := range sources {
		col, err := pipeline.LoadDir(src.FS, src.Root, src.Name)
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}
	merged, err := pipeline.MergeCollections(cols...)
	if err != nil {
		return err
	}
	e.collection = merged
	return e.Validate()
}

// Validate recomputes the load-time invariants on demand (spec §4.5).
func (e *Engine) Validate() error {
	return e.collection.Validate(e.registry.Has)
}

// Registry exposes the Chip Registry for CLI-side chip discovery wiring.
func (e *Engine) Registry() *chipreg.Registry { return e.registry }

// Collection exposes the loaded Pipeline Collection, read-only by
// convention (borrowers must not mutate the returned map).
func (e *Engine) Collection() pipeline.Collection { return e.collection }

// defaultCodeRunner implements CodeTask (spec §9 "Expression evaluator":
// "compile a narrower expression grammar sufficient for the test suite")
// by treating the task's `code` body as a single expression evaluated with
// expr-lang/expr, the same evaluator already used for `when:` guards and
// interpolation (internal/rcexpr). params are layered over env so a chip
// param shadows a same-named pipeline variable; the expression's value is
// returned under the "result" key execCode already expects.
func defaultCodeRunner(ev *rcexpr.Evaluator) processor.CodeRunner {
	return func(_ context.Context, body string, params, env map[string]any) (map[string]any, error) {
		merged := make(map[string]any, len(env)+len(params))
		for k, v := range env {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		value, err := ev.Eval(body, merged)
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": value}, nil
	}
}

// Run constructs a Processor bound to this Engine's registry and
// collection, seeds the flow with entryName's tasks, and returns the
// overall result (spec §4.5 run). A Terminate anywhere in the run
// surfaces here as its propagated value rather than an error, per spec §9
// ("signals the Engine to abort the entire run").
func (e *Engine) Run(ctx context.Context, entryName string, variables map[string]any) (any, error) {
	entry, ok := e.collection[entryName]
	if !ok {
		return nil, rcerrors.New(rcerrors.KindUnknownPipeline, "unknown pipeline %q", entryName)
	}

	p := processor.New(processor.Options{
		Registry: e.registry,
		Resolver: e.collection.Resolve,
		Eval:     e.eval,
		Code:     e.code,
		Log:      e.log,
	})

	result, err := p.Run(ctx, entry, varctx.New(variables))
	if err != nil {
		if val, ok := processor.AsTerminate(err); ok {
			return val, nil
		}
		return nil, err
	}
	return result, nil
}
