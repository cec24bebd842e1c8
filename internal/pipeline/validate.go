package pipeline

import (
	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// ChipChecker reports whether a dotted chip name is registered, satisfied
// by *chipreg.Registry without importing it here (avoids a dependency
// cycle: chipreg never needs to know about pipelines).
type ChipChecker func(name string) bool

// WaitForChip is the well-known chip name that awaits an async Handle
// (spec §3 "Async Handle", §4.8). The Processor handles it intrinsically
// rather than through the Chip Registry (resolving a handle needs the
// issuing Processor's own handle table, which no registry entry can
// reach), so Validate must exempt it from the "chip is registered" check
// a chip task would otherwise require.
const WaitForChip = "wait_for"

// Validate walks every task in the collection and enforces the structural
// invariants the loader cannot check node-by-node (spec §4.5 Engine.load):
//   - dispatch/branch targets exist in the same collection
//   - chip references resolve against checkChip
//   - run_async requires a result sink, since an async result with nowhere
//     to go can never be observed (spec §4.4 invariant)
func (c Collection) Validate(checkChip ChipChecker) error {
	for name, p := range c {
		if err := validateTasks(p.Tasks, name, c, checkChip); err != nil {
			return err
		}
	}
	return nil
}

func validateTasks(tasks []*Task, pipeline string, col Collection, checkChip ChipChecker) error {
	for i, t := range tasks {
		if err := validateTask(t, i, pipeline, col, checkChip); err != nil {
			return err
		}
	}
	return nil
}

func validateTask(t *Task, index int, pipeline string, col Collection, checkChip ChipChecker) error {
	disp := t.DisplayName(index)

	if t.RunAsync && !t.HasResultSink() {
		return rcerrors.New(rcerrors.KindValidation,
			"task %q sets run_async but has no result sink (store_result_as/append_result_into/key_result_into/return_result)",
			disp).WithTask(pipeline, disp)
	}

	switch t.Kind {
	case KindDispatch:
		if _, ok := col[t.Dispatch]; !ok {
			return rcerrors.New(rcerrors.KindUnknownPipeline, "dispatch references unknown pipeline %q", t.Dispatch).
				WithTask(pipeline, disp)
		}
	case KindBranch:
		if _, ok := col[t.Branch]; !ok {
			return rcerrors.New(rcerrors.KindUnknownPipeline, "branch references unknown pipeline %q", t.Branch).
				WithTask(pipeline, disp)
		}
	case KindChip:
		if t.Chip != WaitForChip && checkChip != nil && !checkChip(t.Chip) {
			return rcerrors.New(rcerrors.KindUnknownChip, "chip task references unknown chip %q", t.Chip).
				WithTask(pipeline, disp)
		}
	case KindTaskSet:
		if err := validateTasks(t.TaskSet, pipeline, col, checkChip); err != nil {
			return err
		}
	}

	return nil
}
