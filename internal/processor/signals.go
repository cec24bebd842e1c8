package processor

import "github.com/reasonchip/reasonchip/internal/pipeline"

// returnSignal and terminateSignal are flow-control signals (spec §7
// "Flow-control signals: Return, Terminate — not errors, but unwinding
// signals; they never escape the Processor as exceptions"). Internally
// they travel as errors so they unwind through ordinary Go call stacks.
// runFlow/Run intercept a returnSignal; a terminateSignal leaves Run as an
// error value, and the Engine turns it into the run's result via
// AsTerminate.
type returnSignal struct{ value any }

func (r *returnSignal) Error() string { return "return signal (internal, not a real error)" }

// terminateSignal unwinds every enclosing flow and Processor.Run, all the
// way to the Engine, which converts it into the run's overall result
// (spec §4.4 TerminateTask, §9).
type terminateSignal struct{ value any }

func (t *terminateSignal) Error() string { return "terminate signal (internal, not a real error)" }

// branchSignal is BranchTask's unwind: caught only by the enclosing
// runFlow, which clears its own queue and splices in the branch
// pipeline's tasks in its place (spec §4.4 BranchTask: "Control never
// returns to the prior flow position").
type branchSignal struct{ pipeline *pipeline.Pipeline }

func (b *branchSignal) Error() string { return "branch signal (internal, not a real error)" }

// AsTerminate reports whether err is a terminateSignal, extracting its
// value. Exported via a function (not a type switch at call sites) so the
// Engine doesn't need to import processor's unexported types directly.
func AsTerminate(err error) (any, bool) {
	if ts, ok := err.(*terminateSignal); ok {
		return ts.value, true
	}
	return nil, false
}
