// Package flow implements the Flow Queue (spec §3 "Flow"): a mutable
// deque of pipeline tasks. Tasks are taken from the front; new tasks are
// only ever pushed to the front, which is how a TaskSet's body or a
// Branch's replacement tasks get spliced ahead of whatever remains.
package flow

import "github.com/reasonchip/reasonchip/internal/pipeline"

// Queue is a Processor's cursor into a pipeline or task set.
type Queue struct {
	tasks []*pipeline.Task
}

// New builds a Queue seeded with tasks, front-to-back in execution order.
func New(tasks []*pipeline.Task) *Queue {
	q := &Queue{tasks: make([]*pipeline.Task, len(tasks))}
	copy(q.tasks, tasks)
	return q
}

// Empty reports whether the queue has been fully drained.
func (q *Queue) Empty() bool { return len(q.tasks) == 0 }

// Len returns the number of tasks remaining.
func (q *Queue) Len() int { return len(q.tasks) }

// Take removes and returns the front task. It panics if the queue is
// empty; callers must check Empty first.
func (q *Queue) Take() *pipeline.Task {
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t
}

// PushFront splices tasks ahead of whatever remains in the queue, used for
// a TaskSet's nested body and for a Branch's replacement tasks.
func (q *Queue) PushFront(tasks []*pipeline.Task) {
	if len(tasks) == 0 {
		return
	}
	merged := make([]*pipeline.Task, 0, len(tasks)+len(q.tasks))
	merged = append(merged, tasks...)
	merged = append(merged, q.tasks...)
	q.tasks = merged
}

// Clear drains the queue entirely, used by BranchTask to discard the
// enclosing flow's remaining tasks before splicing in the branch pipeline.
func (q *Queue) Clear() {
	q.tasks = nil
}
