package processor

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is an opaque reference to a still-running async task (spec §3
// "Async Handle", §9 "Async handles as first-class values"). It is never
// serialized into a pipeline result that crosses the wire; only the
// well-known `wait_for` chip is able to resolve one, by looking it up in
// the owning Processor's handle table.
type Handle struct {
	id string
}

// ID is the opaque token a ChipTask/CodeTask/TaskSet/DispatchTask result
// carries when run_async is set.
func (h Handle) ID() string { return h.id }

type pendingAsync struct {
	done   chan struct{}
	value  any
	err    error
	cancel context.CancelFunc
}

// handleTable tracks every async task spawned by one Processor run, so
// unwinding the Processor cancels every handle it ever produced (spec §3
// Async Handle lifecycle: "auto-cancelled when its Processor unwinds").
type handleTable struct {
	mu      sync.Mutex
	pending map[string]*pendingAsync
}

func newHandleTable() *handleTable {
	return &handleTable{pending: make(map[string]*pendingAsync)}
}

// spawn runs fn in its own goroutine, returning a Handle immediately. fn
// receives a context derived from ctx that the table cancels on CancelAll.
func (t *handleTable) spawn(ctx context.Context, fn func(context.Context) (any, error)) Handle {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	pa := &pendingAsync{done: make(chan struct{}), cancel: cancel}

	t.mu.Lock()
	t.pending[id] = pa
	t.mu.Unlock()

	go func() {
		pa.value, pa.err = fn(runCtx)
		close(pa.done)
	}()

	return Handle{id: id}
}

// Await blocks until the handle's task completes or ctx is cancelled,
// returning the task's value/error. Consumed by the `wait_for` chip.
func (t *handleTable) Await(ctx context.Context, h Handle) (any, error) {
	t.mu.Lock()
	pa, ok := t.pending[h.id]
	t.mu.Unlock()
	if !ok {
		return nil, errUnknownHandle(h)
	}

	select {
	case <-pa.done:
		return pa.value, pa.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelAll cancels every async task this table ever spawned, called when
// the owning Processor's run unwinds (error, Return, Terminate, or
// cancellation).
func (t *handleTable) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, pa := range t.pending {
		pa.cancel()
	}
}
