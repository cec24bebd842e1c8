// Package integration wires a real Broker, one or more Worker
// TaskManagers, and a Client Multiplexor together over in-memory
// transports, exercising the concrete seed-test scenarios of spec §8
// that no single package can exercise alone.
package integration

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/broker"
	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/chips"
	"github.com/reasonchip/reasonchip/internal/client"
	"github.com/reasonchip/reasonchip/internal/engine"
	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/transport/memory"
	"github.com/reasonchip/reasonchip/internal/worker"
)

// blockProvider registers a chip that blocks until its context is
// cancelled, standing in for spec §8 scenario 5's "pipeline whose first
// task awaits indefinitely".
type blockProvider struct{}

func (blockProvider) ModulePrefix() string { return "block" }

func (blockProvider) Chips() []chipreg.ChipDef {
	return []chipreg.ChipDef{
		{Name: "forever", Handler: func(ctx context.Context, _ map[string]any) (map[string]any, error) {
			// Blocks until cancelled, then returns normally so the
			// processor's own ctx.Err() check (not the handler) is what
			// classifies the run as cancelled (spec §7 propagation
			// policy draws that line at the processor, not the chip).
			<-ctx.Done()
			return map[string]any{}, nil
		}},
	}
}

const upperEntryYAML = `
- chip: strip.upper
  params:
    s: "{{input}}"
  store_result_as: out
  return_result: true
`

const blockEntryYAML = `
- chip: block.forever
`

func newTestEngine(t *testing.T, entries map[string]string) *engine.Engine {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, body := range entries {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	reg := chipreg.New()
	require.NoError(t, reg.Discover(chips.BuiltinProviders()...))
	require.NoError(t, reg.Discover(blockProvider{}))
	e := engine.New(engine.Options{Registry: reg})
	require.NoError(t, e.Load(engine.CollectionSource{Name: "demo", FS: fsys, Root: "."}))
	return e
}

// harness wires a Broker between a client-side Bus and a worker-side Bus,
// and exposes helpers to dial a Client Multiplexor or a Worker
// TaskManager against it.
type harness struct {
	t         *testing.T
	clientBus *memory.Bus
	workerBus *memory.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cb := memory.NewBus()
	wb := memory.NewBus()
	broker.New(cb, wb, nil)
	return &harness{t: t, clientBus: cb, workerBus: wb}
}

func (h *harness) dialClient() *client.Multiplexor {
	conn, _ := h.clientBus.Connect()
	return client.New(conn)
}

func (h *harness) dialWorker(ctx context.Context, t *testing.T, capacity int, entries map[string]string) *worker.TaskManager {
	t.Helper()
	conn, _ := h.workerBus.Connect()
	tm := worker.New(worker.Options{Transport: conn, Engine: newTestEngine(t, entries), Capacity: capacity})
	require.NoError(t, tm.Start(ctx))
	return tm
}

func TestNoWorkerAvailableRespondsWithinOneRoundTrip(t *testing.T) {
	h := newHarness(t)
	mux := h.dialClient()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := mux.RunPipeline(ctx, "demo.entry", nil, "")
	require.NoError(t, err)
	assert.Equal(t, packet.RCNoWorkerAvailable, result.RC)
}

func TestWorkerCrashMidRunYieldsWorkerLost(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	workerConn, _ := h.workerBus.Connect()
	tm := worker.New(worker.Options{
		Transport: workerConn,
		Engine:    newTestEngine(t, map[string]string{"entry.yml": blockEntryYAML}),
		Capacity:  1,
	})
	require.NoError(t, tm.Start(ctx))

	mux := h.dialClient()

	resultCh := make(chan client.RunResult, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := mux.RunPipeline(ctx, "demo.entry", nil, "crash-me")
		resultCh <- result
		errCh <- err
	}()

	// Give the broker time to route the RUN and the worker time to start
	// the blocking chip before simulating the crash.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, workerConn.Close())

	select {
	case result := <-resultCh:
		require.NoError(t, <-errCh)
		assert.Equal(t, packet.RCWorkerLost, result.RC)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for WORKER_LOST result")
	}
}

// TestConcurrentCapacityDispatchesUpToRegisteredSlots uses a chip that
// blocks forever so a dispatched RUN never completes within the test,
// distinguishing "dispatched" (no immediate RESULT) from "rejected"
// (immediate RESULT{rc=NO_WORKER_AVAILABLE}) without racing against
// replenishment from a fast chip completing mid-test.
func TestConcurrentCapacityDispatchesUpToRegisteredSlots(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.dialWorker(ctx, t, 2, map[string]string{"entry.yml": blockEntryYAML})

	mux := h.dialClient()

	sessions := make([]*client.Session, 3)
	for i := range sessions {
		sessions[i] = mux.RegisterSession()
		defer mux.ReleaseSession(sessions[i].ID())
		require.NoError(t, sessions[i].Send(ctx, packet.Run("cap-"+string(rune('a'+i)), "demo.entry", nil)))
	}

	var dispatched, rejected int
	for _, s := range sessions {
		peekCtx, peekCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		pkt, err := s.Recv(peekCtx)
		peekCancel()
		if err != nil {
			dispatched++ // no RESULT arrived: this RUN is still running
			continue
		}
		require.Equal(t, packet.RCNoWorkerAvailable, pkt.RC)
		rejected++
	}
	assert.Equal(t, 2, dispatched)
	assert.Equal(t, 1, rejected)
}

func TestCancellationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h.dialWorker(ctx, t, 1, map[string]string{"entry.yml": blockEntryYAML})

	mux := h.dialClient()
	session := mux.RegisterSession()
	defer mux.ReleaseSession(session.ID())

	require.NoError(t, session.Send(ctx, packet.Run("dup-cancel", "demo.entry", nil)))
	require.NoError(t, session.Cancel(ctx, "dup-cancel"))
	require.NoError(t, session.Cancel(ctx, "dup-cancel"))

	pkt, err := session.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, packet.RCCancelled, pkt.RC)
	assert.Equal(t, "dup-cancel", pkt.Cookie)
}
