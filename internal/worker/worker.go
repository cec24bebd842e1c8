// Package worker implements the Worker TaskManager (spec §4.8): owns one
// Transport to the broker, an Engine, and a bounded concurrency limit N.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/reasonchip/reasonchip/internal/engine"
	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/telemetry"
	"github.com/reasonchip/reasonchip/internal/transport"
)

// runningTask tracks one in-flight RUN, letting CANCEL reach its context.
type runningTask struct {
	cancel context.CancelFunc
}

// TaskManager is the Worker side of spec §4.8: it registers capacity N
// with the broker, spawns one engine run per RUN packet up to that
// concurrency limit, and replenishes capacity as runs complete.
type TaskManager struct {
	conn   transport.Transport
	engine *engine.Engine
	log    telemetry.Logger
	n      int

	mu       sync.Mutex
	running  map[string]*runningTask // cookie -> task
	draining bool

	wg sync.WaitGroup
}

// Options configures a TaskManager.
type Options struct {
	Transport transport.Transport
	Engine    *engine.Engine
	Log       telemetry.Logger
	Capacity  int
}

// New constructs a TaskManager. Start must be called to send the initial
// REGISTER and begin accepting packets.
func New(opts Options) *TaskManager {
	log := opts.Log
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	n := opts.Capacity
	if n <= 0 {
		n = 1
	}
	return &TaskManager{
		conn:    opts.Transport,
		engine:  opts.Engine,
		log:     log,
		n:       n,
		running: make(map[string]*runningTask),
	}
}

// Start sends the initial REGISTER{capacity=N} and begins handling packets
// from the broker (spec §4.8 "On startup").
func (m *TaskManager) Start(ctx context.Context) error {
	m.conn.OnReceive(m.onPacket)
	return m.conn.Send(ctx, "", packet.Register(m.n))
}

func (m *TaskManager) onPacket(_ transport.ConnID, pkt packet.Packet) {
	ctx := context.Background()
	switch pkt.Type {
	case packet.TypeRun:
		m.handleRun(ctx, pkt)
	case packet.TypeCancel:
		m.handleCancel(pkt)
	case packet.TypeShutdown:
		m.handleShutdown(ctx)
	default:
		m.log.Warn(ctx, "worker: unexpected packet type from broker", "type", pkt.Type)
	}
}

// handleRun implements the RUN branch of spec §4.8: spawn an engine run if
// under capacity, otherwise respond ERROR (the broker must never
// oversubscribe, so this is a protocol violation, not a normal path).
func (m *TaskManager) handleRun(ctx context.Context, pkt packet.Packet) {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	if len(m.running) >= m.n {
		m.mu.Unlock()
		_ = m.conn.Send(ctx, "", packet.ResultError(pkt.Cookie, packet.RCError, "worker oversubscribed", ""))
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.running[pkt.Cookie] = &runningTask{cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runOne(runCtx, cancel, pkt)
}

func (m *TaskManager) runOne(ctx context.Context, cancel context.CancelFunc, pkt packet.Packet) {
	defer m.wg.Done()
	defer cancel()

	result, err := m.engine.Run(ctx, pkt.Pipeline, pkt.Variables)

	m.mu.Lock()
	delete(m.running, pkt.Cookie)
	draining := m.draining
	m.mu.Unlock()

	resultPkt := toResultPacket(pkt.Cookie, result, err)
	_ = m.conn.Send(context.Background(), "", resultPkt)

	if !draining {
		_ = m.conn.Send(context.Background(), "", packet.Register(1))
	}
}

// toResultPacket classifies a completed run into the appropriate RC (spec
// §7 "Propagation policy"): context cancellation becomes CANCELLED,
// anything else carrying an rcerrors.Kind becomes ERROR with the error's
// class name and message as a one-line stacktrace surrogate.
func toResultPacket(cookie string, result any, err error) packet.Packet {
	if err == nil {
		return packet.Result(cookie, result)
	}
	if rcerrors.As(err, rcerrors.KindCancelled) {
		return packet.ResultError(cookie, packet.RCCancelled, err.Error(), "")
	}
	kind := rcerrors.KindOf(err)
	return packet.ResultError(cookie, packet.RCError, fmt.Sprintf("%s: %s", kind, err.Error()), err.Error())
}

// handleCancel implements the CANCEL branch: signal the running task's
// context and let its normal completion path deliver rc=CANCELLED. A
// cookie with no running task (already completed, or a duplicate CANCEL)
// is a no-op, satisfying the idempotence requirement (spec §5).
func (m *TaskManager) handleCancel(pkt packet.Packet) {
	m.mu.Lock()
	t, ok := m.running[pkt.Cookie]
	m.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
}

// handleShutdown implements the SHUTDOWN branch: stop accepting RUNs,
// cancel every in-flight task, drain, close the transport.
func (m *TaskManager) handleShutdown(ctx context.Context) {
	m.mu.Lock()
	m.draining = true
	for _, t := range m.running {
		t.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
	_ = m.conn.Close()
	_ = ctx
}
