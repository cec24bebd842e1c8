// Package memory implements the in-memory duplex Transport (spec §4.11):
// two callback-wired endpoints connected directly within one process, with
// no network or serialization round-trip. Used by the broker/worker/client
// integration tests to wire a real Broker and Worker together without a
// socket between them (`run-local` bypasses the Broker/Worker fabric
// entirely and drives the Engine in-process, so it never touches this
// package).
//
// Grounded in the teacher's runtime/agent/engine/inmem package: a
// synchronous, non-replay, single-process stand-in for the real thing.
package memory

import (
	"context"
	"sync"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/transport"
)

// Bus is the broker-side end of an in-memory Transport: it accepts many
// logical connections (one per worker or client) and dispatches inbound
// packets to a single registered callback, tagged by connection id.
type Bus struct {
	mu           sync.Mutex
	nextID       int
	conns        map[transport.ConnID]*endpoint
	receiveFn    func(transport.ConnID, packet.Packet)
	disconnectFn func(transport.ConnID)
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{conns: make(map[transport.ConnID]*endpoint)}
}

func (b *Bus) OnReceive(fn func(transport.ConnID, packet.Packet)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiveFn = fn
}

func (b *Bus) OnDisconnect(fn func(transport.ConnID)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectFn = fn
}

// Send delivers pkt to the endpoint previously returned by Connect.
func (b *Bus) Send(_ context.Context, conn transport.ConnID, pkt packet.Packet) error {
	b.mu.Lock()
	ep, ok := b.conns[conn]
	b.mu.Unlock()
	if !ok {
		return rcerrors.New(rcerrors.KindTransport, "send to unknown connection %q", conn)
	}
	ep.deliverFromBus(pkt)
	return nil
}

// Close disconnects every live connection, notifying each endpoint's own
// disconnect callback (simulating broker loss from the client/worker side).
// This Bus's own disconnect callback is not invoked.
func (b *Bus) Close() error {
	b.mu.Lock()
	conns := make([]*endpoint, 0, len(b.conns))
	for _, ep := range b.conns {
		conns = append(conns, ep)
	}
	b.conns = make(map[transport.ConnID]*endpoint)
	b.mu.Unlock()

	for _, ep := range conns {
		ep.notifyBrokerLost()
	}
	return nil
}

// Connect creates a new logical connection to the Bus, returning the
// client/worker-side Transport (scoped to exactly this one connection)
// and its assigned ConnID.
func (b *Bus) Connect() (transport.Transport, transport.ConnID) {
	b.mu.Lock()
	b.nextID++
	id := transport.ConnID(connIDFor(b.nextID))
	ep := &endpoint{id: id, bus: b}
	b.conns[id] = ep
	b.mu.Unlock()
	return ep, id
}

// disconnect removes conn from the Bus and invokes the broker-side
// disconnect callback, used when the client/worker end closes first.
func (b *Bus) disconnect(conn transport.ConnID) {
	b.mu.Lock()
	_, existed := b.conns[conn]
	delete(b.conns, conn)
	fn := b.disconnectFn
	b.mu.Unlock()
	if existed && fn != nil {
		fn(conn)
	}
}

func (b *Bus) dispatchToBus(conn transport.ConnID, pkt packet.Packet) {
	b.mu.Lock()
	fn := b.receiveFn
	b.mu.Unlock()
	if fn != nil {
		fn(conn, pkt)
	}
}

func connIDFor(n int) string {
	const digits = "0123456789"
	if n == 0 {
		return "conn-0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return "conn-" + string(buf)
}
