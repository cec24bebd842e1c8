package memory

import (
	"context"
	"sync"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/transport"
)

// endpoint is the client/worker-side Transport for one Bus connection.
type endpoint struct {
	id  transport.ConnID
	bus *Bus

	mu           sync.Mutex
	receiveFn    func(transport.ConnID, packet.Packet)
	disconnectFn func(transport.ConnID)
	closed       bool
}

// Send delivers pkt to the Bus, as if this endpoint's owner sent it.
func (e *endpoint) Send(_ context.Context, _ transport.ConnID, pkt packet.Packet) error {
	e.bus.dispatchToBus(e.id, pkt)
	return nil
}

func (e *endpoint) OnReceive(fn func(transport.ConnID, packet.Packet)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.receiveFn = fn
}

func (e *endpoint) OnDisconnect(fn func(transport.ConnID)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnectFn = fn
}

// Close disconnects this endpoint from the Bus (the client/worker hanging
// up first), notifying the Bus's disconnect callback.
func (e *endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.bus.disconnect(e.id)
	return nil
}

// deliverFromBus is called by Bus.Send: a packet travelling Bus->endpoint.
func (e *endpoint) deliverFromBus(pkt packet.Packet) {
	e.mu.Lock()
	fn := e.receiveFn
	e.mu.Unlock()
	if fn != nil {
		fn(e.id, pkt)
	}
}

// notifyBrokerLost is called by Bus.Close: every surviving endpoint's own
// disconnect callback fires, surfacing as BrokerLost on the client/worker
// side (spec §7: "On the client, transport loss surfaces as BrokerLost on
// the next recv").
func (e *endpoint) notifyBrokerLost() {
	e.mu.Lock()
	e.closed = true
	fn := e.disconnectFn
	e.mu.Unlock()
	if fn != nil {
		fn(e.id)
	}
}
