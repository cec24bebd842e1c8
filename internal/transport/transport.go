// Package transport defines the Transport Abstraction (spec §4.6/§6): a
// duplex, multi-connection packet channel with callback delivery. The
// Broker holds two Transports (client-facing, worker-facing); a Worker or
// Client holds exactly one connection on its own Transport.
package transport

import (
	"context"

	"github.com/reasonchip/reasonchip/internal/packet"
)

// ConnID identifies one logical connection on a Transport.
type ConnID string

// Transport is a duplex packet channel preserving per-connection ordering
// and delivering a disconnect notification (spec §6: "every transport
// MUST preserve packet ordering per connection and MUST deliver a
// disconnect notification").
type Transport interface {
	// Send delivers pkt to conn. Ordering with other Sends to the same
	// conn is preserved; no ordering is promised across connections.
	Send(ctx context.Context, conn ConnID, pkt packet.Packet) error

	// OnReceive registers the callback invoked once per inbound packet,
	// tagged with its source connection. Only one callback is supported;
	// registering again replaces it (mirrors the single-delivery-point
	// contract each side of the Broker actually uses).
	OnReceive(fn func(conn ConnID, pkt packet.Packet))

	// OnDisconnect registers the callback invoked when a connection is
	// lost, for either side to route WORKER_LOST/BROKER_LOST accounting.
	OnDisconnect(fn func(conn ConnID))

	// Close shuts the transport down, closing every live connection.
	Close() error
}

// Dialer produces a single outbound connection to addr, returning the
// Transport and the ConnID that names the new connection on it. Used by
// Worker/Client processes, which own exactly one connection each.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Transport, ConnID, error)
}

// Listener accepts inbound connections, handing each a ConnID and folding
// it into the returned Transport's connection set. Used by the Broker.
type Listener interface {
	Listen(ctx context.Context, addr string) (Transport, error)
}
