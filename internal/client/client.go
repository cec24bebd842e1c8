// Package client implements the Client Multiplexor and API (spec §4.9): a
// single Transport connection to the broker, demultiplexed into many
// concurrent logical Sessions, plus the high-level run_pipeline call.
package client

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/transport"
)

const sessionQueueCapacity = 32

// disconnectSentinel is posted into every live session's queue by stop(),
// surfacing as BrokerLost on the session's next recv (spec §4.9 "stop()").
var disconnectSentinel = packet.Packet{Type: "__broker_lost__"}

// Session is one logical run_pipeline conversation multiplexed over the
// Multiplexor's shared transport connection.
type Session struct {
	id  string
	mux *Multiplexor

	queue  chan packet.Packet
	mu     sync.Mutex
	closed bool
}

// ID returns the session's assigned identifier, for release/bookkeeping
// by callers that hold onto a Session across multiple calls.
func (s *Session) ID() string { return s.id }

// Send stamps pkt with this session's id and hands it to the transport. A
// RUN packet's cookie is remembered so later packets referencing that
// cookie (RESULT, in particular) route back to this session even though
// they arrive tagged with the broker's view of the connection, not this
// session's id (spec §4.9 "the cookie→session mapping it maintains").
func (s *Session) Send(ctx context.Context, pkt packet.Packet) error {
	pkt.ConnectionID = s.id
	if pkt.Type == packet.TypeRun && pkt.Cookie != "" {
		s.mux.bindCookie(pkt.Cookie, s)
	}
	return s.mux.send(ctx, pkt)
}

// Recv blocks until a packet arrives for this session or the Multiplexor
// is stopped, in which case it returns a BrokerLost error (spec §4.9
// "recv blocks until a packet or the sentinel arrives").
func (s *Session) Recv(ctx context.Context) (packet.Packet, error) {
	select {
	case pkt := <-s.queue:
		if pkt.Type == disconnectSentinel.Type {
			return packet.Packet{}, rcerrors.New(rcerrors.KindBrokerLost, "broker connection lost")
		}
		return pkt, nil
	case <-ctx.Done():
		return packet.Packet{}, rcerrors.Wrap(rcerrors.KindCancelled, ctx.Err(), "recv cancelled")
	}
}

// deliver enqueues pkt for this session, dropping it with a warning if the
// bounded queue is full (spec §5 backpressure: "a slow client... further
// inbound packets for that session are dropped").
func (s *Session) deliver(pkt packet.Packet, log func(string)) {
	select {
	case s.queue <- pkt:
	default:
		if log != nil {
			log("session queue full, dropping packet for " + s.id)
		}
	}
}

// Multiplexor owns one Transport connection to the broker and demuxes its
// inbound packets across many concurrently open Sessions (spec §4.9).
type Multiplexor struct {
	conn transport.Transport

	mu       sync.Mutex
	sessions map[string]*Session
	byCookie map[string]*Session
	stopped  bool
	warn     func(string)
}

// New wires a Multiplexor to conn, registering its receive callback.
func New(conn transport.Transport) *Multiplexor {
	m := &Multiplexor{
		conn:     conn,
		sessions: make(map[string]*Session),
		byCookie: make(map[string]*Session),
	}
	m.conn.OnReceive(m.onIncoming)
	m.conn.OnDisconnect(func(transport.ConnID) { m.Stop() })
	return m
}

// SetWarnLogger installs a callback invoked on dropped packets, for
// wiring into rclog without this package importing the logging stack.
func (m *Multiplexor) SetWarnLogger(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warn = fn
}

// RegisterSession assigns a fresh session id and bounded packet queue
// (spec §4.9 "register_session() → Session").
func (m *Multiplexor) RegisterSession() *Session {
	s := &Session{id: uuid.NewString(), mux: m, queue: make(chan packet.Packet, sessionQueueCapacity)}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	if m.stopped {
		s.closed = true
		s.queue <- disconnectSentinel
	}
	return s
}

// ReleaseSession removes the session mapping and any cookie bindings that
// still point at it (spec §4.9 "release_session(id)").
func (m *Multiplexor) ReleaseSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	for cookie, s := range m.byCookie {
		if s.id == id {
			delete(m.byCookie, cookie)
		}
	}
}

func (m *Multiplexor) bindCookie(cookie string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCookie[cookie] = s
}

func (m *Multiplexor) send(ctx context.Context, pkt packet.Packet) error {
	return m.conn.Send(ctx, "", pkt)
}

// onIncoming implements "on_incoming(packet) callback" (spec §4.9): route
// by cookie first (covers RESULT and any RC response the broker sends for
// a RUN), falling back to the packet's stamped connection id.
func (m *Multiplexor) onIncoming(_ transport.ConnID, pkt packet.Packet) {
	m.mu.Lock()
	var target *Session
	if pkt.Cookie != "" {
		target = m.byCookie[pkt.Cookie]
	}
	if target == nil && pkt.ConnectionID != "" {
		target = m.sessions[pkt.ConnectionID]
	}
	warn := m.warn
	m.mu.Unlock()

	if target != nil {
		target.deliver(pkt, warn)
	}
}

// Stop poisons every open session so its next recv surfaces BrokerLost
// (spec §4.9 "stop()").
func (m *Multiplexor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		if !s.closed {
			s.closed = true
			select {
			case s.queue <- disconnectSentinel:
			default:
			}
		}
		s.mu.Unlock()
	}
}
