// Package tcp implements the TCP Transport (spec §4.11): one Packet per
// JSON value, streamed over net.Conn with a per-connection json.Encoder/
// json.Decoder pair.
//
// Grounded in other_examples' tenzoki-agen broker service: a
// Connection struct pairing net.Conn with its own encoder/decoder and a
// LastSeen heartbeat timestamp, adapted here from pub/sub topics+pipes to
// ReasonChip's packet-oriented duplex contract.
package tcp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
	"github.com/reasonchip/reasonchip/internal/transport"
)

// connection pairs one net.Conn with its own encoder/decoder, mirroring
// the teacher's per-agent Connection struct.
type connection struct {
	id       transport.ConnID
	conn     net.Conn
	enc      *json.Encoder
	mu       sync.Mutex // serializes writes; one goroutine reads
	lastSeen time.Time
}

func newConnection(id transport.ConnID, c net.Conn) *connection {
	return &connection{id: id, conn: c, enc: json.NewEncoder(c), lastSeen: time.Now()}
}

func (c *connection) send(pkt packet.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(pkt); err != nil {
		return rcerrors.Wrap(rcerrors.KindTransport, err, "encode packet to %s", c.id)
	}
	return nil
}

// Transport is the shared side of a TCP listener (broker) or the single
// connection a dialing Worker/Client owns.
type Transport struct {
	mu           sync.Mutex
	nextID       int
	conns        map[transport.ConnID]*connection
	receiveFn    func(transport.ConnID, packet.Packet)
	disconnectFn func(transport.ConnID)
	listenAddr   string

	// defaultConn is set by Dial/DialTLS to the sole connection a dialing
	// Worker/Client owns, so Send(ctx, "", pkt) routes the same way the
	// memory Transport's single endpoint does: the caller on that side of
	// the wire has exactly one peer and never needs its ConnID.
	defaultConn transport.ConnID
}

// addr returns the bound listen address, for tests and logging that need
// to know the OS-assigned port after Listen(ctx, ":0").
func (t *Transport) addr() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listenAddr, t.listenAddr != ""
}

// New constructs an empty Transport, ready to accept connections (via
// Accept/adopt) or to have one dialed into it (via Dial).
func New() *Transport {
	return &Transport{conns: make(map[transport.ConnID]*connection)}
}

func (t *Transport) OnReceive(fn func(transport.ConnID, packet.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiveFn = fn
}

func (t *Transport) OnDisconnect(fn func(transport.ConnID)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnectFn = fn
}

func (t *Transport) Send(_ context.Context, conn transport.ConnID, pkt packet.Packet) error {
	t.mu.Lock()
	if conn == "" {
		conn = t.defaultConn
	}
	c, ok := t.conns[conn]
	t.mu.Unlock()
	if !ok {
		return rcerrors.New(rcerrors.KindTransport, "send to unknown connection %q", conn)
	}
	return c.send(pkt)
}

// Close closes every connection this Transport owns.
func (t *Transport) Close() error {
	t.mu.Lock()
	conns := make([]*connection, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[transport.ConnID]*connection)
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
	return nil
}

// Listen starts accepting TCP connections on addr. Each accepted
// connection is adopted and pumped on its own goroutine.
func Listen(ctx context.Context, addr string) (*Transport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransport, err, "listen on %s", addr)
	}
	return listenOn(ctx, ln), nil
}

// ListenTLS is Listen with every accepted connection wrapped in TLS server
// handshake per cfg, for the broker's SSL server option group (spec §6).
func ListenTLS(ctx context.Context, addr string, cfg *tls.Config) (*Transport, error) {
	ln, err := tls.Listen("tcp", addr, cfg)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransport, err, "listen (tls) on %s", addr)
	}
	return listenOn(ctx, ln), nil
}

func listenOn(ctx context.Context, ln net.Listener) *Transport {
	t := New()
	t.listenAddr = ln.Addr().String()
	go t.acceptLoop(ctx, ln)
	return t
}

func (t *Transport) acceptLoop(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		t.adopt(c)
	}
}

// Dial opens one outbound TCP connection to addr, returning a Transport
// scoped to that single connection and its ConnID.
func Dial(ctx context.Context, addr string) (*Transport, transport.ConnID, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, "", rcerrors.Wrap(rcerrors.KindTransport, err, "dial %s", addr)
	}
	t := New()
	id := t.adopt(c)
	t.defaultConn = id
	return t, id, nil
}

// DialTLS is Dial with the outbound connection wrapped in a TLS client
// handshake per cfg, for the worker/client SSL option group (spec §6).
func DialTLS(ctx context.Context, addr string, cfg *tls.Config) (*Transport, transport.ConnID, error) {
	var d tls.Dialer
	d.Config = cfg
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, "", rcerrors.Wrap(rcerrors.KindTransport, err, "dial (tls) %s", addr)
	}
	t := New()
	id := t.adopt(c)
	t.defaultConn = id
	return t, id, nil
}

// adopt registers conn under a new ConnID and starts its read pump.
func (t *Transport) adopt(conn net.Conn) transport.ConnID {
	t.mu.Lock()
	t.nextID++
	id := transport.ConnID(connIDFor(t.nextID))
	c := newConnection(id, conn)
	t.conns[id] = c
	t.mu.Unlock()

	go t.readPump(c)
	return id
}

func (t *Transport) readPump(c *connection) {
	dec := json.NewDecoder(c.conn)
	for {
		var pkt packet.Packet
		if err := dec.Decode(&pkt); err != nil {
			t.drop(c.id)
			return
		}
		c.mu.Lock()
		c.lastSeen = time.Now()
		c.mu.Unlock()

		t.mu.Lock()
		fn := t.receiveFn
		t.mu.Unlock()
		if fn != nil {
			fn(c.id, pkt)
		}
	}
}

func (t *Transport) drop(id transport.ConnID) {
	t.mu.Lock()
	c, ok := t.conns[id]
	delete(t.conns, id)
	fn := t.disconnectFn
	t.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
	if ok && fn != nil {
		fn(id)
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
