// Package broker implements the Broker + Switchboard (spec §4.7): routing
// of RUN/CANCEL packets from clients to available worker slots, and RESULT
// packets back, serialized by one broker-wide lock.
package broker

import (
	"container/list"
	"context"
	"sync"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/telemetry"
	"github.com/reasonchip/reasonchip/internal/transport"
)

// slot is one unit of capacity a worker has registered, held on the
// available_workers FIFO until matched to a RUN.
type slot struct {
	worker transport.ConnID
}

// route binds a cookie to the client and worker connection it is running
// on, released when the worker's RESULT arrives.
type route struct {
	cookie string
	client transport.ConnID
	worker transport.ConnID
}

// Broker owns a client-facing and a worker-facing Transport and the
// Switchboard's routing state (spec §4.7). All route-affecting operations
// run under one mutex, matching the spec's "Ordering guarantees" that
// disconnect and forward never race.
type Broker struct {
	mu sync.Mutex

	clients transport.Transport
	workers transport.Transport
	log     telemetry.Logger

	available *list.List // of *slot, FIFO: PushBack on REGISTER, Front on RUN
	routes    map[string]route
}

// New wires a Broker to its two transports, registering the packet and
// disconnect callbacks the Switchboard behavior depends on.
func New(clients, workers transport.Transport, log telemetry.Logger) *Broker {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	b := &Broker{
		clients:   clients,
		workers:   workers,
		log:       log,
		available: list.New(),
		routes:    make(map[string]route),
	}
	b.clients.OnReceive(b.onClientPacket)
	b.clients.OnDisconnect(b.onClientDisconnect)
	b.workers.OnReceive(b.onWorkerPacket)
	b.workers.OnDisconnect(b.onWorkerDisconnect)
	return b
}

func (b *Broker) onClientPacket(client transport.ConnID, pkt packet.Packet) {
	ctx := context.Background()
	switch pkt.Type {
	case packet.TypeRun:
		b.handleRun(ctx, client, pkt)
	case packet.TypeCancel:
		b.handleCancel(ctx, client, pkt)
	default:
		b.log.Warn(ctx, "broker: unexpected packet type from client", "type", pkt.Type)
	}
}

func (b *Broker) onWorkerPacket(worker transport.ConnID, pkt packet.Packet) {
	ctx := context.Background()
	switch pkt.Type {
	case packet.TypeRegister:
		b.handleRegister(worker, pkt)
	case packet.TypeResult:
		b.handleResult(ctx, worker, pkt)
	default:
		b.log.Warn(ctx, "broker: unexpected packet type from worker", "type", pkt.Type)
	}
}

// handleRun implements "RUN from client" (spec §4.7): pop the front
// available slot and route, or respond NO_WORKER_AVAILABLE if none exists.
func (b *Broker) handleRun(ctx context.Context, client transport.ConnID, pkt packet.Packet) {
	b.mu.Lock()
	front := b.available.Front()
	if front == nil {
		b.mu.Unlock()
		_ = b.clients.Send(ctx, client, packet.ResultError(pkt.Cookie, packet.RCNoWorkerAvailable, "", ""))
		return
	}
	s := b.available.Remove(front).(*slot)
	b.routes[pkt.Cookie] = route{cookie: pkt.Cookie, client: client, worker: s.worker}
	worker := s.worker
	b.mu.Unlock()

	if err := b.workers.Send(ctx, worker, pkt); err != nil {
		b.mu.Lock()
		delete(b.routes, pkt.Cookie)
		b.mu.Unlock()
		_ = b.clients.Send(ctx, client, packet.ResultError(pkt.Cookie, packet.RCError, err.Error(), ""))
	}
}

// handleCancel implements "CANCEL from client": forward if a route exists,
// otherwise ignore (spec §4.7).
func (b *Broker) handleCancel(ctx context.Context, _ transport.ConnID, pkt packet.Packet) {
	b.mu.Lock()
	r, ok := b.routes[pkt.Cookie]
	b.mu.Unlock()
	if !ok {
		return
	}
	_ = b.workers.Send(ctx, r.worker, pkt)
}

// handleRegister implements "New REGISTER packets add entries equal to the
// advertised capacity" (spec §4.7).
func (b *Broker) handleRegister(worker transport.ConnID, pkt packet.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < pkt.Capacity; i++ {
		b.available.PushBack(&slot{worker: worker})
	}
}

// handleResult implements "RESULT from worker": forward to the client,
// release the route, and — per spec — do NOT restore a slot; the worker
// restores capacity itself via a subsequent REGISTER.
func (b *Broker) handleResult(ctx context.Context, _ transport.ConnID, pkt packet.Packet) {
	b.mu.Lock()
	r, ok := b.routes[pkt.Cookie]
	if ok {
		delete(b.routes, pkt.Cookie)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	_ = b.clients.Send(ctx, r.client, pkt)
}

// onClientDisconnect implements "Client disconnect" (spec §4.7): forward
// CANCEL to every worker routed for that client, then purge the routes.
func (b *Broker) onClientDisconnect(client transport.ConnID) {
	ctx := context.Background()
	lost := b.purgeRoutes(func(r route) bool { return r.client == client })
	for _, r := range lost {
		_ = b.workers.Send(ctx, r.worker, packet.Cancel(r.cookie))
	}
}

// onWorkerDisconnect implements "Worker disconnect" (spec §4.7): send
// RESULT{rc=WORKER_LOST} to every client routed through that worker, and
// purge any still-available slots belonging to it.
func (b *Broker) onWorkerDisconnect(worker transport.ConnID) {
	ctx := context.Background()
	lost := b.purgeRoutes(func(r route) bool { return r.worker == worker })

	b.mu.Lock()
	for e := b.available.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*slot).worker == worker {
			b.available.Remove(e)
		}
		e = next
	}
	b.mu.Unlock()

	for _, r := range lost {
		_ = b.clients.Send(ctx, r.client, packet.ResultError(r.cookie, packet.RCWorkerLost, "worker disconnected", ""))
	}
}

// purgeRoutes removes and returns every route matching match, under lock.
func (b *Broker) purgeRoutes(match func(route) bool) []route {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []route
	for cookie, r := range b.routes {
		if match(r) {
			matched = append(matched, r)
			delete(b.routes, cookie)
		}
	}
	return matched
}
