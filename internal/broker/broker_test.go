package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/transport"
	"github.com/reasonchip/reasonchip/internal/transport/memory"
)

// harness wires one Broker against two in-memory Buses, with helpers to
// dial worker/client endpoints and collect what they receive.
type harness struct {
	t         *testing.T
	clientBus *memory.Bus
	workerBus *memory.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cb := memory.NewBus()
	wb := memory.NewBus()
	New(cb, wb, nil)
	return &harness{t: t, clientBus: cb, workerBus: wb}
}

func (h *harness) dialClient() (transport.Transport, transport.ConnID, chan packet.Packet) {
	ep, id := h.clientBus.Connect()
	ch := make(chan packet.Packet, 8)
	ep.OnReceive(func(_ transport.ConnID, p packet.Packet) { ch <- p })
	return ep, id, ch
}

func (h *harness) dialWorker() (transport.Transport, transport.ConnID, chan packet.Packet) {
	ep, id := h.workerBus.Connect()
	ch := make(chan packet.Packet, 8)
	ep.OnReceive(func(_ transport.ConnID, p packet.Packet) { ch <- p })
	return ep, id, ch
}

func recvOrTimeout(t *testing.T, ch chan packet.Packet) packet.Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for packet")
		return packet.Packet{}
	}
}

func TestRunWithNoWorkerRespondsNoWorkerAvailable(t *testing.T) {
	h := newHarness(t)
	client, _, clientCh := h.dialClient()

	require.NoError(t, client.Send(context.Background(), "", packet.Run("c1", "demo.entry", nil)))

	result := recvOrTimeout(t, clientCh)
	assert.Equal(t, packet.TypeResult, result.Type)
	assert.Equal(t, packet.RCNoWorkerAvailable, result.RC)
	assert.Equal(t, "c1", result.Cookie)
}

func TestRunRoutesToRegisteredWorkerAndForwardsResult(t *testing.T) {
	h := newHarness(t)
	client, _, clientCh := h.dialClient()
	worker, _, workerCh := h.dialWorker()

	require.NoError(t, worker.Send(context.Background(), "", packet.Register(1)))
	require.NoError(t, client.Send(context.Background(), "", packet.Run("c1", "demo.entry", nil)))

	run := recvOrTimeout(t, workerCh)
	assert.Equal(t, packet.TypeRun, run.Type)
	assert.Equal(t, "c1", run.Cookie)

	require.NoError(t, worker.Send(context.Background(), "", packet.Result("c1", map[string]any{"ok": true})))

	result := recvOrTimeout(t, clientCh)
	assert.Equal(t, packet.RCOk, result.RC)
	assert.Equal(t, "c1", result.Cookie)
}

func TestCancelWithoutRouteIsIgnored(t *testing.T) {
	h := newHarness(t)
	client, _, _ := h.dialClient()
	require.NoError(t, client.Send(context.Background(), "", packet.Cancel("no-such-cookie")))
}

func TestWorkerDisconnectSendsWorkerLostToRoutedClient(t *testing.T) {
	h := newHarness(t)
	client, _, clientCh := h.dialClient()
	worker, _, workerCh := h.dialWorker()

	require.NoError(t, worker.Send(context.Background(), "", packet.Register(1)))
	require.NoError(t, client.Send(context.Background(), "", packet.Run("c1", "demo.entry", nil)))
	recvOrTimeout(t, workerCh)

	require.NoError(t, worker.Close())

	result := recvOrTimeout(t, clientCh)
	assert.Equal(t, packet.RCWorkerLost, result.RC)
	assert.Equal(t, "c1", result.Cookie)
}

func TestClientDisconnectForwardsCancelToRoutedWorker(t *testing.T) {
	h := newHarness(t)
	client, _, _ := h.dialClient()
	worker, _, workerCh := h.dialWorker()

	require.NoError(t, worker.Send(context.Background(), "", packet.Register(1)))
	require.NoError(t, client.Send(context.Background(), "", packet.Run("c1", "demo.entry", nil)))
	recvOrTimeout(t, workerCh)

	require.NoError(t, client.Close())

	cancel := recvOrTimeout(t, workerCh)
	assert.Equal(t, packet.TypeCancel, cancel.Type)
	assert.Equal(t, "c1", cancel.Cookie)
}
