package tcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/transport"
)

func TestDialSendReceiveRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	addr := serverAddr(t, server)

	received := make(chan packet.Packet, 1)
	server.OnReceive(func(_ transport.ConnID, p packet.Packet) { received <- p })

	client, clientID, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(ctx, clientID, packet.Register(3)))

	select {
	case p := <-received:
		assert.Equal(t, packet.TypeRegister, p.Type)
		assert.Equal(t, 3, p.Capacity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
}

func TestDialedTransportSendWithEmptyConnIDRoutesToSoleConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, err := Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	addr := serverAddr(t, server)

	received := make(chan packet.Packet, 1)
	server.OnReceive(func(_ transport.ConnID, p packet.Packet) { received <- p })

	client, _, err := Dial(ctx, addr)
	require.NoError(t, err)
	defer client.Close()

	// A Worker/Client never learns its own ConnID before sending its
	// first packet (e.g. the initial REGISTER) — it sends with "",
	// relying on the dialed Transport having exactly one peer.
	require.NoError(t, client.Send(ctx, "", packet.Register(3)))

	select {
	case p := <-received:
		assert.Equal(t, packet.TypeRegister, p.Type)
		assert.Equal(t, 3, p.Capacity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
	}
}

func serverAddr(t *testing.T, srv *Transport) string {
	t.Helper()
	addr, ok := srv.addr()
	require.True(t, ok)
	return addr
}
