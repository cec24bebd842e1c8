package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/transport"
)

func TestSendFromEndpointReachesBus(t *testing.T) {
	bus := NewBus()
	var gotConn transport.ConnID
	var gotPkt packet.Packet
	bus.OnReceive(func(c transport.ConnID, p packet.Packet) {
		gotConn, gotPkt = c, p
	})

	ep, id := bus.Connect()
	require.NoError(t, ep.Send(context.Background(), id, packet.Register(4)))

	assert.Equal(t, id, gotConn)
	assert.Equal(t, packet.TypeRegister, gotPkt.Type)
	assert.Equal(t, 4, gotPkt.Capacity)
}

func TestSendFromBusReachesEndpoint(t *testing.T) {
	bus := NewBus()
	ep, id := bus.Connect()

	var got packet.Packet
	ep.OnReceive(func(_ transport.ConnID, p packet.Packet) { got = p })

	require.NoError(t, bus.Send(context.Background(), id, packet.Run("c1", "demo.entry", nil)))
	assert.Equal(t, packet.TypeRun, got.Type)
	assert.Equal(t, "c1", got.Cookie)
}

func TestEndpointCloseNotifiesBusDisconnect(t *testing.T) {
	bus := NewBus()
	var disconnected transport.ConnID
	bus.OnDisconnect(func(c transport.ConnID) { disconnected = c })

	ep, id := bus.Connect()
	require.NoError(t, ep.Close())
	assert.Equal(t, id, disconnected)

	err := bus.Send(context.Background(), id, packet.Shutdown())
	require.Error(t, err)
}

func TestBusCloseNotifiesEndpointBrokerLost(t *testing.T) {
	bus := NewBus()
	ep, _ := bus.Connect()
	lost := false
	ep.OnDisconnect(func(transport.ConnID) { lost = true })

	require.NoError(t, bus.Close())
	assert.True(t, lost)
}
