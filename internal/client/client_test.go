package client

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

func TestRunPipelineReturnsMatchingResult(t *testing.T) {
	bus := memory.NewBus()
	ep, _ := bus.Connect()
	mux := New(ep)

	bus.OnReceive(func(conn transport.ConnID, pkt packet.Packet) {
		if pkt.Type == packet.TypeRun {
			go func() {
				_ = bus.Send(context.Background(), conn, packet.Result(pkt.Cookie, map[string]any{"ok": true}))
			}()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := mux.RunPipeline(ctx, "demo.entry", nil, "")
	require.NoError(t, err)
	assert.Equal(t, packet.RCOk, result.RC)
	assert.Equal(t, map[string]any{"ok": true}, result.Result)
}

func TestStopSurfacesBrokerLostToBlockedRecv(t *testing.T) {
	bus := memory.NewBus()
	ep, _ := bus.Connect()
	mux := New(ep)

	s := mux.RegisterSession()
	defer mux.ReleaseSession(s.id)

	done := make(chan error, 1)
	go func() {
		_, err := s.Recv(context.Background())
		done <- err
	}()

	mux.Stop()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("recv never unblocked after Stop")
	}
}

func TestReleaseSessionDropsCookieBinding(t *testing.T) {
	bus := memory.NewBus()
	ep, _ := bus.Connect()
	mux := New(ep)

	s := mux.RegisterSession()
	mux.bindCookie("c1", s)
	mux.ReleaseSession(s.id)

	mux.mu.Lock()
	_, ok := mux.byCookie["c1"]
	mux.mu.Unlock()
	assert.False(t, ok)
}
