package packet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTripsThroughJSON(t *testing.T) {
	p := Run("cookie-1", "demo.entry", map[string]any{"name": "Elvis"})
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Packet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p, decoded)
}

func TestResultErrorCarriesRC(t *testing.T) {
	p := ResultError("c", RCWorkerLost, "worker disconnected", "")
	assert.Equal(t, TypeResult, p.Type)
	assert.Equal(t, RCWorkerLost, p.RC)
}
