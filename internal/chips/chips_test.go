package chips

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/chipreg"
)

func TestBuiltinProvidersRegisterUnderPrefixes(t *testing.T) {
	r := chipreg.New()
	require.NoError(t, r.Discover(BuiltinProviders()...))

	_, ok := r.Lookup("strip.upper")
	assert.True(t, ok)
	_, ok = r.Lookup("asserts.fail")
	assert.True(t, ok)
}

func TestUpperHandler(t *testing.T) {
	out, err := upperHandler(context.Background(), map[string]any{"s": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "HI", out["s"])
}

func TestFailHandlerCapturesInsteadOfErroring(t *testing.T) {
	out, err := failHandler(context.Background(), map[string]any{"reason": "boom"})
	require.NoError(t, err)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "boom", out["error"])
}
