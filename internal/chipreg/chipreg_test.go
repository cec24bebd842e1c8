package chipreg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	prefix string
	defs   []ChipDef
}

func (f fakeProvider) ModulePrefix() string { return f.prefix }
func (f fakeProvider) Chips() []ChipDef     { return f.defs }

func echoHandler(_ context.Context, params map[string]any) (map[string]any, error) {
	return params, nil
}

func TestRegisterAndLookupExact(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("strip.upper", echoHandler, Schema{}, Schema{}))
	e, ok := r.Lookup("strip.upper")
	require.True(t, ok)
	assert.Equal(t, "strip.upper", e.Name)
}

func TestRegisterCollisionIsFatal(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("x", echoHandler, Schema{}, Schema{}))
	err := r.Register("x", echoHandler, Schema{}, Schema{})
	require.Error(t, err)
}

func TestLookupMissing(t *testing.T) {
	r := New()
	_, ok := r.Lookup("nope")
	assert.False(t, ok)
}

func TestDiscoverAndPrefixFallback(t *testing.T) {
	r := New()
	p := fakeProvider{
		prefix: "redis",
		defs: []ChipDef{
			{Name: "redis_execute", Handler: echoHandler},
		},
	}
	require.NoError(t, r.Discover(p))

	// Exact qualified name.
	_, ok := r.Lookup("redis.redis_execute")
	assert.True(t, ok)

	// Bare name falls back through the registered module prefix.
	_, ok = r.Lookup("redis_execute")
	assert.True(t, ok)
}

func TestSchemaCheckRequiredField(t *testing.T) {
	s := Schema{Fields: map[string]FieldSpec{"s": {Required: true}}}
	err := s.Check(map[string]any{})
	require.Error(t, err)

	err = s.Check(map[string]any{"s": "hello"})
	require.NoError(t, err)
}

func TestSchemaCheckTagConstraint(t *testing.T) {
	s := Schema{Fields: map[string]FieldSpec{"n": {Tag: "gte=0"}}}
	require.NoError(t, s.Check(map[string]any{"n": 5}))
	require.Error(t, s.Check(map[string]any{"n": -1}))
}
