package engine

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/chips"
)

func newLoadedEngine(t *testing.T, files fstest.MapFS) *Engine {
	t.Helper()
	reg := chipreg.New()
	require.NoError(t, reg.Discover(chips.BuiltinProviders()...))
	e := New(Options{Registry: reg})
	require.NoError(t, e.Load(CollectionSource{Name: "demo", FS: files, Root: "demo"}))
	return e
}

func TestEngineLoadAndRun(t *testing.T) {
	e := newLoadedEngine(t, fstest.MapFS{
		"demo/entry.yml": &fstest.MapFile{Data: []byte(`
- declare:
    a: "Hi, {{name}}"
- return: "{{a}}!"
`)},
	})
	out, err := e.Run(context.Background(), "demo.entry", map[string]any{"name": "Elvis"})
	require.NoError(t, err)
	assert.Equal(t, "Hi, Elvis!", out)
}

func TestEngineLoadRejectsUnknownDispatchTarget(t *testing.T) {
	reg := chipreg.New()
	e := New(Options{Registry: reg})
	err := e.Load(CollectionSource{Name: "demo", FS: fstest.MapFS{
		"demo/entry.yml": &fstest.MapFile{Data: []byte("- dispatch: demo.missing\n")},
	}, Root: "demo"})
	require.Error(t, err)
}

func TestEngineTerminateBecomesOverallResult(t *testing.T) {
	e := newLoadedEngine(t, fstest.MapFS{
		"demo/entry.yml": &fstest.MapFile{Data: []byte(`
- terminate: "{{ 'halted' }}"
- return: "unreachable"
`)},
	})
	out, err := e.Run(context.Background(), "demo.entry", nil)
	require.NoError(t, err)
	assert.Equal(t, "halted", out)
}

func TestEngineUnknownEntryPipeline(t *testing.T) {
	e := newLoadedEngine(t, fstest.MapFS{
		"demo/entry.yml": &fstest.MapFile{Data: []byte("- return: \"ok\"\n")},
	})
	_, err := e.Run(context.Background(), "demo.nope", nil)
	require.Error(t, err)
}

func TestEngineDefaultCodeRunnerEvaluatesExpression(t *testing.T) {
	e := newLoadedEngine(t, fstest.MapFS{
		"demo/entry.yml": &fstest.MapFile{Data: []byte(`
- code: "n * 2"
  params:
    n: "{{n}}"
  return_result: true
`)},
	})
	out, err := e.Run(context.Background(), "demo.entry", map[string]any{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}
