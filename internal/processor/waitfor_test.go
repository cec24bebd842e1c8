package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/chipreg"
	"github.com/reasonchip/reasonchip/internal/varctx"
)

// Universal property: async handle consumption. A run_async task's handle,
// awaited via wait_for, yields what a synchronous execution would return
// (spec §8).
func TestWaitForYieldsSyncEquivalentResult(t *testing.T) {
	pl := mustLoadPipeline(t, `
- chip: strip.upper
  run_async: true
  store_result_as: h
  params:
    s: "hi"
- chip: wait_for
  store_result_as: awaited
  params:
    handle: "{{h}}"
- return: "{{awaited}}"
`)
	p := newTestProcessor(t)
	out, err := p.Run(context.Background(), pl, varctx.New(nil))
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, map[string]any{"s": "HI"}, m["result"])
}

func TestWaitForTimeout(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register("slow.task", func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, chipreg.Schema{}, chipreg.Schema{}))

	p := New(Options{Registry: r})
	pl := mustLoadPipeline(t, `
- chip: slow.task
  run_async: true
  store_result_as: h
- chip: wait_for
  store_result_as: awaited
  params:
    handle: "{{h}}"
    timeout_seconds: 0.01
- return: "{{awaited}}"
`)
	out, err := p.Run(context.Background(), pl, varctx.New(nil))
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "timeout", m["status"])
}
