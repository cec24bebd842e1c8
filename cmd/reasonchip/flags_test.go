package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVarsAcceptsKeyValuePairs(t *testing.T) {
	vars, err := parseVars([]string{"a=1", "b=two"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "two"}, vars)
}

func TestParseVarsRejectsMissingEquals(t *testing.T) {
	_, err := parseVars([]string{"no-equals"})
	require.Error(t, err)
	assert.Equal(t, exitInvalidArgs, exitCodeFor(err))
}

func TestCollectionFlagsSourcesRejectsMalformedPair(t *testing.T) {
	var c collectionFlags
	require.NoError(t, c.Set("onlyname"))
	_, err := c.sources()
	require.Error(t, err)
	assert.Equal(t, exitInvalidArgs, exitCodeFor(err))
}

func TestCollectionFlagsSourcesParsesNamePath(t *testing.T) {
	var c collectionFlags
	require.NoError(t, c.Set("demo=/tmp/demo"))
	sources, err := c.sources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "demo", sources[0].Name)
}

func TestRunCommandRequiresBrokerFlag(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "demo.entry"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	require.Error(t, err)
}

func TestWorkerCommandRequiresBrokerFlag(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"worker"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	require.Error(t, err)
}
