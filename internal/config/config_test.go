package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reasonchip.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesSectionsAndComments(t *testing.T) {
	path := writeConfig(t, "; top comment\n"+
		"[broker]\n"+
		"client-listen = :7001\n"+
		"# another comment\n"+
		"worker-listen = :7002\n"+
		"\n"+
		"[worker]\n"+
		"broker = localhost:7002\n")

	f, err := Load(path)
	require.NoError(t, err)

	v, ok := f.Get("broker", "client-listen")
	require.True(t, ok)
	assert.Equal(t, ":7001", v)

	v, ok = f.Get("broker", "worker-listen")
	require.True(t, ok)
	assert.Equal(t, ":7002", v)

	v, ok = f.Get("worker", "broker")
	require.True(t, ok)
	assert.Equal(t, "localhost:7002", v)
}

func TestLoadMissingSectionOrKeyReturnsFalse(t *testing.T) {
	path := writeConfig(t, "[broker]\nclient-listen = :7001\n")
	f, err := Load(path)
	require.NoError(t, err)

	_, ok := f.Get("worker", "broker")
	assert.False(t, ok)

	_, ok = f.Get("broker", "worker-listen")
	assert.False(t, ok)
}

func TestLoadSubstitutesEnvVar(t *testing.T) {
	t.Setenv("RC_BROKER_HOST", "broker.internal")
	path := writeConfig(t, "[worker]\nbroker = ${RC_BROKER_HOST}:7002\n")

	f, err := Load(path)
	require.NoError(t, err)

	v, ok := f.Get("worker", "broker")
	require.True(t, ok)
	assert.Equal(t, "broker.internal:7002", v)
}

func TestLoadSubstitutesEnvVarDefaultWhenUnset(t *testing.T) {
	path := writeConfig(t, "[worker]\nbroker = ${RC_UNSET_BROKER_HOST:localhost}:7002\n")

	f, err := Load(path)
	require.NoError(t, err)

	v, ok := f.Get("worker", "broker")
	require.True(t, ok)
	assert.Equal(t, "localhost:7002", v)
}

func TestLoadBlankWhenUnsetAndNoDefault(t *testing.T) {
	path := writeConfig(t, "[worker]\nbroker = ${RC_TOTALLY_UNSET_VAR}\n")

	f, err := Load(path)
	require.NoError(t, err)

	v, ok := f.Get("worker", "broker")
	require.True(t, ok)
	assert.Equal(t, "", v)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	require.Error(t, err)
	assert.Equal(t, rcerrors.KindConfig, rcerrors.KindOf(err))
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	path := writeConfig(t, "[broker]\nnot-a-key-value-line\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, rcerrors.KindConfig, rcerrors.KindOf(err))
}
