package main

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyVersionsParsesRanges(t *testing.T) {
	cfg := &tls.Config{}
	applyVersions(cfg, "1.2:1.3")
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MaxVersion)
}

func TestApplyVersionsIgnoresUnknownSpec(t *testing.T) {
	cfg := &tls.Config{}
	applyVersions(cfg, "bogus")
	assert.Equal(t, uint16(0), cfg.MinVersion)
	assert.Equal(t, uint16(0), cfg.MaxVersion)
}

func TestServerConfigRequiresCertAndKey(t *testing.T) {
	s := &sslFlags{}
	_, err := s.serverConfig()
	require.Error(t, err)
}

func TestSSLFlagsEnabledReflectsAnySuppliedFlag(t *testing.T) {
	assert.False(t, (&sslFlags{}).enabled())
	assert.True(t, (&sslFlags{ca: "/tmp/ca.pem"}).enabled())
}

func TestLoadCAPoolRejectsMissingFile(t *testing.T) {
	_, err := loadCAPool("/nonexistent/ca.pem")
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCodeFor(err))
}
