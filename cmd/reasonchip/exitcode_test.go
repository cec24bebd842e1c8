package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

func TestExitCodeForClassifiesArgsAndRemoteErrors(t *testing.T) {
	assert.Equal(t, exitOK, exitCodeFor(nil))
	assert.Equal(t, exitInvalidArgs, exitCodeFor(invalidArgs("bad flag %s", "--foo")))
	assert.Equal(t, exitRemoteError, exitCodeFor(remoteFailure("rc=%s", "ERROR")))
}

func TestExitCodeForClassifiesRcerrorsKinds(t *testing.T) {
	assert.Equal(t, exitTransportError, exitCodeFor(rcerrors.New(rcerrors.KindTransport, "dial failed")))
	assert.Equal(t, exitTransportError, exitCodeFor(rcerrors.New(rcerrors.KindBrokerLost, "broker lost")))
	assert.Equal(t, exitCancelled, exitCodeFor(rcerrors.New(rcerrors.KindCancelled, "cancelled")))
	assert.Equal(t, exitConfigError, exitCodeFor(rcerrors.New(rcerrors.KindConfig, "bad cert")))
	assert.Equal(t, exitGeneralError, exitCodeFor(errors.New("unclassified")))
}
