package main

import (
	"fmt"
	"os"

	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// exitCode is the fixed small enum spec §6 requires of every subcommand.
type exitCode int

const (
	exitOK exitCode = iota
	exitGeneralError
	exitInvalidArgs
	exitConfigError
	exitTransportError
	exitCancelled
	exitRemoteError
)

// argsError marks a CLI invocation error (bad or missing flags), mapped to
// INVALID_ARGS rather than the generic rcerrors.Kind taxonomy a failed
// pipeline run would produce.
type argsError struct{ error }

func invalidArgs(format string, args ...any) error {
	return argsError{fmt.Errorf(format, args...)}
}

// remoteError marks a non-OK RESULT rc reported by `run` against a real
// broker, distinct from a local transport/config failure.
type remoteError struct{ error }

func remoteFailure(format string, args ...any) error {
	return remoteError{fmt.Errorf(format, args...)}
}

// exitCodeFor classifies err into the exit code enum (spec §6), falling
// back to GENERAL_ERROR for anything not otherwise classified.
func exitCodeFor(err error) exitCode {
	if err == nil {
		return exitOK
	}
	if _, ok := err.(argsError); ok {
		return exitInvalidArgs
	}
	if _, ok := err.(remoteError); ok {
		return exitRemoteError
	}
	switch rcerrors.KindOf(err) {
	case rcerrors.KindTransport, rcerrors.KindBrokerLost, rcerrors.KindWorkerLost:
		return exitTransportError
	case rcerrors.KindCancelled:
		return exitCancelled
	case rcerrors.KindValidation, rcerrors.KindParse, rcerrors.KindConfig:
		return exitConfigError
	default:
		return exitGeneralError
	}
}

// exitWith prints err (if any) and terminates the process with the exit
// code its rcerrors.Kind maps to.
func exitWith(err error) {
	if err == nil {
		os.Exit(int(exitOK))
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(int(exitCodeFor(err)))
}
