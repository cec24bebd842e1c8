// Package rcerrors defines the error taxonomy used across ReasonChip
// component boundaries: a stable kind name, a human message, and a cause
// chain, optionally carrying field-level issues for schema validation
// failures.
package rcerrors

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-comparable error classification. Kinds never
// change spelling across releases; they are part of the wire contract for
// RESULT packets and the `run` CLI's JSON error output.
type Kind string

const (
	KindParse            Kind = "parse"
	KindValidation       Kind = "validation"
	KindUnknownPipeline  Kind = "unknown_pipeline"
	KindUnknownChip      Kind = "unknown_chip"
	KindSchemaMismatch   Kind = "schema_mismatch"
	KindExpression       Kind = "expression"
	KindUnknownVariable  Kind = "unknown_variable"
	KindAssertionFailed  Kind = "assertion_failed"
	KindTypeMismatch     Kind = "type_mismatch"
	KindChipInvalidInput Kind = "chip_invalid_input"
	KindTransport        Kind = "transport"
	KindProtocol         Kind = "protocol"
	KindConfig           Kind = "config"
	KindBrokerLost       Kind = "broker_lost"
	KindWorkerLost       Kind = "worker_lost"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// FieldIssue describes one field-level validation failure, mirroring the
// shape consumed from merged Goa ServiceErrors in the teacher's
// runtime/toolregistry/messages.go (Field + Constraint), minus the
// goa.design/goa/v3/pkg dependency itself.
type FieldIssue struct {
	Field      string
	Constraint string
}

// Error is the common error envelope every component-boundary failure is
// wrapped in before it propagates further.
type Error struct {
	Kind     Kind
	Pipeline string
	Task     string
	Message  string
	Issues   []FieldIssue
	Cause    error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Pipeline != "" {
		msg = fmt.Sprintf("%s [pipeline=%s]", msg, e.Pipeline)
	}
	if e.Task != "" {
		msg = fmt.Sprintf("%s [task=%s]", msg, e.Task)
	}
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message context to an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithTask returns a copy of e annotated with the owning pipeline and task
// name (or positional index if the task is unnamed), per spec §4.4 failure
// semantics: every propagating error names the pipeline, the task, and
// chains to the underlying cause.
func (e *Error) WithTask(pipeline, task string) *Error {
	cp := *e
	cp.Pipeline = pipeline
	cp.Task = task
	return &cp
}

// As reports whether err (or any error in its chain) is an *Error of kind k.
func As(err error, k Kind) bool {
	var rc *Error
	if !errors.As(err, &rc) {
		return false
	}
	return rc.Kind == k
}

// KindOf extracts the Kind of err, defaulting to KindInternal when err is not
// an *Error.
func KindOf(err error) Kind {
	var rc *Error
	if errors.As(err, &rc) {
		return rc.Kind
	}
	return KindInternal
}
