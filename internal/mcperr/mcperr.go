// Package mcperr defines the closed taxonomy of domain errors produced by
// the workspace server's core subsystems and the single deterministic
// mapping from each kind to a JSON-RPC 2.0 error code and payload.
//
// Every core component (sandbox, registry, executor, protocol state
// machine) returns or wraps a [*Error] rather than an ad-hoc error value,
// so that the protocol layer has exactly one place — [Map] — that decides
// what goes out over the wire.
package mcperr

import (
	"errors"
	"fmt"
)

// Kind is a closed set of domain error kinds. New values must be added
// here and given an entry in [Map]; nothing else may construct a
// JSON-RPC error response.
type Kind string

const (
	InvalidArguments        Kind = "INVALID_ARGUMENTS"
	PathTraversal           Kind = "PATH_TRAVERSAL"
	OutsideRoot             Kind = "OUTSIDE_ROOT"
	BlockedPattern          Kind = "BLOCKED_PATTERN"
	NotFound                Kind = "NOT_FOUND"
	PermissionDenied        Kind = "PERMISSION_DENIED"
	Timeout                 Kind = "TIMEOUT"
	ConcurrencyLimitExceeded Kind = "CONCURRENCY_LIMIT_EXCEEDED"
	ToolNotFound            Kind = "TOOL_NOT_FOUND"
	ToolDisabled            Kind = "TOOL_DISABLED"
	UnsupportedProtocolVersion Kind = "UNSUPPORTED_PROTOCOL_VERSION"
	NotInitialized          Kind = "NOT_INITIALIZED"
	InvalidFrame            Kind = "INVALID_FRAME"
	ServerShuttingDown      Kind = "SERVER_SHUTTING_DOWN"
	InternalError           Kind = "INTERNAL_ERROR"
)

// JSON-RPC 2.0 reserved error codes used by [Map].
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the concrete error type returned by core components. It carries
// a closed [Kind], a human-readable message, optional structured context
// (attempted path, field name, limit, ...), and an optional wrapped cause
// for log correlation.
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an [*Error] of the given kind with no context.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an [*Error] with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an [*Error] that carries cause for logging, without
// leaking the cause's message into Message unless the caller does so
// explicitly.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithContext returns a copy of e with a context key/value attached.
// Intended for single-expression construction: mcperr.New(...).WithContext(...).
func (e *Error) WithContext(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

// As reports whether err is (or wraps) an [*Error] and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the [Kind] of err if it is (or wraps) an [*Error], or
// [InternalError] otherwise — every non-taxonomy error that escapes a
// handler is reported to the client as an internal error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return InternalError
}

// codeByKind is the deterministic, closed mapping from domain [Kind] to
// JSON-RPC 2.0 error code described in spec §7.
var codeByKind = map[Kind]int{
	InvalidArguments:           CodeInvalidParams,
	PathTraversal:              CodeInvalidRequest,
	OutsideRoot:                CodeInvalidRequest,
	BlockedPattern:             CodeInvalidRequest,
	NotFound:                   CodeInvalidRequest,
	ToolNotFound:               CodeInvalidRequest,
	ToolDisabled:               CodeInvalidRequest,
	UnsupportedProtocolVersion: CodeInvalidRequest,
	NotInitialized:             CodeInvalidRequest,
	Timeout:                    CodeInternalError,
	ConcurrencyLimitExceeded:   CodeInternalError,
	PermissionDenied:           CodeInternalError,
	ServerShuttingDown:         CodeInternalError,
	InternalError:              CodeInternalError,
	InvalidFrame:               CodeParseError,
}

// Payload is the `error` object of a JSON-RPC error response: its code,
// message, and structured `data` map.
type Payload struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Map deterministically translates err into a JSON-RPC error code and
// structured payload. includeStack controls whether the cause's chain is
// rendered into the payload's "stack" field — callers should pass true
// only when the runtime environment is not "production" (spec §7).
func Map(err error, includeStack bool) Payload {
	e, ok := As(err)
	if !ok {
		e = Wrap(InternalError, err.Error(), err)
	}

	code, ok := codeByKind[e.Kind]
	if !ok {
		code = CodeInternalError
	}

	data := map[string]any{"errorCode": string(e.Kind)}
	for k, v := range e.Context {
		data[k] = v
	}
	if includeStack && e.Cause != nil {
		data["stack"] = e.Cause.Error()
	}

	return Payload{Code: code, Message: e.Message, Data: data}
}
