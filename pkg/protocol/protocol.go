package protocol

import (
	"context"
	"time"
)

// ConnectTimeout bounds connection setup (dial and TLS handshake) for every
// client built by an adapter. It is not configurable.
const ConnectTimeout = 10 * time.Second

// UserAgent identifies svcbench traffic to the target.
const UserAgent = "svcbench, v0.1.0"

// Adapter is the contract a protocol implementation offers to the benchmark
// harness. C is the reusable client handle the adapter builds.
type Adapter[C any] interface {
	// BuildClient creates a client from the adapter configuration.
	// The client is reused across many SendRequest calls.
	BuildClient() (C, error)

	// SendRequest issues exactly one request with the given client.
	SendRequest(ctx context.Context, client C) (*RequestStats, error)
}

// ErrorKind classifies adapter failures.
type ErrorKind int

const (
	// ErrConfig means the adapter or client could not be built from its configuration.
	ErrConfig ErrorKind = iota
	// ErrTransport means a request could not complete at the transport level.
	ErrTransport
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrConfig:
		return "config"
	case ErrTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is returned by adapters. Its message is meant for display only.
type Error struct {
	Kind ErrorKind
	// StatusCode is set when the failure still knows the HTTP status.
	StatusCode int
	Err        error
}

// Error returns the status line when a status code is known, otherwise the
// underlying error string.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return statusLine(e.StatusCode)
	}
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func configError(err error) *Error {
	return &Error{Kind: ErrConfig, Err: err}
}

func transportError(err error) *Error {
	return &Error{Kind: ErrTransport, Err: err}
}
