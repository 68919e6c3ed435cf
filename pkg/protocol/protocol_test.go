package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"underlying error", &Error{Kind: ErrTransport, Err: cause}, cause.Error()},
		{"status code wins", &Error{Kind: ErrTransport, StatusCode: 302, Err: cause}, "302 Found"},
		{"unknown status", &Error{Kind: ErrTransport, StatusCode: 599, Err: cause}, "599 <unknown status code>"},
		{"no cause", &Error{Kind: ErrConfig}, "config error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(transportError(cause))

	assert.ErrorIs(t, err, cause)

	var pe *Error
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrTransport, pe.Kind)
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "config", ErrConfig.String())
	assert.Equal(t, "transport", ErrTransport.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "200 OK", statusLine(200))
	assert.Equal(t, "500 Internal Server Error", statusLine(500))
	assert.Equal(t, "418 I'm a teapot", statusLine(418))
	assert.Equal(t, "299 <unknown status code>", statusLine(299))
}
