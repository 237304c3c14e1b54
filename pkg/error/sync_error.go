package error

import (
	"errors"
	"net/http"
)

// TransportError is a dropped connection or network failure. It is recovered
// locally by the reconnection policy.
type TransportError string

func (err TransportError) Error() string {
	return string(err)
}

func (err TransportError) ErrCode() string {
	return "TRANSPORT_ERROR"
}

func (err TransportError) StatusCode() int {
	return http.StatusBadGateway
}

// ProtocolError is an envelope that could not be parsed or validated. The
// frame is dropped; the connection is unaffected.
type ProtocolError string

func (err ProtocolError) Error() string {
	return string(err)
}

func (err ProtocolError) ErrCode() string {
	return "PROTOCOL_ERROR"
}

func (err ProtocolError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// PermissionError means the platform refused an OS level alert.
type PermissionError string

func (err PermissionError) Error() string {
	return string(err)
}

func (err PermissionError) ErrCode() string {
	return "PERMISSION_ERROR"
}

func (err PermissionError) StatusCode() int {
	return http.StatusForbidden
}

// RetryExhaustedError is the only terminal fault of the sync layer: automatic
// reconnection has given up and the caller must re-open the room.
type RetryExhaustedError string

func (err RetryExhaustedError) Error() string {
	return string(err)
}

func (err RetryExhaustedError) ErrCode() string {
	return "RETRY_EXHAUSTED"
}

func (err RetryExhaustedError) StatusCode() int {
	return http.StatusServiceUnavailable
}

// IsRetryExhausted reports whether err, or an error it wraps, is a
// RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var target RetryExhaustedError
	return errors.As(err, &target)
}

// IsProtocol reports whether err, or an error it wraps, is a ProtocolError.
func IsProtocol(err error) bool {
	var target ProtocolError
	return errors.As(err, &target)
}
