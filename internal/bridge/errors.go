package bridge

import (
	"errors"
	"fmt"
)

// Error is the failure delivered to a Sink.
//
// Every way a call can end without a payload maps to one Code:
//   - Transport not ready: the call was never submitted
//   - Encoding: an argument could not be rendered
//   - Protocol desync: an envelope did not match any pending call
//   - Remote: the script side reported an error
//   - Decode: the payload did not fit the caller's result type
//   - Timeout: the caller evicted the call
//   - Transport reset: the script environment was torn down
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// CorrelationID is the id of the affected call, if one was allocated.
	CorrelationID string

	// Name and Reason are copied from a remote error envelope.
	Name   string
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// ErrCodeTransportNotReady indicates the script environment could not take the call.
	ErrCodeTransportNotReady ErrorCode = "TRANSPORT_NOT_READY"

	// ErrCodeEncoding indicates an argument or function name could not be rendered.
	ErrCodeEncoding ErrorCode = "ENCODING_ERROR"

	// ErrCodeProtocolDesync indicates an envelope that could not be routed.
	ErrCodeProtocolDesync ErrorCode = "PROTOCOL_DESYNC"

	// ErrCodeRemote indicates the script side reported a failure.
	ErrCodeRemote ErrorCode = "REMOTE_ERROR"

	// ErrCodeDecode indicates the payload did not match the expected result.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"

	// ErrCodeTimeout indicates the call was evicted before a reply arrived.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeTransportReset indicates the script environment was reset.
	ErrCodeTransportReset ErrorCode = "TRANSPORT_RESET"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code == ErrCodeRemote {
		msg = fmt.Sprintf("%s: %s", e.Name, e.Reason)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, msg, e.CorrelationID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsTransportNotReady returns true if err is a transport-not-ready error.
func IsTransportNotReady(err error) bool {
	return CodeOf(err) == ErrCodeTransportNotReady
}

// IsEncodingError returns true if err is a bridge encoding error.
func IsEncodingError(err error) bool {
	return CodeOf(err) == ErrCodeEncoding
}

// IsProtocolDesync returns true if err is a protocol desync error.
func IsProtocolDesync(err error) bool {
	return CodeOf(err) == ErrCodeProtocolDesync
}

// IsRemoteError returns true if err was reported by the script side.
func IsRemoteError(err error) bool {
	return CodeOf(err) == ErrCodeRemote
}

// IsDecodeError returns true if err is a payload decode error.
func IsDecodeError(err error) bool {
	return CodeOf(err) == ErrCodeDecode
}

// IsTimeout returns true if err is a timeout eviction.
func IsTimeout(err error) bool {
	return CodeOf(err) == ErrCodeTimeout
}

// IsTransportReset returns true if err was caused by a transport reset.
func IsTransportReset(err error) bool {
	return CodeOf(err) == ErrCodeTransportReset
}

// NewTimeoutError creates the error used to evict a call that took too long.
func NewTimeoutError(id string, cause error) *Error {
	return &Error{
		Code:          ErrCodeTimeout,
		Message:       "no reply before deadline",
		CorrelationID: id,
		Err:           cause,
	}
}

// NewResetError creates the error delivered to calls orphaned by a reset.
func NewResetError(reason string) *Error {
	return &Error{
		Code:    ErrCodeTransportReset,
		Message: reason,
	}
}

func notReadyError(id string, cause error) *Error {
	return &Error{
		Code:          ErrCodeTransportNotReady,
		Message:       "transport is not ready",
		CorrelationID: id,
		Err:           cause,
	}
}

func encodingError(msg string, cause error) *Error {
	return &Error{
		Code:    ErrCodeEncoding,
		Message: msg,
		Err:     cause,
	}
}

func desyncError(id, msg string, cause error) *Error {
	return &Error{
		Code:          ErrCodeProtocolDesync,
		Message:       msg,
		CorrelationID: id,
		Err:           cause,
	}
}
