package params

import (
	"errors"
	"fmt"
)

// EncodingError reports an argument that cannot be represented on the wire:
// an unsupported tag, a wrong leaf count, a wrong byte length, or a
// malformed (nested) WireForm.
//
// Index is the position of the offending value inside its list, or -1 when
// the failure is not tied to one value (e.g. invalid base64 for the list).
// Nested failures keep the inner EncodingError reachable through Err.
type EncodingError struct {
	Tag    TypeTag
	Index  int
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	var msg string
	switch {
	case e.Index >= 0 && e.Tag != "":
		msg = fmt.Sprintf("encoding error: param[%d] (%s): %s", e.Index, e.Tag, e.Reason)
	case e.Tag != "":
		msg = fmt.Sprintf("encoding error: %s: %s", e.Tag, e.Reason)
	default:
		msg = fmt.Sprintf("encoding error: %s", e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsEncodingError returns true if err is or wraps an EncodingError.
func IsEncodingError(err error) bool {
	var ee *EncodingError
	return errors.As(err, &ee)
}

// NewEncodingError creates an EncodingError not tied to a list position.
// Used by packages that consume decoded lists (e.g. the ABI projector).
func NewEncodingError(tag TypeTag, reason string, err error) *EncodingError {
	return newEncodingError(tag, reason, err)
}

// WrapIndex attaches a list position to err as an EncodingError.
func WrapIndex(tag TypeTag, index int, err error) *EncodingError {
	return wrapIndex(tag, index, err)
}

func newEncodingError(tag TypeTag, reason string, err error) *EncodingError {
	return &EncodingError{Tag: tag, Index: -1, Reason: reason, Err: err}
}

func wrapIndex(tag TypeTag, index int, err error) *EncodingError {
	return &EncodingError{Tag: tag, Index: index, Reason: "invalid nested value", Err: err}
}
