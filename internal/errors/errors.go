package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindMalformedEncoding     Kind = "MALFORMED_ENCODING"
	KindPayloadTooShort       Kind = "PAYLOAD_TOO_SHORT"
	KindDecompressionFailed   Kind = "DECOMPRESSION_FAILED"
	KindMissingRequiredField  Kind = "MISSING_REQUIRED_FIELD"
	KindAmbiguousReference    Kind = "AMBIGUOUS_REFERENCE"
	KindNotFound              Kind = "NOT_FOUND"
	KindForbidden             Kind = "FORBIDDEN"
	KindPartialCommitRejected Kind = "PARTIAL_COMMIT_REJECTED"
	KindValidation            Kind = "VALIDATION"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindInternal              Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func MalformedEncoding(message string) *Error {
	return &Error{
		Kind:    KindMalformedEncoding,
		Message: message,
		Code:    http.StatusBadRequest,
	}
}

func PayloadTooShort(size, min int) *Error {
	return &Error{
		Kind:    KindPayloadTooShort,
		Message: fmt.Sprintf("compressed payload is %d bytes, below the %d byte minimum", size, min),
		Code:    http.StatusBadRequest,
	}
}

func DecompressionFailed(size int, leadingBytes string, cause error) *Error {
	details := map[string]any{
		"compressed_size": size,
		"leading_bytes":   leadingBytes,
	}
	if cause != nil {
		details["last_error"] = cause.Error()
	}
	return &Error{
		Kind:    KindDecompressionFailed,
		Message: "no supported compression format recovered any content",
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func MissingRequiredField(field string) *Error {
	return &Error{
		Kind:    KindMissingRequiredField,
		Message: field + " is required",
		Code:    http.StatusBadRequest,
	}
}

func AmbiguousReference(message string, details any) *Error {
	return &Error{
		Kind:    KindAmbiguousReference,
		Message: message,
		Code:    http.StatusConflict,
		Details: details,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func Forbidden(message string) *Error {
	return &Error{
		Kind:    KindForbidden,
		Message: message,
		Code:    http.StatusForbidden,
	}
}

func PartialCommitRejected(message string, cause error) *Error {
	e := &Error{
		Kind:    KindPartialCommitRejected,
		Message: message,
		Code:    http.StatusBadRequest,
	}
	if cause != nil {
		e.Details = cause.Error()
		if inner, ok := cause.(*Error); ok {
			e.Details = inner
		}
	}
	return e
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Unauthorized(message string) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Message: message,
		Code:    http.StatusUnauthorized,
	}
}

func Internal(message string) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}
