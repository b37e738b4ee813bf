// Package apperr carries the error taxonomy surfaced to callers: a kind, a short
// human-readable message and the tag of the collaborator that failed.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the caller-facing error category.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not-found"
	KindDataLoss        Kind = "data-loss"
	KindInvalidArgument Kind = "invalid-argument"
)

// Origin tags.
const (
	OriginStore    = "mongodb"
	OriginSearch   = "meilisearch"
	OriginMail     = "smtp"
	OriginFiles    = "minio"
	OriginAuth     = "auth"
	OriginStatus   = "status"
	OriginAgree    = "agree"
	OriginDemo     = "demo"
	OriginParent   = "parent"
	OriginPayment  = "payment"
	OriginLimit    = "limit"
	OriginObjectID = "objectID"
	OriginRequest  = "request"
	OriginOwner    = "owner"
	OriginFile     = "file"
)

// Error is a structured (kind, message, origin) triple.
type Error struct {
	Kind    Kind
	Message string
	Origin  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Origin, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Origin, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, origin, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Origin: origin, Err: err}
}

func Unauthenticated(message string) *Error {
	return newError(KindUnauthenticated, OriginAuth, message, nil)
}

func Forbidden(origin, message string) *Error {
	return newError(KindForbidden, origin, message, nil)
}

func NotFound(origin, message string) *Error {
	return newError(KindNotFound, origin, message, nil)
}

func InvalidArgument(origin, message string) *Error {
	return newError(KindInvalidArgument, origin, message, nil)
}

// DataLoss reports a failed write against the collaborator named by origin.
func DataLoss(origin, message string, err error) *Error {
	return newError(KindDataLoss, origin, message, err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HTTPStatus maps a kind onto the status code used by the handlers.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
