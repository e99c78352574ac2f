// Package apierr defines the closed error taxonomy every Dark Tower
// component maps internal failures onto before they reach a client, per
// the error handling design: clients see a short canned message, the
// original cause is preserved in the wrapped chain for server-side logs.
package apierr

import "fmt"

// Kind is the closed set of client-visible error categories.
type Kind string

const (
	InvalidClient      Kind = "invalid_client"
	InvalidToken       Kind = "invalid_token"
	NotFound           Kind = "not_found"
	Forbidden          Kind = "forbidden"
	Validation         Kind = "validation"
	RateLimited        Kind = "rate_limited"
	ServiceUnavailable Kind = "service_unavailable"
	NotRegistered      Kind = "not_registered"
	FencedOut          Kind = "fenced_out"
	InternalError      Kind = "internal_error"
)

// messages maps each Kind to the single canned string clients ever see.
// Never format a Kind's message with request-specific data.
var messages = map[Kind]string{
	InvalidClient:      "invalid_client",
	InvalidToken:       "invalid or expired token",
	NotFound:           "not found",
	Forbidden:          "forbidden",
	Validation:         "validation failed",
	RateLimited:        "rate limited",
	ServiceUnavailable: "service unavailable",
	NotRegistered:      "not registered",
	FencedOut:          "fenced out",
	InternalError:      "an internal error occurred",
}

// ClientMessage collapses the internal error taxonomy down to the canned
// message for kind. This is the client_message() function from the error
// handling design.
func ClientMessage(kind Kind) string {
	if m, ok := messages[kind]; ok {
		return m
	}
	return messages[InternalError]
}

// Error is a rich internal error: a Kind for boundary mapping plus the
// original cause, preserved through %w so logs never lose the chain.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// New constructs an Error of the given kind, wrapping cause (which may be
// nil) with a formatted internal message. The internal message is never
// shown to a client; callers pair this with ClientMessage(kind) at the
// boundary.
func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, defaulting to InternalError otherwise. This is the mapping step
// the error handling design requires every HTTP/gRPC boundary to perform.
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return InternalError
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidClient, InvalidToken:
		return 401
	case Forbidden:
		return 403
	case NotFound:
		return 404
	case Validation:
		return 400
	case RateLimited:
		return 429
	case ServiceUnavailable:
		return 503
	case NotRegistered, FencedOut:
		return 409
	default:
		return 500
	}
}
