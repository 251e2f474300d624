package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call
type Kind int

const (
	KindSessionExpired Kind = iota + 1
	KindApplication
	KindBadRequest
	KindForbidden
	KindNotFound
	KindPayloadTooLarge
	KindServer
	KindHTTP
	KindNetwork
	KindClientConfig
)

func (k Kind) String() string {
	switch k {
	case KindSessionExpired:
		return "session_expired"
	case KindApplication:
		return "application_error"
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindServer:
		return "server_error"
	case KindHTTP:
		return "http_error"
	case KindNetwork:
		return "network_error"
	case KindClientConfig:
		return "client_config_error"
	default:
		return "unknown"
	}
}

// Error is returned by the pipeline for every failed call.
// Use errors.Is with the Err* sentinels to match the kind, errors.As for details.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, when the transport produced one
	Code    int    // envelope code, for application errors
	Message string // user-facing message, already shown to the user
	Err     error  // underlying cause, if any

	notified bool
}

// Sentinels for errors.Is
var (
	ErrSessionExpired  = &Error{Kind: KindSessionExpired}
	ErrApplication     = &Error{Kind: KindApplication}
	ErrBadRequest      = &Error{Kind: KindBadRequest}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrServer          = &Error{Kind: KindServer}
	ErrHTTP            = &Error{Kind: KindHTTP}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrClientConfig    = &Error{Kind: KindClientConfig}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Notified reports whether err carries a pipeline failure the user has
// already been told about
func Notified(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.notified
}

// KindOf returns the kind of a pipeline failure, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
