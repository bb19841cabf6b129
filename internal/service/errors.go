package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation     Kind = iota + 1 // missing or malformed input
	KindAuthentication                 // bad credentials, expired token, inactive user
	KindAuthorization                  // malformed or badly signed token
	KindStorage                        // backing store or other server-side failure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Error is returned by every Service operation that fails. Message is safe to
// show to the client; Err carries the detail that only goes to the log.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client-facing messages. Credential and token failures are deliberately generic.
const (
	MsgCredentialsRequired = "email and password are required"
	MsgInvalidCredentials  = "invalid email or password"
	MsgTokenRequired       = "access token required"
	MsgInvalidToken        = "invalid token"
	MsgUserInactive        = "user not found or inactive"
	MsgInternal            = "internal server error"
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindStorage for errors that did not come
// from the service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}
