package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid             Kind = "invalid"
	NotFound            Kind = "not_found"
	Unauthorized        Kind = "unauthorized"
	Forbidden           Kind = "forbidden"
	Conflict            Kind = "conflict"
	InvalidSignature    Kind = "invalid_signature"
	ProviderUnavailable Kind = "provider_unavailable"
	Internal            Kind = "internal"
)

const internalMessage = "An unexpected error occurred"

// Error carries a kind for status mapping, a message that is safe to show
// to clients and the wrapped internal cause for logs.
type Error struct {
	Kind      Kind
	PublicMsg string
	Fields    map[string]string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.PublicMsg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.PublicMsg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind and public message so wrapped copies still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.PublicMsg == t.PublicMsg
}

var (
	ErrEmptyCart        = &Error{Kind: Invalid, PublicMsg: "Cart is empty"}
	ErrAlreadyEnrolled  = &Error{Kind: Conflict, PublicMsg: "User is already enrolled in this course"}
	ErrOrderAlreadyPaid = &Error{Kind: Conflict, PublicMsg: "Order has already been paid"}
	ErrInvalidSignature = &Error{Kind: InvalidSignature, PublicMsg: "Invalid signature"}
	ErrAmountMismatch   = &Error{Kind: Invalid, PublicMsg: "Payment amount does not match the order"}
)

func InvalidErr(publicMsg string, fields map[string]string) *Error {
	return &Error{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func NotFoundErr(publicMsg string) *Error {
	return &Error{Kind: NotFound, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *Error {
	return &Error{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ForbiddenErr(publicMsg string) *Error {
	return &Error{Kind: Forbidden, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *Error {
	return &Error{Kind: Conflict, PublicMsg: publicMsg}
}

func ProviderUnavailableErr(publicMsg string, err error) *Error {
	return &Error{Kind: ProviderUnavailable, PublicMsg: publicMsg, Err: err}
}

// Wrap marks err as internal. Nil stays nil and an *Error keeps its kind.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	return &Error{Kind: Internal, Err: err}
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf reports the kind of err, Internal for anything unclassified.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Invalid, InvalidSignature:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case ProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message. Internal causes are only
// exposed when debug is set.
func PublicMessage(err error, debug bool) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	if debug && err != nil {
		return err.Error()
	}
	return internalMessage
}
