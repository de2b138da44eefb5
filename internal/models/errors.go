package models

import (
	"errors"
	"fmt"
)

// Error codes exposed to clients.
const (
	ErrCodeValidation      = "validation_error"
	ErrCodeNotFound        = "not_found"
	ErrCodeAlreadyMember   = "already_member"
	ErrCodeAlreadyLiked    = "already_liked"
	ErrCodeDeliveryFailure = "delivery_failure"
	ErrCodeInternal        = "internal_error"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyMember   = errors.New("already a member")
	ErrAlreadyLiked    = errors.New("already liked")
	ErrDeliveryFailure = errors.New("delivery failed")
)

// Error wraps a domain sentinel with a code and a human-readable message.
type Error struct {
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func newError(code string, sentinel error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), err: sentinel}
}

// Invalid reports malformed input.
func Invalid(format string, args ...any) *Error {
	return newError(ErrCodeValidation, ErrValidation, format, args...)
}

// NotFound reports an id that does not resolve.
func NotFound(kind, id string) *Error {
	return newError(ErrCodeNotFound, ErrNotFound, "%s %s not found", kind, id)
}

func AlreadyMember(groupID, userID string) *Error {
	return newError(ErrCodeAlreadyMember, ErrAlreadyMember, "user %s is already a member of group %s", userID, groupID)
}

func AlreadyLiked(messageID, userID string) *Error {
	return newError(ErrCodeAlreadyLiked, ErrAlreadyLiked, "user %s already liked message %s", userID, messageID)
}

// DeliveryFailed reports a push that did not reach a connection handle.
func DeliveryFailed(userID string, cause error) *Error {
	return newError(ErrCodeDeliveryFailure, ErrDeliveryFailure, "delivery to %s failed: %v", userID, cause)
}

// Code returns the client-facing code for err.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
