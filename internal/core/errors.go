package core

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned for a response that arrived after a newer request
// of the same kind was issued. Callers ignore it.
var ErrSuperseded = errors.New("response superseded by a newer request")

// AuthError reports rejected or expired credentials.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// ValidationError reports malformed input, next to the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthorizationError reports an operation the caller's roles do not allow.
type AuthorizationError struct {
	Required Role
	Message  string
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Required != "" {
		return fmt.Sprintf("role %q required", e.Required)
	}
	return "not authorized"
}

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// NetworkError wraps transport failures and unexpected server responses.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAuth reports whether err is, or wraps, an *AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// Kind names the taxonomy bucket of err for structured logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAuth(err):
		return "auth_error"
	case IsValidation(err):
		return "validation_error"
	case IsAuthorization(err):
		return "authorization_error"
	case IsNotFound(err):
		return "not_found_error"
	default:
		var ne *NetworkError
		if errors.As(err, &ne) {
			return "network_error"
		}
		return "internal_error"
	}
}
