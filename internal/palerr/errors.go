// internal/palerr/errors.go
package palerr

import (
	"errors"
	"fmt"
)

// Typed errors shared by every layer of the client. Callers classify failures
// with errors.As / errors.Is instead of matching message text.

var (
	// ErrInvalidCredentials is reported when the login produced no usable session cookie.
	ErrInvalidCredentials = errors.New("credentials rejected by vendor")
	// ErrConnectivity marks transport level failures (DNS, TCP, TLS, timeouts).
	ErrConnectivity = errors.New("vendor unreachable")
	// ErrNoData is returned when a vendor response lacks the data it was expected to carry.
	ErrNoData = errors.New("vendor returned no data")
	// ErrNotLoggedIn is returned by session operations invoked before a successful login.
	ErrNotLoggedIn = errors.New("session is not logged in")
)

// AuthenticationError reports a failed login: invalid credentials or an unreachable login page.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// NewAuthenticationError creates an AuthenticationError.
func NewAuthenticationError(reason string, err error) *AuthenticationError {
	return &AuthenticationError{Reason: reason, Err: err}
}

// VendorRequestError reports a transport failure or a vendor populated error payload.
type VendorRequestError struct {
	Endpoint   string
	StatusCode int
	// Message is the vendor's own error text, when it sent one.
	Message string
	Err     error
}

func (e *VendorRequestError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("vendor request %s failed: %s", e.Endpoint, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("vendor request %s failed: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("vendor request %s failed with status %d", e.Endpoint, e.StatusCode)
	}
}

func (e *VendorRequestError) Unwrap() error { return e.Err }

// NotFoundError reports a name resolution that matched zero records.
type NotFoundError struct {
	Kind  string
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Query)
}

// NewNotFoundError creates a NotFoundError for the given record kind.
func NewNotFoundError(kind, query string) *NotFoundError {
	return &NotFoundError{Kind: kind, Query: query}
}

// UnexpectedPageShapeError reports that an element the flow relies on was absent.
type UnexpectedPageShapeError struct {
	Step     string
	Selector string
	Err      error
}

func (e *UnexpectedPageShapeError) Error() string {
	return fmt.Sprintf("unexpected page shape during %s: selector %q: %v", e.Step, e.Selector, e.Err)
}

func (e *UnexpectedPageShapeError) Unwrap() error { return e.Err }

// NewUnexpectedPageShapeError creates an UnexpectedPageShapeError.
func NewUnexpectedPageShapeError(step, selector string, err error) *UnexpectedPageShapeError {
	return &UnexpectedPageShapeError{Step: step, Selector: selector, Err: err}
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
