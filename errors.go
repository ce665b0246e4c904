package socialauth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIllegalState is returned when a set-once operation is called out of
	// order. It is a programming error and not worth retrying.
	ErrIllegalState = errors.New("illegal state")

	// ErrMalformedToken is returned when a token is built from empty values.
	ErrMalformedToken = errors.New("malformed token")

	// ErrMissingParameter is returned when a provider response lacks a
	// mandatory parameter.
	ErrMissingParameter = errors.New("missing parameter in provider response")
)

// ServiceError reports a failed round trip to the provider. StatusCode and
// Body are set when a response was received.
type ServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the provider rejected the credentials.
func (e *ServiceError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IllegalState returns an error wrapping ErrIllegalState.
func IllegalState(msg string) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, msg)
}

// NewServiceError describes a failed operation. resp may be nil when no
// response was received.
func NewServiceError(op string, resp *Response, err error) *ServiceError {
	e := &ServiceError{Op: op, Err: err}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Body = string(resp.Body)
	}
	return e
}

// CheckResponse returns a ServiceError unless resp has status 200.
func CheckResponse(op string, resp *Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return NewServiceError(op, resp, nil)
}
