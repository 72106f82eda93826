package submission

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when an authenticated call has no certificate or secret
var ErrMissingCredentials = errors.New("certificate and secret are required")

// RequestError reports a call that produced no gateway response
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("submission %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new request error
func NewRequestError(op string, err error) *RequestError {
	return &RequestError{Op: op, Err: err}
}
