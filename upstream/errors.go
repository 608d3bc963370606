package upstream

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Connect and Invoke after Close.
var ErrClosed = errors.New("upstream connection is closed")

// InvokeError reports a single operation that failed after one forced
// reconnect-and-retry. It is surfaced to the caller as a tool-level error;
// retrying further is the caller's policy.
type InvokeError struct {
	Method string
	Err    error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("invoke %v failed: %v", e.Method, e.Err)
}

func (e *InvokeError) Unwrap() error {
	return e.Err
}
