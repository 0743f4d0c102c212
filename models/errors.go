package models

import (
	"errors"
	"fmt"
)

// MaxExcerpt is the number of characters of a remote body echoed back in error messages
const MaxExcerpt = 200

// ErrNoConfiguration is returned when an action needs a training configuration and none exists
var ErrNoConfiguration = errors.New("no training configuration has been saved yet")

// TransportError is a failure to complete an HTTP exchange: connection refused, DNS, timeout
type TransportError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("request to %s timed out: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("unable to reach %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteStatusError is a non success-class status from a remote collaborator
type RemoteStatusError struct {
	Endpoint   string
	StatusCode int
	Body       string // already bounded to MaxExcerpt characters
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("the remote API returned an error (status %d): %s", e.StatusCode, e.Body)
}

// NormalizationError means a success response carried no recognizable label
type NormalizationError struct {
	Reason string
	Body   string // already bounded to MaxExcerpt characters
	Err    error  // decode error, if the body was not JSON
}

func (e *NormalizationError) Error() string {
	msg := e.Reason
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (decode error: %v)", e.Err)
	}
	return msg
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// PersistenceError is a failed write to the store
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Excerpt returns at most n characters of s
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
