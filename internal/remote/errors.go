package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a failure worth retrying: timeout, connection failure,
// or a 5xx from the system of record.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError marks a 4xx semantic rejection. Resubmission would repeat
// the same rejection, so it is never retried or queued.
type RejectionError struct {
	Op     string
	Status int
	Body   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected: %s: status %d: %s", e.Op, e.Status, e.Body)
}

// IsTransient reports whether err should be retried and, on exhaustion,
// queued. Timeouts and connection errors count the same as an explicit
// TransientError.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRejection reports whether the system of record refused the payload.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
