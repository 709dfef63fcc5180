package examapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes a caller is expected to branch on.
var (
	// ErrCredentialMissing means no bearer credential was supplied at all.
	ErrCredentialMissing = errors.New("bearer credential is required")
	// ErrCredentialExpired is raised before any network call when the
	// supplied token is a JWT whose expiry has already passed.
	ErrCredentialExpired = errors.New("bearer credential has expired")
	// ErrUnauthorized means the exam service rejected the credential.
	ErrUnauthorized = errors.New("exam service rejected the credential")
	// ErrExamNotFound means the exam identifier is unknown to the service.
	ErrExamNotFound = errors.New("exam not found")
	// ErrAlreadySubmitted means the service has already recorded a
	// submission for this exam and student.
	ErrAlreadySubmitted = errors.New("exam already submitted")
)

// StatusError is a non-2xx response outside the mapped sentinel classes.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exam service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("exam service returned status %d: %s", e.StatusCode, e.Message)
}

// NetworkError wraps transport-level failures (DNS, refused connection,
// timeout). These are recoverable: the caller keeps its state and retries.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("exam service unreachable during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRecoverable reports whether the error should leave session state
// intact for a retry (network trouble or a transient server error), as
// opposed to a fatal rejection like an unknown exam.
func IsRecoverable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}
