package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrSessionExpired matches every *SessionError.
	ErrSessionExpired = errors.New("session expired")

	// ErrMalformedResponse is returned when a response cannot be used to
	// continue the form flow.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrBodyTooLarge is returned when a response exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// ErrorClass classifies a failed exchange.
type ErrorClass string

const (
	// ErrorClassNetwork covers connection failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer covers 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassClient covers 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassSession covers expired or invalid sessions.
	ErrorClassSession ErrorClass = "session"

	// ErrorClassMalformed covers responses that are not usable pages.
	ErrorClassMalformed ErrorClass = "malformed"
)

// transient reports whether errors of this class are worth retrying.
func (c ErrorClass) transient() bool {
	return c == ErrorClassNetwork || c == ErrorClassServer
}

// FetchError is a network or HTTP failure that could not be recovered.
type FetchError struct {
	// Step names the request that failed (form, search, page, expand).
	Step string

	// StatusCode is the last HTTP status, 0 if no response was received.
	StatusCode int

	// Class is the failure classification.
	Class ErrorClass

	// Attempts is how many times the request was sent.
	Attempts int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s error (status %d, %d attempts): %v",
			e.Step, e.Class, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error (%d attempts): %v", e.Step, e.Class, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// SessionError reports that the portal no longer accepts the session's
// continuation tokens.
type SessionError struct {
	// Step names the request that detected the expiry.
	Step string

	// Reason describes the signature that was matched.
	Reason string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return fmt.Sprintf("fetch %s: session expired: %s", e.Step, e.Reason)
}

// Is makes every SessionError match ErrSessionExpired.
func (e *SessionError) Is(target error) bool {
	return target == ErrSessionExpired
}
